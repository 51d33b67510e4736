package solidifier

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/lunfardo314/tangle/core/memdag"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util/set"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	*global.Global
	*memdag.MemDAG
	mutex  sync.Mutex
	seps   map[ledger.Hash]ledger.MilestoneIndex
	pulled set.Set[ledger.Hash]
}

func newTestEnv() *testEnv {
	glb := global.NewDefault()
	return &testEnv{
		Global: glb,
		MemDAG: memdag.New(glb, nil),
		seps:   map[ledger.Hash]ledger.MilestoneIndex{ledger.NullHash: 0},
		pulled: set.New[ledger.Hash](),
	}
}

func (e *testEnv) GetVertex(h ledger.Hash) *vertex.WrappedTx {
	return e.MemDAG.Get(h)
}

func (e *testEnv) SolidEntryPoint(h ledger.Hash) (ledger.MilestoneIndex, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	idx, found := e.seps[h]
	return idx, found
}

func (e *testEnv) PullMissing(h ledger.Hash, _ ledger.Hash) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.pulled.Insert(h)
}

func (e *testEnv) isPulled(h ledger.Hash) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.pulled.Contains(h)
}

type solidCounter struct {
	mutex sync.Mutex
	m     map[ledger.Hash]int
}

func attachCounter(s *Solidifier) *solidCounter {
	ret := &solidCounter{m: make(map[ledger.Hash]int)}
	s.OnSolid(func(vid *vertex.WrappedTx) {
		ret.mutex.Lock()
		defer ret.mutex.Unlock()
		ret.m[vid.ID]++
	})
	return ret
}

func dataTx(trunk, branch ledger.Hash, data string) *ledger.Transaction {
	return ledger.MustNewTransaction(trunk, branch, time.Now(), ledger.DataPayload(data))
}

func (e *testEnv) insertAndSolidify(t *testing.T, s *Solidifier, tx *ledger.Transaction) *vertex.WrappedTx {
	outcome, vid, err := e.Insert(tx)
	require.NoError(t, err)
	if outcome == memdag.InsertedNew {
		s.Solidify(vid)
	}
	return vid
}

func TestCascade(t *testing.T) {
	t.Run("in order", func(t *testing.T) {
		env := newTestEnv()
		s := New(env)
		cnt := attachCounter(s)

		a := dataTx(ledger.NullHash, ledger.NullHash, "a")
		b := dataTx(a.ID(), a.ID(), "b")
		c := dataTx(b.ID(), b.ID(), "c")

		vidA := env.insertAndSolidify(t, s, a)
		require.True(t, vidA.IsSolid())
		vidB := env.insertAndSolidify(t, s, b)
		require.True(t, vidB.IsSolid())
		vidC := env.insertAndSolidify(t, s, c)
		require.True(t, vidC.IsSolid())
		require.EqualValues(t, 3, len(cnt.m))
	})
	t.Run("reverse order", func(t *testing.T) {
		env := newTestEnv()
		s := New(env)
		cnt := attachCounter(s)

		a := dataTx(ledger.NullHash, ledger.NullHash, "a")
		b := dataTx(a.ID(), ledger.NullHash, "b")
		c := dataTx(b.ID(), a.ID(), "c")

		vidC := env.insertAndSolidify(t, s, c)
		require.EqualValues(t, vertex.Pending, vidC.Status())
		require.True(t, env.isPulled(b.ID()))
		require.True(t, env.isPulled(a.ID()))

		vidB := env.insertAndSolidify(t, s, b)
		require.EqualValues(t, vertex.Pending, vidB.Status())
		require.EqualValues(t, vertex.Pending, vidC.Status())

		vidA := env.insertAndSolidify(t, s, a)
		require.True(t, vidA.IsSolid())
		require.True(t, vidB.IsSolid())
		require.True(t, vidC.IsSolid())
		for _, h := range []ledger.Hash{a.ID(), b.ID(), c.ID()} {
			require.EqualValues(t, 1, cnt.m[h])
		}
	})
	t.Run("youngest milestone", func(t *testing.T) {
		env := newTestEnv()
		sepHash := ledger.HashData([]byte("sep"))
		env.seps[sepHash] = 5
		s := New(env)

		a := dataTx(sepHash, ledger.NullHash, "a")
		b := dataTx(a.ID(), a.ID(), "b")
		vidB := env.insertAndSolidify(t, s, b)
		require.False(t, vidB.IsSolid())
		require.NoError(t, env.Get(b.ID()).SetMilestone(6))

		vidA := env.insertAndSolidify(t, s, a)
		require.True(t, vidA.IsSolid())
		require.True(t, vidB.IsSolid())
		require.EqualValues(t, 5, vidA.YoungestMilestone())
		require.EqualValues(t, 6, vidB.YoungestMilestone())
	})
}

// makeLayers creates DAG where every vertex of the layer approves two random vertices of the previous layer
func makeLayers(numLayers, width int) []*ledger.Transaction {
	ret := make([]*ledger.Transaction, 0, numLayers*width)
	prev := []ledger.Hash{ledger.NullHash}
	for l := 0; l < numLayers; l++ {
		layer := make([]ledger.Hash, 0, width)
		for i := 0; i < width; i++ {
			tx := dataTx(prev[rand.Intn(len(prev))], prev[rand.Intn(len(prev))], fmt.Sprintf("%d-%d", l, i))
			ret = append(ret, tx)
			layer = append(layer, tx.ID())
		}
		prev = layer
	}
	return ret
}

func TestConcurrentCascades(t *testing.T) {
	const (
		numLayers  = 30
		width      = 10
		numWorkers = 8
	)
	env := newTestEnv()
	s := New(env)
	cnt := attachCounter(s)

	txs := makeLayers(numLayers, width)
	rand.Shuffle(len(txs), func(i, j int) { txs[i], txs[j] = txs[j], txs[i] })

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(txs); i += numWorkers {
				env.insertAndSolidify(t, s, txs[i])
			}
		}(w)
	}

	// monotonicity: once observed solid, never observed not solid
	stop := make(chan struct{})
	monotonic := true
	var wgObserver sync.WaitGroup
	wgObserver.Add(1)
	go func() {
		defer wgObserver.Done()
		seenSolid := set.New[ledger.Hash]()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, vid := range env.Vertices() {
				if vid.IsSolid() {
					seenSolid.Insert(vid.ID)
				} else if seenSolid.Contains(vid.ID) {
					monotonic = false
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	wgObserver.Wait()

	require.True(t, monotonic)
	require.EqualValues(t, len(txs), env.NumVertices())
	for _, tx := range txs {
		require.True(t, env.Get(tx.ID()).IsSolid())
		require.EqualValues(t, 1, cnt.m[tx.ID()])
	}
}

func TestAsync(t *testing.T) {
	env := newTestEnv()
	defer env.Stop()
	s := New(env)
	s.Start(0)

	a := dataTx(ledger.NullHash, ledger.NullHash, "a")
	_, vid, err := env.Insert(a)
	require.NoError(t, err)
	s.Push(vid)
	require.Eventually(t, vid.IsSolid, 5*time.Second, 5*time.Millisecond)
}

func TestRecheckPending(t *testing.T) {
	t.Run("pending vertices are pushed back", func(t *testing.T) {
		env := newTestEnv()
		defer env.Stop()
		s := New(env)
		cnt := attachCounter(s)

		missing := dataTx(ledger.NullHash, ledger.NullHash, "missing")
		p := dataTx(missing.ID(), missing.ID(), "p")
		c := dataTx(p.ID(), ledger.NullHash, "c")
		vidP := env.insertAndSolidify(t, s, p)
		vidC := env.insertAndSolidify(t, s, c)
		require.EqualValues(t, vertex.Pending, vidP.Status())
		require.EqualValues(t, vertex.Pending, vidC.Status())
		require.EqualValues(t, 2, len(env.PendingVertices()))

		// parent becomes solid entry point without any arrival
		env.mutex.Lock()
		env.seps[missing.ID()] = 1
		env.mutex.Unlock()

		s.Start(10 * time.Millisecond)
		require.Eventually(t, func() bool {
			return vidP.IsSolid() && vidC.IsSolid()
		}, 5*time.Second, 5*time.Millisecond)
		require.EqualValues(t, 1, vidC.YoungestMilestone())
		require.EqualValues(t, 0, len(env.PendingVertices()))

		cnt.mutex.Lock()
		defer cnt.mutex.Unlock()
		require.EqualValues(t, 1, cnt.m[p.ID()])
		require.EqualValues(t, 1, cnt.m[c.ID()])
	})
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv()
		defer env.Stop()
		s := New(env)
		s.Start(0)

		missing := dataTx(ledger.NullHash, ledger.NullHash, "missing")
		p := dataTx(missing.ID(), missing.ID(), "p")
		vidP := env.insertAndSolidify(t, s, p)
		env.mutex.Lock()
		env.seps[missing.ID()] = 1
		env.mutex.Unlock()

		time.Sleep(50 * time.Millisecond)
		require.False(t, vidP.IsSolid())
		require.True(t, env.isPulled(missing.ID()))
	})
}
