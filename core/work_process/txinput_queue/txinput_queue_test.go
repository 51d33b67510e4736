package txinput_queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/lunfardo314/tangle/core/memdag"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/ledger/pow"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util/countdown"
	"github.com/lunfardo314/tangle/util/testutil"
	"github.com/stretchr/testify/require"
)

type (
	testEnv struct {
		*global.Global
		*memdag.MemDAG
		mutex       sync.Mutex
		solidified  []ledger.Hash
		milestones  []ledger.Hash
		broadcasted []broadcast
		// if not nil, Solidify waits until it is closed
		release chan struct{}
	}

	broadcast struct {
		txBytes []byte
		except  []peer.ID
	}
)

func newTestEnv() *testEnv {
	glb := global.NewDefault()
	return &testEnv{
		Global: glb,
		MemDAG: memdag.New(glb, store.NewInMemory()),
	}
}

func (e *testEnv) InsertTransaction(tx *ledger.Transaction) (memdag.InsertOutcome, *vertex.WrappedTx, error) {
	return e.MemDAG.Insert(tx)
}

func (e *testEnv) ValidateMilestoneCandidate(vid *vertex.WrappedTx) (ledger.MilestoneIndex, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.milestones = append(e.milestones, vid.ID)
	return 1, nil
}

func (e *testEnv) Solidify(vid *vertex.WrappedTx) {
	if e.release != nil {
		<-e.release
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.solidified = append(e.solidified, vid.ID)
}

func (e *testEnv) BroadcastTransaction(txBytes []byte, except ...peer.ID) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.broadcasted = append(e.broadcasted, broadcast{txBytes: txBytes, except: except})
}

func (e *testEnv) counts() (solidified, milestones, broadcasted int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return len(e.solidified), len(e.milestones), len(e.broadcasted)
}

func dataTx(data string) *ledger.Transaction {
	return ledger.MustNewTransaction(ledger.NullHash, ledger.NullHash, time.Now(), ledger.DataPayload(data))
}

func TestTxInputQueue(t *testing.T) {
	from := peer.ID("peer")

	t.Run("from peer", func(t *testing.T) {
		env := newTestEnv()
		defer env.Stop()
		q := New(env, DefaultConfig())
		q.Start()

		tx := dataTx("a")
		cd := countdown.New(1, 5*time.Second)
		q.TransactionBytesIn(tx.Bytes(), &from, func(vid *vertex.WrappedTx, err error) {
			require.NoError(t, err)
			require.EqualValues(t, tx.ID(), vid.ID)
			cd.Tick()
		})
		require.NoError(t, cd.Wait())

		// repeating gossip is ignored, callback is never called
		q.TransactionBytesIn(tx.Bytes(), &from, func(vid *vertex.WrappedTx, err error) {
			t.Errorf("must not be called")
		})
		// from API it is processed, but already exists
		cd = countdown.New(1, 5*time.Second)
		q.TransactionIn(tx, func(vid *vertex.WrappedTx, err error) {
			require.NoError(t, err)
			cd.Tick()
		})
		require.NoError(t, cd.Wait())
		q.WaitIdle()

		nSolid, nMs, nBroadcast := env.counts()
		require.EqualValues(t, 1, nSolid)
		require.EqualValues(t, 0, nMs)
		require.EqualValues(t, 1, nBroadcast)
		require.EqualValues(t, []peer.ID{from}, env.broadcasted[0].except)
		require.EqualValues(t, 1, env.NumVertices())
	})
	t.Run("bad bytes", func(t *testing.T) {
		env := newTestEnv()
		defer env.Stop()
		q := New(env, DefaultConfig())
		q.Start()

		cd := countdown.New(1, 5*time.Second)
		q.TransactionBytesIn([]byte("garbage"), &from, func(vid *vertex.WrappedTx, err error) {
			require.Error(t, err)
			require.Nil(t, vid)
			cd.Tick()
		})
		require.NoError(t, cd.Wait())
		require.EqualValues(t, 0, env.NumVertices())
	})
	t.Run("milestone", func(t *testing.T) {
		env := newTestEnv()
		defer env.Stop()
		q := New(env, DefaultConfig())
		q.Start()

		signer := ledger.NewMilestoneSigner(testutil.GetTestingPrivateKey())
		ms := signer.NewMilestone(ledger.NullHash, ledger.NullHash, 1)
		cd := countdown.New(1, 5*time.Second)
		q.TransactionIn(ms, func(vid *vertex.WrappedTx, err error) {
			require.NoError(t, err)
			cd.Tick()
		})
		require.NoError(t, cd.Wait())

		nSolid, nMs, nBroadcast := env.counts()
		require.EqualValues(t, 1, nSolid)
		require.EqualValues(t, 1, nMs)
		require.EqualValues(t, 1, nBroadcast)
		require.EqualValues(t, 0, len(env.broadcasted[0].except))
	})
	t.Run("pow", func(t *testing.T) {
		const target = 8
		env := newTestEnv()
		defer env.Stop()
		cfg := DefaultConfig()
		cfg.MinPoW = target
		q := New(env, cfg)
		q.Start()

		tx := dataTx("pow")
		for pow.MeetsDifficulty(tx.Bytes(), target) {
			tx = tx.WithNonce(tx.Nonce() + 1)
		}
		cd := countdown.New(1, 5*time.Second)
		q.TransactionIn(tx, func(vid *vertex.WrappedTx, err error) {
			require.ErrorIs(t, err, ledger.ErrNotEnoughPoW)
			cd.Tick()
		})
		require.NoError(t, cd.Wait())

		txPoW, err := pow.Search(env.Ctx(), tx, target, 2)
		require.NoError(t, err)
		cd = countdown.New(1, 5*time.Second)
		q.TransactionIn(txPoW, func(vid *vertex.WrappedTx, err error) {
			require.NoError(t, err)
			cd.Tick()
		})
		require.NoError(t, cd.Wait())
		require.EqualValues(t, 1, env.NumVertices())
	})
	t.Run("many concurrent", func(t *testing.T) {
		const n = 200
		env := newTestEnv()
		defer env.Stop()
		q := New(env, Config{Workers: 8, SeenTTL: time.Minute})
		q.Start()

		cd := countdown.New(n, 10*time.Second)
		for i := 0; i < n; i++ {
			q.TransactionIn(dataTx(fmt.Sprintf("tx%d", i)), func(vid *vertex.WrappedTx, err error) {
				require.NoError(t, err)
				cd.Tick()
			})
		}
		require.NoError(t, cd.Wait())
	})
}

func TestBackpressure(t *testing.T) {
	env := newTestEnv()
	env.release = make(chan struct{})
	defer env.Stop()

	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.QueueCapacity = 1
	q := New(env, cfg)
	q.Start()

	// first input occupies the only worker, second one is held by the consumer waiting for the worker
	q.TransactionIn(dataTx("1"))
	q.TransactionIn(dataTx("2"))

	pushed := make(chan struct{})
	go func() {
		q.TransactionIn(dataTx("3"))
		close(pushed)
	}()
	select {
	case <-pushed:
		t.Fatalf("producer must block while the queue is at capacity")
	case <-time.After(200 * time.Millisecond):
	}

	close(env.release)
	select {
	case <-pushed:
	case <-time.After(5 * time.Second):
		t.Fatalf("producer was not released")
	}
	require.Eventually(t, func() bool {
		solidified, _, _ := env.counts()
		return solidified == 3
	}, 5*time.Second, 10*time.Millisecond)
}
