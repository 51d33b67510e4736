package ledgerstate

import (
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lunfardo314/tangle/core/memdag"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/genesis"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util/testutil"
	"github.com/stretchr/testify/require"
)

const supply = 1000

type testEnv struct {
	*global.Global
	*memdag.MemDAG
	faulty *testutil.FaultyKVStore
	store  *store.Store
	signer *ledger.MilestoneSigner
	addrs  []ledger.Address

	mutex     sync.Mutex
	confirmed []*Result
	halted    error
}

func newTestEnv(t *testing.T) *testEnv {
	glb := global.NewDefault()
	faulty := testutil.NewFaultyInMemoryKVStore()
	ret := &testEnv{
		Global: glb,
		MemDAG: memdag.New(glb, nil),
		faulty: faulty,
		store:  store.New(faulty),
		signer: ledger.NewMilestoneSigner(testutil.GetTestingPrivateKey(100)),
	}
	for _, pk := range testutil.GetTestingPrivateKeys(3) {
		ret.addrs = append(ret.addrs, ledger.AddressFromPublicKey(pk.Public().(ed25519.PublicKey)))
	}
	g := genesis.New("test", ret.signer.PublicKey(), supply, ret.addrs[0])
	require.NoError(t, genesis.InitLedgerState(ret.store, g))
	return ret
}

func (e *testEnv) GetVertex(h ledger.Hash) *vertex.WrappedTx {
	return e.MemDAG.Get(h)
}

func (e *testEnv) SolidEntryPoint(h ledger.Hash) (ledger.MilestoneIndex, bool) {
	return 0, h == ledger.NullHash
}

func (e *testEnv) MilestoneConfirmed(res *Result) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.confirmed = append(e.confirmed, res)
}

func (e *testEnv) LedgerHalted(err error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.halted = err
}

func (e *testEnv) numConfirmed() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return len(e.confirmed)
}

func (e *testEnv) haltedErr() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.halted
}

func (e *testEnv) newEngine(t *testing.T) *Engine {
	state, err := Load(e.store)
	require.NoError(t, err)
	return NewEngine(e, e.store, state)
}

func (e *testEnv) insert(t *testing.T, tx *ledger.Transaction) *vertex.WrappedTx {
	_, vid, err := e.Insert(tx)
	require.NoError(t, err)
	vid.SetSolid(0)
	return vid
}

func (e *testEnv) transfer(t *testing.T, trunk, branch ledger.Hash, from, to int, amount uint64) *vertex.WrappedTx {
	payload := ledger.SimpleTransfer(e.addrs[from], e.addrs[to], amount)
	return e.insert(t, ledger.MustNewTransaction(trunk, branch, time.Now(), payload))
}

func (e *testEnv) milestone(t *testing.T, trunk, branch ledger.Hash, idx ledger.MilestoneIndex) *vertex.WrappedTx {
	vid := e.insert(t, e.signer.NewMilestone(trunk, branch, idx))
	require.NoError(t, vid.SetMilestone(idx))
	return vid
}

// scenario: T1 A->B 300, T3 B->C 100 approves T1, T2 A->C 800 conflicts after T1
func (e *testEnv) scenario(t *testing.T) (ms1, t1, t2, t3 *vertex.WrappedTx) {
	t1 = e.transfer(t, ledger.NullHash, ledger.NullHash, 0, 1, 300)
	t2 = e.transfer(t, ledger.NullHash, ledger.NullHash, 0, 2, 800)
	t3 = e.transfer(t, t1.ID, t1.ID, 1, 2, 100)
	ms1 = e.milestone(t, t3.ID, t2.ID, 1)
	return
}

func TestApplyMilestone(t *testing.T) {
	env := newTestEnv(t)
	engine := env.newEngine(t)
	ms1, t1, t2, t3 := env.scenario(t)

	res, err := engine.ApplyMilestone(ms1)
	require.NoError(t, err)
	t.Logf("\n%s", res.Lines("    ").String())

	// walk order: post-order, trunk first
	order := make([]ledger.Hash, 0)
	for _, vid := range res.Referenced {
		order = append(order, vid.ID)
	}
	require.EqualValues(t, []ledger.Hash{t1.ID, t3.ID, t2.ID, ms1.ID}, order)
	require.EqualValues(t, []ledger.Hash{t2.ID}, res.Conflicting)
	require.EqualValues(t, 4, res.Milestone.NumReferenced)
	require.EqualValues(t, 2, res.Milestone.NumApplied)
	require.EqualValues(t, 1, res.Milestone.NumConflicting)
	require.EqualValues(t, MerkleRoot([]ledger.Hash{t1.ID, t3.ID}), res.Milestone.AppliedMerkleRoot)

	state := engine.State()
	require.EqualValues(t, 1, state.LedgerIndex())
	require.EqualValues(t, 700, state.Balance(env.addrs[0]))
	require.EqualValues(t, 200, state.Balance(env.addrs[1]))
	require.EqualValues(t, 100, state.Balance(env.addrs[2]))
	require.NoError(t, state.CheckSupply())

	require.True(t, t2.IsConflicting())
	require.False(t, t1.IsConflicting())
	for _, vid := range []*vertex.WrappedTx{ms1, t1, t2, t3} {
		require.EqualValues(t, 1, vid.ConfirmedBy())
	}

	t.Run("persisted", func(t *testing.T) {
		idx, _, err := env.store.LedgerIndex()
		require.NoError(t, err)
		require.EqualValues(t, 1, idx)

		diff, found, err := engine.DiffByIndex(1)
		require.NoError(t, err)
		require.True(t, found)
		require.EqualValues(t, -300, diff[env.addrs[0]])
		require.EqualValues(t, 200, diff[env.addrs[1]])
		require.EqualValues(t, 100, diff[env.addrs[2]])

		rec, found, err := engine.MilestoneRecord(1)
		require.NoError(t, err)
		require.True(t, found)
		require.EqualValues(t, ms1.ID, rec.ID)

		md, found, err := env.store.GetVertexMetadata(t2.ID)
		require.NoError(t, err)
		require.True(t, found)
		require.True(t, md.Conflicting)
		require.EqualValues(t, 1, md.ConfirmedBy)

		md, _, err = env.store.GetVertexMetadata(ms1.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, md.MilestoneIndex)

		reloaded, err := Load(env.store)
		require.NoError(t, err)
		require.EqualValues(t, state.Balances(), reloaded.Balances())
		require.EqualValues(t, 1, reloaded.LedgerIndex())
	})
	t.Run("double application", func(t *testing.T) {
		_, err := engine.ApplyMilestone(ms1)
		require.True(t, errors.Is(err, ledger.ErrAlreadyApplied))
		require.True(t, ledger.IsFatal(err))
	})
	t.Run("not contiguous", func(t *testing.T) {
		ms3 := env.milestone(t, ms1.ID, ms1.ID, 3)
		_, err := engine.ApplyMilestone(ms3)
		require.True(t, errors.Is(err, ledger.ErrNotContiguous))
	})
	t.Run("next milestone", func(t *testing.T) {
		// conflicting T2 of milestone 1 is not walked again
		t4 := env.transfer(t, ms1.ID, t2.ID, 2, 0, 100)
		ms2 := env.milestone(t, t4.ID, t4.ID, 2)
		res, err := engine.ApplyMilestone(ms2)
		require.NoError(t, err)
		require.EqualValues(t, 2, len(res.Referenced))
		require.EqualValues(t, 800, state.Balance(env.addrs[0]))
		require.EqualValues(t, 0, state.Balance(env.addrs[2]))
		require.NoError(t, state.CheckSupply())
		require.EqualValues(t, 2, state.NumAddresses())
	})
}

func TestSupplyConservation(t *testing.T) {
	const numMilestones = 20
	env := newTestEnv(t)
	engine := env.newEngine(t)

	prev := ledger.NullHash
	for i := 1; i <= numMilestones; i++ {
		// some transfers are valid, some overspend
		ta := env.transfer(t, prev, prev, i%3, (i+1)%3, uint64(50*i))
		tb := env.transfer(t, ta.ID, prev, (i+1)%3, (i+2)%3, uint64(70*i))
		ms := env.milestone(t, tb.ID, ta.ID, ledger.MilestoneIndex(i))
		_, err := engine.ApplyMilestone(ms)
		require.NoError(t, err)
		require.NoError(t, engine.State().CheckSupply())
		require.EqualValues(t, i, engine.State().LedgerIndex())
		prev = ms.ID
	}
}

func TestMissingAncestor(t *testing.T) {
	env := newTestEnv(t)
	engine := env.newEngine(t)
	missing := ledger.HashData([]byte("missing"))
	ms1 := env.milestone(t, missing, ledger.NullHash, 1)

	_, err := engine.ApplyMilestone(ms1)
	require.True(t, errors.Is(err, ledger.ErrMissingAncestor))
	require.True(t, ledger.IsFatal(err))
	require.EqualValues(t, 0, engine.State().LedgerIndex())
}

func TestStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	engine := env.newEngine(t)
	ms1, t1, _, _ := env.scenario(t)

	env.faulty.SetFailing(true)
	_, err := engine.ApplyMilestone(ms1)
	require.True(t, errors.Is(err, ledger.ErrStorageFailure))
	require.True(t, ledger.IsRetryable(err))
	require.EqualValues(t, 0, engine.State().LedgerIndex())
	require.EqualValues(t, supply, engine.State().Balance(env.addrs[0]))
	require.EqualValues(t, 0, t1.ConfirmedBy())

	env.faulty.SetFailing(false)
	_, err = engine.ApplyMilestone(ms1)
	require.NoError(t, err)
	require.EqualValues(t, 1, engine.State().LedgerIndex())
	require.EqualValues(t, 700, engine.State().Balance(env.addrs[0]))
}

func TestWriter(t *testing.T) {
	cfg := WriterConfig{MaxRetries: 3, RetryBackoff: 10 * time.Millisecond}
	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t)
		defer env.Stop()
		w := NewWriter(env, env.newEngine(t), cfg)
		w.Start()
		ms1, _, _, _ := env.scenario(t)
		w.Push(ms1)
		require.Eventually(t, func() bool { return env.numConfirmed() == 1 }, 5*time.Second, 5*time.Millisecond)
		require.EqualValues(t, 1, w.State().LedgerIndex())
	})
	t.Run("retry", func(t *testing.T) {
		env := newTestEnv(t)
		defer env.Stop()
		w := NewWriter(env, env.newEngine(t), WriterConfig{MaxRetries: 10, RetryBackoff: 10 * time.Millisecond})
		w.Start()
		ms1, _, _, _ := env.scenario(t)
		env.faulty.SetFailing(true)
		w.Push(ms1)
		time.Sleep(30 * time.Millisecond)
		env.faulty.SetFailing(false)
		require.Eventually(t, func() bool { return env.numConfirmed() == 1 }, 5*time.Second, 5*time.Millisecond)
		require.False(t, w.IsHalted())
	})
	t.Run("halt", func(t *testing.T) {
		env := newTestEnv(t)
		defer env.Stop()
		w := NewWriter(env, env.newEngine(t), cfg)
		w.Start()
		ms1, _, _, _ := env.scenario(t)
		env.faulty.SetFailing(true)
		w.Push(ms1)
		require.Eventually(t, w.IsHalted, 5*time.Second, 5*time.Millisecond)
		require.True(t, errors.Is(env.haltedErr(), ledger.ErrStorageFailure))
		require.EqualValues(t, 0, env.numConfirmed())
		require.False(t, env.IsShuttingDown())
	})
	t.Run("fatal", func(t *testing.T) {
		env := newTestEnv(t)
		w := NewWriter(env, env.newEngine(t), cfg)
		w.Start()
		ms1 := env.milestone(t, ledger.HashData([]byte("missing")), ledger.NullHash, 1)
		w.Push(ms1)
		require.Eventually(t, env.IsShuttingDown, 5*time.Second, 5*time.Millisecond)
	})
}

func TestMerkleRoot(t *testing.T) {
	h := func(s string) ledger.Hash { return ledger.HashData([]byte(s)) }
	require.EqualValues(t, ledger.HashData(), MerkleRoot(nil))
	require.EqualValues(t, ledger.HashData([]byte{0}, h("a").Bytes()), MerkleRoot([]ledger.Hash{h("a")}))
	r3 := MerkleRoot([]ledger.Hash{h("a"), h("b"), h("c")})
	require.NotEqualValues(t, r3, MerkleRoot([]ledger.Hash{h("b"), h("a"), h("c")}))
	require.EqualValues(t, r3, MerkleRoot([]ledger.Hash{h("a"), h("b"), h("c")}))
}
