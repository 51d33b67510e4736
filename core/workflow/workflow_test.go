package workflow

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/lunfardo314/tangle/core/ledgerstate"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/core/work_process/events"
	"github.com/lunfardo314/tangle/core/work_process/gossip"
	"github.com/lunfardo314/tangle/genesis"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

const totalSupply = 1_000_000

type testNode struct {
	*Workflow
	glb    *global.Global
	st     *store.Store
	signer *ledger.MilestoneSigner
	addrA  ledger.Address
	addrB  ledger.Address
}

func testAddress(idx int) ledger.Address {
	return ledger.AddressFromPublicKey(testutil.GetTestingPrivateKey(idx).Public().(ed25519.PublicKey))
}

func initTestStore(t *testing.T, st *store.Store) *ledger.MilestoneSigner {
	signer := ledger.NewMilestoneSigner(testutil.GetTestingPrivateKey())
	g := genesis.New("test", signer.PublicKey(), totalSupply, testAddress(1))
	require.NoError(t, genesis.InitLedgerState(st, g))
	return signer
}

func startTestNode(t *testing.T, st *store.Store, signer *ledger.MilestoneSigner, opts ...ConfigOption) *testNode {
	glb := global.New(testutil.NewNamedLogger("test"))
	w, err := New(glb, st, gossip.NullNetwork{}, append([]ConfigOption{WithoutHeartbeat}, opts...)...)
	require.NoError(t, err)
	w.Start()
	return &testNode{
		Workflow: w,
		glb:      glb,
		st:       st,
		signer:   signer,
		addrA:    testAddress(1),
		addrB:    testAddress(2),
	}
}

func newTestNode(t *testing.T, opts ...ConfigOption) *testNode {
	st := store.NewInMemory()
	return startTestNode(t, st, initTestStore(t, st), opts...)
}

func (n *testNode) stop() {
	n.glb.Stop()
	n.glb.MustWaitAllWorkProcessesStop(5 * time.Second)
}

func (n *testNode) submit(t *testing.T, tx *ledger.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	vid, err := n.SubmitTransactionBytes(ctx, tx.Bytes())
	require.NoError(t, err)
	require.EqualValues(t, tx.ID(), vid.ID)
}

func transferTx(trunk, branch ledger.Hash, from, to ledger.Address, amount uint64) *ledger.Transaction {
	return ledger.MustNewTransaction(trunk, branch, time.Now(), ledger.SimpleTransfer(from, to, amount))
}

func TestNew(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		_, err := New(global.NewDefault(), store.NewInMemory(), gossip.NullNetwork{})
		require.ErrorIs(t, err, ledger.ErrNotFound)
	})
	t.Run("bad input", func(t *testing.T) {
		n := newTestNode(t)
		defer n.stop()

		require.ErrorIs(t, n.TransactionBytesIn(nil, nil), ledger.ErrMalformedPayload)
		_, err := n.SubmitTransactionBytes(context.Background(), []byte("dummy data"))
		require.Error(t, err)
		data := ledger.MustNewTransaction(ledger.NullHash, ledger.NullHash, time.Now(), ledger.DataPayload("abc"))
		require.ErrorIs(t, n.MilestoneCandidateIn(data.Bytes(), nil), ledger.ErrMalformedPayload)

		info := n.Info()
		require.EqualValues(t, totalSupply, info.TotalSupply)
		require.False(t, info.Degraded)
	})
}

func TestEndToEnd(t *testing.T) {
	n := newTestNode(t)
	defer n.stop()

	confirmed := atomic.NewInt32(0)
	n.Events().MilestoneConfirmed.Attach(func(arg events.MilestoneConfirmed) {
		confirmed.Inc()
	})

	t1 := transferTx(ledger.NullHash, ledger.NullHash, n.addrA, n.addrB, 300)
	n.submit(t, t1)
	vid1 := n.GetVertex(t1.ID())
	require.True(t, vid1.IsSolid())
	require.True(t, n.tippool.IsTip(t1.ID()))

	ms1 := n.signer.NewMilestone(t1.ID(), t1.ID(), 1)
	n.submit(t, ms1)
	require.True(t, n.GetVertex(ms1.ID()).IsSolid())
	require.False(t, n.tippool.IsTip(t1.ID()))

	require.Eventually(t, func() bool {
		return n.LedgerIndex() == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.EqualValues(t, 1, n.LatestSolidMilestoneIndex())
	require.EqualValues(t, totalSupply-300, n.Balance(n.addrA))
	require.EqualValues(t, 300, n.Balance(n.addrB))
	require.EqualValues(t, 1, vid1.ConfirmedBy())

	rec, found, err := n.MilestoneRecord(1)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 2, rec.NumReferenced)
	require.EqualValues(t, 1, rec.NumApplied)
	require.Eventually(t, func() bool { return confirmed.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	txBytes, found := n.TransactionBytes(ms1.ID())
	require.True(t, found)
	require.EqualValues(t, ms1.Bytes(), txBytes)
}

func TestContiguity(t *testing.T) {
	n := newTestNode(t)
	defer n.stop()

	t1 := transferTx(ledger.NullHash, ledger.NullHash, n.addrA, n.addrB, 100)
	n.submit(t, t1)
	ms2 := n.signer.NewMilestone(t1.ID(), t1.ID(), 2)
	n.submit(t, ms2)
	require.True(t, n.GetVertex(ms2.ID()).IsSolid())
	require.EqualValues(t, 2, n.LatestKnownMilestoneIndex())
	require.EqualValues(t, 0, n.LatestSolidMilestoneIndex())

	ms1 := n.signer.NewMilestone(ledger.NullHash, ledger.NullHash, 1)
	n.submit(t, ms1)
	require.Eventually(t, func() bool {
		return n.LedgerIndex() == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.EqualValues(t, 2, n.LatestSolidMilestoneIndex())
	require.EqualValues(t, 100, n.Balance(n.addrB))

	// first milestone has nothing to apply, transfer is applied by the second
	d1, _, err := n.DiffByIndex(1)
	require.NoError(t, err)
	require.EqualValues(t, 0, len(d1))
	d2, found, err := n.DiffByIndex(2)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 2, len(d2))
}

func TestIssueTransaction(t *testing.T) {
	n := newTestNode(t)
	defer n.stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	vid1, err := n.IssueTransaction(ctx, ledger.DataPayload("first"))
	require.NoError(t, err)
	require.EqualValues(t, ledger.NullHash, vid1.Trunk())
	require.True(t, vid1.IsSolid())

	vid2, err := n.IssueTransaction(ctx, ledger.DataPayload("second"))
	require.NoError(t, err)
	require.EqualValues(t, vid1.ID, vid2.Trunk())
	require.EqualValues(t, vid1.ID, vid2.Branch())
	require.False(t, n.tippool.IsTip(vid1.ID))
	require.True(t, n.tippool.IsTip(vid2.ID))

	t.Run("with pow", func(t *testing.T) {
		const target = 6
		n := newTestNode(t, WithPoWTarget(target))
		defer n.stop()

		vid, err := n.IssueTransaction(ctx, ledger.DataPayload("pow"))
		require.NoError(t, err)
		require.True(t, vid.IsSolid())
		require.True(t, n.Info().NumVertices == 1)
	})
}

func TestRestore(t *testing.T) {
	st := store.NewInMemory()
	signer := initTestStore(t, st)

	n := startTestNode(t, st, signer)
	t1 := transferTx(ledger.NullHash, ledger.NullHash, n.addrA, n.addrB, 500)
	n.submit(t, t1)
	n.submit(t, n.signer.NewMilestone(t1.ID(), t1.ID(), 1))
	require.Eventually(t, func() bool {
		return n.LedgerIndex() == 1
	}, 5*time.Second, 10*time.Millisecond)

	// t2 waits for the missing x, ms2 waits for t2
	x := ledger.MustNewTransaction(ledger.NullHash, ledger.NullHash, time.Now(), ledger.DataPayload("x"))
	t2 := transferTx(x.ID(), t1.ID(), n.addrB, n.addrA, 200)
	n.submit(t, t2)
	ms2 := n.signer.NewMilestone(t2.ID(), t2.ID(), 2)
	n.submit(t, ms2)
	require.False(t, n.GetVertex(ms2.ID()).IsSolid())
	require.EqualValues(t, 2, n.LatestKnownMilestoneIndex())
	n.stop()

	n = startTestNode(t, st, signer)
	defer n.stop()
	require.NoError(t, n.Restore())
	require.EqualValues(t, 4, n.NumVertices())
	require.EqualValues(t, 2, n.LatestKnownMilestoneIndex())
	require.True(t, n.GetVertex(t1.ID()).IsConfirmed())
	require.EqualValues(t, 500, n.Balance(n.addrB))

	// solidity is recomputed by the solidifier work process
	require.Eventually(t, func() bool {
		return n.GetVertex(t1.ID()).IsSolid() && n.LatestSolidMilestoneIndex() == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return n.GetVertex(t2.ID()).Status() == vertex.Pending &&
			n.GetVertex(ms2.ID()).Status() == vertex.Pending &&
			n.pullClient.IsPulling(x.ID())
	}, 5*time.Second, 10*time.Millisecond)
	require.EqualValues(t, 2, len(n.PendingVertices()))

	n.submit(t, x)
	require.Eventually(t, func() bool {
		return n.LedgerIndex() == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.EqualValues(t, 300, n.Balance(n.addrB))
	require.EqualValues(t, totalSupply-300, n.Balance(n.addrA))
}

func TestDegraded(t *testing.T) {
	faulty := testutil.NewFaultyInMemoryKVStore()
	st := store.New(faulty)
	signer := initTestStore(t, st)
	n := startTestNode(t, st, signer, func(c *Config) {
		c.Writer = ledgerstate.WriterConfig{MaxRetries: 1, RetryBackoff: time.Millisecond}
	})
	defer n.stop()

	halted := atomic.NewBool(false)
	n.Events().LedgerHalted.Attach(func(arg events.LedgerHalted) {
		halted.Store(true)
	})

	x := ledger.MustNewTransaction(ledger.NullHash, ledger.NullHash, time.Now(), ledger.DataPayload("x"))
	ms1 := n.signer.NewMilestone(x.ID(), x.ID(), 1)
	n.submit(t, ms1)
	require.False(t, n.GetVertex(ms1.ID()).IsSolid())

	faulty.SetFailing(true)
	_, vidX := n.MemDAG.InsertNoPersist(x)
	n.Solidify(vidX)
	require.True(t, n.GetVertex(ms1.ID()).IsSolid())

	require.Eventually(t, func() bool {
		return n.IsDegraded() && halted.Load()
	}, 5*time.Second, 10*time.Millisecond)
	require.EqualValues(t, 0, n.LedgerIndex())
	require.ErrorIs(t, n.TransactionBytesIn(x.Bytes(), nil), ErrDegraded)
	require.True(t, n.Info().Degraded)
}

type recordingNetwork struct {
	mutex sync.Mutex
	sent  map[peer.ID][]gossip.Message
}

func (n *recordingNetwork) Send(to peer.ID, msg gossip.Message) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.sent[to] = append(n.sent[to], msg)
}

func (n *recordingNetwork) Broadcast(gossip.Message, ...peer.ID) int {
	return 0
}

func (n *recordingNetwork) sentTo(id peer.ID) []gossip.Message {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]gossip.Message{}, n.sent[id]...)
}

func TestPeerTransactionRequest(t *testing.T) {
	st := store.NewInMemory()
	initTestStore(t, st)
	glb := global.New(testutil.NewNamedLogger("test"))
	net := &recordingNetwork{sent: make(map[peer.ID][]gossip.Message)}
	w, err := New(glb, st, net, WithoutHeartbeat)
	require.NoError(t, err)
	w.Start()
	defer func() {
		glb.Stop()
		glb.MustWaitAllWorkProcessesStop(5 * time.Second)
	}()

	tx := ledger.MustNewTransaction(ledger.NullHash, ledger.NullHash, time.Now(), ledger.DataPayload("requested"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = w.SubmitTransactionBytes(ctx, tx.Bytes())
	require.NoError(t, err)

	requester := peer.ID("requester")
	w.Gossip().Dispatch(requester, &gossip.MsgTransactionRequest{ID: ledger.HashData([]byte("unknown"))})
	w.Gossip().Dispatch(requester, &gossip.MsgTransactionRequest{ID: tx.ID()})

	require.Eventually(t, func() bool { return len(net.sentTo(requester)) == 1 }, 5*time.Second, 10*time.Millisecond)
	require.EqualValues(t, &gossip.MsgTransaction{TxBytes: tx.Bytes()}, net.sentTo(requester)[0])
}
