package workflow

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/lunfardo314/tangle/api"
	"github.com/lunfardo314/tangle/core/memdag"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/core/work_process/gossip"
	"github.com/lunfardo314/tangle/core/work_process/pull_tx_server"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
)

// environment of the components

func (w *Workflow) GetVertex(h ledger.Hash) *vertex.WrappedTx {
	return w.MemDAG.Get(h)
}

func (w *Workflow) SolidEntryPoint(h ledger.Hash) (ledger.MilestoneIndex, bool) {
	idx, found := w.solidEntryPoints[h]
	return idx, found
}

func (w *Workflow) PullMissing(h ledger.Hash, by ledger.Hash) {
	w.pullClient.Pull(h, by.StringShort())
}

func (w *Workflow) HasTransaction(h ledger.Hash) bool {
	return w.MemDAG.Contains(h)
}

func (w *Workflow) RequestTransaction(h ledger.Hash) {
	w.gossip.RequestTransaction(h)
}

func (w *Workflow) LatestSolidMilestoneIndex() ledger.MilestoneIndex {
	return w.tracker.LatestSolidIndex()
}

func (w *Workflow) SolidMilestoneRange() (ledger.MilestoneIndex, ledger.MilestoneIndex) {
	return w.identity.SnapshotIndex, w.tracker.LatestSolidIndex()
}

// TransactionBytes from the vertex store or from the storage
func (w *Workflow) TransactionBytes(h ledger.Hash) ([]byte, bool) {
	if vid := w.MemDAG.Get(h); vid != nil {
		return vid.Tx.Bytes(), true
	}
	ret, found, err := w.store.GetVertexBytes(h)
	if err != nil {
		w.Log().Errorf("[workflow] TransactionBytes %s: %v", h.StringShort(), err)
		return nil, false
	}
	return ret, found
}

func (w *Workflow) ServeTransactionRequest(h ledger.Hash, from peer.ID) {
	w.pullServer.Push(&pull_tx_server.Input{ID: h, PeerID: from})
}

func (w *Workflow) SendTransactionTo(id peer.ID, txBytes []byte) {
	w.gossip.SendTo(id, &gossip.MsgTransaction{TxBytes: txBytes})
}

func (w *Workflow) TransactionBytesFromPeer(txBytes []byte, from peer.ID) {
	if err := w.TransactionBytesIn(txBytes, &from); err != nil {
		w.Tracef(TraceTagTxInput, "from peer %s: %v", from.String, err)
	}
}

// InsertTransaction inserts into the vertex store. Arrival stops pulling and removes the parents from the tip pool
func (w *Workflow) InsertTransaction(tx *ledger.Transaction) (memdag.InsertOutcome, *vertex.WrappedTx, error) {
	outcome, vid, err := w.MemDAG.Insert(tx)
	if err != nil {
		return outcome, nil, err
	}
	w.pullClient.StopPulling(vid.ID)
	if outcome == memdag.InsertedNew {
		parents := vid.Parents()
		w.tippool.RemoveTips(parents[:]...)
	}
	return outcome, vid, nil
}

func (w *Workflow) ValidateMilestoneCandidate(vid *vertex.WrappedTx) (ledger.MilestoneIndex, error) {
	return w.tracker.ValidateCandidate(vid)
}

func (w *Workflow) Solidify(vid *vertex.WrappedTx) {
	w.solidifier.Solidify(vid)
}

func (w *Workflow) BroadcastTransaction(txBytes []byte, except ...peer.ID) {
	w.gossip.BroadcastTransaction(txBytes, except...)
}

// queries

// IsDegraded node does not accept transactions after ledger writes were halted
func (w *Workflow) IsDegraded() bool {
	return w.writer.IsHalted()
}

func (w *Workflow) Balance(addr ledger.Address) uint64 {
	return w.engine.State().Balance(addr)
}

func (w *Workflow) Balances() map[ledger.Address]uint64 {
	return w.engine.State().Balances()
}

func (w *Workflow) LedgerIndex() ledger.MilestoneIndex {
	return w.engine.State().LedgerIndex()
}

func (w *Workflow) TotalSupply() uint64 {
	return w.engine.State().Supply()
}

func (w *Workflow) LatestKnownMilestoneIndex() ledger.MilestoneIndex {
	return w.tracker.LatestKnownIndex()
}

func (w *Workflow) MilestoneByIndex(idx ledger.MilestoneIndex) *vertex.WrappedTx {
	return w.tracker.MilestoneByIndex(idx)
}

func (w *Workflow) MilestoneRecord(idx ledger.MilestoneIndex) (*store.MilestoneRecord, bool, error) {
	return w.engine.MilestoneRecord(idx)
}

func (w *Workflow) DiffByIndex(idx ledger.MilestoneIndex) (ledger.Diff, bool, error) {
	return w.engine.DiffByIndex(idx)
}

func (w *Workflow) Tips() []*vertex.WrappedTx {
	return w.tippool.Tips()
}

func (w *Workflow) Info() *api.NodeInfo {
	nonLazy, semiLazy := w.tippool.NumTips()
	state := w.engine.State()
	return &api.NodeInfo{
		Name:                      global.ProgramName,
		Version:                   global.Version,
		LatestSolidMilestoneIndex: uint32(w.tracker.LatestSolidIndex()),
		LatestKnownMilestoneIndex: uint32(w.tracker.LatestKnownIndex()),
		LedgerIndex:               uint32(state.LedgerIndex()),
		SnapshotIndex:             uint32(w.identity.SnapshotIndex),
		NumVertices:               w.NumVertices(),
		NumPending:                len(w.PendingVertices()),
		NumTipsNonLazy:            nonLazy,
		NumTipsSemiLazy:           semiLazy,
		NumPulling:                w.pullClient.NumPulling(),
		TotalSupply:               state.Supply(),
		NumAddresses:              state.NumAddresses(),
		Degraded:                  w.IsDegraded(),
		Time:                      time.Now(),
	}
}
