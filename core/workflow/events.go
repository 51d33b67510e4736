package workflow

import (
	"github.com/lunfardo314/tangle/core/ledgerstate"
	"github.com/lunfardo314/tangle/core/work_process/events"
	"github.com/lunfardo314/tangle/ledger"
)

// MilestoneConfirmed is called by the ledger writer after the milestone has been committed
func (w *Workflow) MilestoneConfirmed(res *ledgerstate.Result) {
	ms := res.Milestone
	w.Log().Infof("[workflow] milestone #%d %s confirmed: referenced %d, applied %d, conflicting %d",
		ms.Index, ms.ID.StringShort(), ms.NumReferenced, ms.NumApplied, ms.NumConflicting)
	w.events.MilestoneConfirmed.Post(events.MilestoneConfirmed{
		Index:          ms.Index,
		ID:             ms.ID,
		NumReferenced:  int(ms.NumReferenced),
		NumApplied:     int(ms.NumApplied),
		NumConflicting: int(ms.NumConflicting),
	})
}

// LedgerHalted is called by the ledger writer when storage failures exhausted retries
func (w *Workflow) LedgerHalted(err error) {
	w.Log().Errorf("[workflow] node is DEGRADED: ledger writes halted: %v", err)
	w.events.LedgerHalted.Post(events.LedgerHalted{Err: err})
}

// TransactionStalled is called by the pull client when the missing transaction could not be obtained
func (w *Workflow) TransactionStalled(h ledger.Hash, attempts int) {
	w.events.TransactionStalled.Post(events.TransactionStalled{ID: h, Attempts: attempts})
}
