package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/core/work_process/txinput_queue"
	"github.com/lunfardo314/tangle/ledger"
)

const TraceTagTxInput = "txinput"

var ErrDegraded = fmt.Errorf("node is degraded, ledger writes halted: %w", ledger.ErrStorageFailure)

type callbackResult struct {
	vid *vertex.WrappedTx
	err error
}

// TransactionBytesIn main entry point of the transaction bytes into the workflow (async).
// from is nil if transaction does not come from a peer
func (w *Workflow) TransactionBytesIn(txBytes []byte, from *peer.ID, callback ...func(vid *vertex.WrappedTx, err error)) error {
	if w.IsDegraded() {
		return ErrDegraded
	}
	if len(txBytes) == 0 {
		return fmt.Errorf("TransactionBytesIn: empty transaction: %w", ledger.ErrMalformedPayload)
	}
	w.txInput.TransactionBytesIn(txBytes, from, callback...)
	return nil
}

// MilestoneCandidateIn entry point of the milestone candidate (async)
func (w *Workflow) MilestoneCandidateIn(txBytes []byte, from *peer.ID) error {
	if w.IsDegraded() {
		return ErrDegraded
	}
	tx, err := ledger.TransactionFromBytes(txBytes)
	if err != nil {
		return err
	}
	if !tx.IsMilestone() {
		return fmt.Errorf("MilestoneCandidateIn: %s is not a milestone: %w", tx.ID().StringShort(), ledger.ErrMalformedPayload)
	}
	w.txInput.Push(&txinput_queue.Input{
		TxBytes: txBytes,
		Tx:      tx,
		From:    from,
	})
	return nil
}

// TransactionIn entry point of the parsed transaction (async)
func (w *Workflow) TransactionIn(tx *ledger.Transaction, callback ...func(vid *vertex.WrappedTx, err error)) error {
	if w.IsDegraded() {
		return ErrDegraded
	}
	w.txInput.TransactionIn(tx, callback...)
	return nil
}

// SubmitTransactionBytes parses the transaction and waits until it is inserted and processed
func (w *Workflow) SubmitTransactionBytes(ctx context.Context, txBytes []byte) (*vertex.WrappedTx, error) {
	tx, err := ledger.TransactionFromBytes(txBytes)
	if err != nil {
		return nil, err
	}
	return w.transactionInWait(ctx, tx)
}

func (w *Workflow) transactionInWait(ctx context.Context, tx *ledger.Transaction) (*vertex.WrappedTx, error) {
	done := make(chan callbackResult, 1)
	err := w.TransactionIn(tx, func(vid *vertex.WrappedTx, err error) {
		done <- callbackResult{vid: vid, err: err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.vid, res.err
	}
}

// IssueTransaction selects two tips, performs PoW and submits the new transaction.
// Genesis is referenced when there are no tips
func (w *Workflow) IssueTransaction(ctx context.Context, payload ledger.Payload) (*vertex.WrappedTx, error) {
	trunk, branch := ledger.NullHash, ledger.NullHash
	tips, err := w.tippool.SelectTips(2)
	switch {
	case err == nil:
		trunk, branch = tips[0].ID, tips[1].ID
	case errors.Is(err, ledger.ErrNoTipsAvailable):
		w.Log().Warnf("[workflow] no tips available, new transaction references genesis")
	default:
		return nil, err
	}
	tx, err := ledger.NewTransaction(trunk, branch, time.Now(), payload)
	if err != nil {
		return nil, err
	}
	if w.cfg.PoWTarget > 0 {
		done := make(chan callbackResult, 1)
		var txPoW *ledger.Transaction
		w.pow.Submit(tx, w.cfg.PoWTarget, func(tx *ledger.Transaction, err error) {
			txPoW = tx
			done <- callbackResult{err: err}
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-done:
			if res.err != nil {
				return nil, res.err
			}
		}
		tx = txPoW
	}
	w.Tracef(TraceTagTxInput, "issued %s, trunk %s, branch %s", tx.ID().StringShort, trunk.StringShort, branch.StringShort)
	return w.transactionInWait(ctx, tx)
}

// Restore loads persisted vertices, re-validates not confirmed milestone candidates and
// queues restored vertices to the solidifier. Solidity is recomputed asynchronously. Must be called after Start
func (w *Workflow) Restore() error {
	restored, err := w.MemDAG.Restore(w.store)
	if err != nil {
		return err
	}
	numCandidates := 0
	for _, vid := range restored {
		if !vid.Tx.IsMilestone() || vid.IsConfirmed() {
			continue
		}
		if _, err = w.tracker.ValidateCandidate(vid); err != nil {
			w.Log().Warnf("[workflow] restore: milestone candidate %s rejected: %v", vid.IDShortString(), err)
			continue
		}
		numCandidates++
	}
	for _, vid := range restored {
		w.solidifier.Push(vid)
	}
	w.Log().Infof("[workflow] restored %d vertices, %d milestone candidates. Latest known milestone: #%d",
		len(restored), numCandidates, w.tracker.LatestKnownIndex())
	return nil
}
