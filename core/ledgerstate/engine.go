package ledgerstate

import (
	"fmt"
	"math"

	"github.com/gammazero/deque"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util/lines"
	"github.com/lunfardo314/tangle/util/set"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	Environment interface {
		global.NodeGlobal
		GetVertex(h ledger.Hash) *vertex.WrappedTx
		SolidEntryPoint(h ledger.Hash) (ledger.MilestoneIndex, bool)
	}

	// Engine applies milestones to the ledger state with the white-flag walk
	Engine struct {
		Environment
		store *store.Store
		state *LedgerState

		appliedCounter     prometheus.Counter
		conflictingCounter prometheus.Counter
		ledgerIndexGauge   prometheus.Gauge
	}

	// Result of the milestone application
	Result struct {
		Milestone   *store.MilestoneRecord
		Diff        ledger.Diff
		Referenced  []*vertex.WrappedTx
		Conflicting []ledger.Hash
	}

	// frame of the iterative post-order traversal
	frame struct {
		vid  *vertex.WrappedTx
		next int
	}
)

const (
	Name     = "ledger"
	TraceTag = Name
)

func NewEngine(env Environment, st *store.Store, state *LedgerState) *Engine {
	ret := &Engine{
		Environment: env,
		store:       st,
		state:       state,
	}
	ret.registerMetrics()
	ret.ledgerIndexGauge.Set(float64(state.LedgerIndex()))
	return ret
}

func (e *Engine) State() *LedgerState {
	return e.state
}

// ApplyMilestone walks the past cone of the milestone not confirmed by previous milestones,
// applies non-conflicting transfers in walk order and commits the diff atomically together with
// the milestone record, confirmation metadata and the ledger index marker.
// In-memory state is changed only after the commit succeeds, so the call can be repeated
// after ledger.ErrStorageFailure
func (e *Engine) ApplyMilestone(msVID *vertex.WrappedTx) (*Result, error) {
	idx, isMilestone := msVID.MilestoneIndex()
	if !isMilestone {
		return nil, fmt.Errorf("%w: %s is not a milestone", ledger.ErrInvariantViolation, msVID.IDShortString())
	}
	ledgerIndex := e.state.LedgerIndex()
	if idx <= ledgerIndex {
		return nil, fmt.Errorf("%w: milestone #%d, ledger index #%d", ledger.ErrAlreadyApplied, idx, ledgerIndex)
	}
	if idx != ledgerIndex+1 {
		return nil, fmt.Errorf("%w: milestone #%d, ledger index #%d", ledger.ErrNotContiguous, idx, ledgerIndex)
	}
	if err := e.state.CheckSupply(); err != nil {
		return nil, err
	}

	referenced, err := e.walk(msVID)
	if err != nil {
		return nil, err
	}

	// working copy of changed balances
	changed := make(map[ledger.Address]uint64)
	balance := func(addr ledger.Address) uint64 {
		if b, found := changed[addr]; found {
			return b
		}
		return e.state.Balance(addr)
	}
	diff := make(ledger.Diff)
	conflicting := set.New[ledger.Hash]()
	referencedIDs := make([]ledger.Hash, 0, len(referenced))
	appliedIDs := make([]ledger.Hash, 0)

	for _, vid := range referenced {
		referencedIDs = append(referencedIDs, vid.ID)
		transfer, isTransfer := vid.Tx.Transfer()
		if !isTransfer {
			continue
		}
		deltas, ok := e.checkTransfer(transfer, balance)
		if !ok {
			conflicting.Insert(vid.ID)
			e.Tracef(TraceTag, "milestone #%d: conflicting transfer %s", idx, vid.IDShortString)
			continue
		}
		for addr, delta := range deltas {
			changed[addr] = uint64(int64(balance(addr)) + delta)
			diff.Add(addr, delta)
		}
		appliedIDs = append(appliedIDs, vid.ID)
	}

	if diff.Sum() != 0 {
		return nil, fmt.Errorf("%w: milestone #%d diff sum is %d", ledger.ErrSupplyMismatch, idx, diff.Sum())
	}
	after := e.state.Balances()
	for addr, bal := range changed {
		if bal == 0 {
			delete(after, addr)
		} else {
			after[addr] = bal
		}
	}
	if err = e.state.checkSupply(after); err != nil {
		return nil, fmt.Errorf("milestone #%d: %w", idx, err)
	}

	rec := &store.MilestoneRecord{
		Index:               idx,
		ID:                  msVID.ID,
		Timestamp:           msVID.Tx.Timestamp(),
		ConfirmedMerkleRoot: MerkleRoot(referencedIDs),
		AppliedMerkleRoot:   MerkleRoot(appliedIDs),
		NumReferenced:       uint32(len(referenced)),
		NumApplied:          uint32(len(appliedIDs)),
		NumConflicting:      uint32(len(conflicting)),
	}

	batch := e.store.NewBatch()
	for addr, bal := range changed {
		batch.SetBalance(addr, bal)
	}
	batch.PutDiff(idx, diff)
	batch.PutMilestone(rec)
	for _, vid := range referenced {
		md := &store.VertexMetadataRecord{
			Conflicting: conflicting.Contains(vid.ID),
			ConfirmedBy: idx,
		}
		md.MilestoneIndex, _ = vid.MilestoneIndex()
		batch.PutVertexMetadata(vid.ID, md)
	}
	batch.SetLedgerIndex(idx)
	if err = batch.Commit(); err != nil {
		return nil, fmt.Errorf("milestone #%d: %w", idx, err)
	}

	e.state.update(idx, changed)
	for _, vid := range referenced {
		vid.SetConfirmed(idx, conflicting.Contains(vid.ID))
	}
	e.appliedCounter.Inc()
	e.conflictingCounter.Add(float64(len(conflicting)))
	e.ledgerIndexGauge.Set(float64(idx))

	e.Log().Infof("[%s] milestone #%d %s applied. Referenced: %d, applied: %d, conflicting: %d",
		Name, idx, msVID.IDShortString(), rec.NumReferenced, rec.NumApplied, rec.NumConflicting)

	return &Result{
		Milestone:   rec,
		Diff:        diff,
		Referenced:  referenced,
		Conflicting: conflicting.Ordered(ledger.LessHash),
	}, nil
}

// walk returns past cone of the milestone in post-order, trunk before branch, milestone last.
// Solid entry points and vertices confirmed by previous milestones bound the walk
func (e *Engine) walk(msVID *vertex.WrappedTx) ([]*vertex.WrappedTx, error) {
	ret := make([]*vertex.WrappedTx, 0)
	visited := set.New[ledger.Hash](msVID.ID)

	var stack deque.Deque[*frame]
	stack.PushBack(&frame{vid: msVID})

	for stack.Len() > 0 {
		top := stack.Back()
		if top.next < 2 {
			parents := top.vid.Parents()
			p := parents[top.next]
			top.next++
			if top.next == 2 && p == parents[0] {
				continue
			}
			if visited.Contains(p) {
				continue
			}
			visited.Insert(p)
			if _, isSEP := e.SolidEntryPoint(p); isSEP {
				continue
			}
			pv := e.GetVertex(p)
			if pv == nil {
				return nil, fmt.Errorf("%w: %s in the past cone of %s", ledger.ErrMissingAncestor, p.StringShort(), msVID.IDShortString())
			}
			if pv.ConfirmedBy() != 0 {
				continue
			}
			stack.PushBack(&frame{vid: pv})
			continue
		}
		stack.PopBack()
		ret = append(ret, top.vid)
	}
	return ret, nil
}

// checkTransfer returns net balance changes if the transfer can be applied on top of current balances
func (e *Engine) checkTransfer(transfer *ledger.TransferPayload, balance func(addr ledger.Address) uint64) (map[ledger.Address]int64, bool) {
	if err := transfer.CheckWellFormed(); err != nil {
		return nil, false
	}
	deltas := transfer.Deltas()
	for addr, delta := range deltas {
		b := balance(addr)
		if b > math.MaxInt64 {
			return nil, false
		}
		if delta < 0 && int64(b)+delta < 0 {
			return nil, false
		}
		if delta > 0 && int64(b) > math.MaxInt64-delta {
			return nil, false
		}
	}
	return deltas, true
}

// DiffByIndex committed diff of the milestone
func (e *Engine) DiffByIndex(idx ledger.MilestoneIndex) (ledger.Diff, bool, error) {
	return e.store.Diff(idx)
}

func (e *Engine) MilestoneRecord(idx ledger.MilestoneIndex) (*store.MilestoneRecord, bool, error) {
	return e.store.Milestone(idx)
}

func (r *Result) Lines(prefix ...string) *lines.Lines {
	ret := r.Milestone.Lines(prefix...)
	ret.Append(r.Diff.Lines(prefix...))
	return ret
}

func (e *Engine) registerMetrics() {
	e.appliedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_ledger_applied_milestones_counter",
		Help: "number of milestones applied to the ledger",
	})
	e.conflictingCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_ledger_conflicting_counter",
		Help: "number of conflicting transfers excluded from milestones",
	})
	e.ledgerIndexGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tangle_ledger_index",
		Help: "latest applied milestone index",
	})
	e.MetricsRegistry().MustRegister(e.appliedCounter, e.conflictingCounter, e.ledgerIndexGauge)
}
