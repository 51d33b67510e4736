package solidifier

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/core/work_process"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

// Solidifier propagates solidity through the tangle. A vertex is solid when both parents are solid
// or are solid entry points. When a vertex becomes solid, its approvers are re-checked breadth first
// until a fixed point is reached

type (
	Environment interface {
		global.NodeGlobal
		GetVertex(h ledger.Hash) *vertex.WrappedTx
		ApproverVertices(h ledger.Hash) []*vertex.WrappedTx
		// SolidEntryPoint returns milestone index of the solid entry point
		SolidEntryPoint(h ledger.Hash) (ledger.MilestoneIndex, bool)
		// PullMissing requests missing transaction from peers
		PullMissing(h ledger.Hash, by ledger.Hash)
		PendingVertices() []*vertex.WrappedTx
	}

	Solidifier struct {
		Environment
		*work_process.WorkProcess[*vertex.WrappedTx]

		hooksMutex sync.RWMutex
		onSolid    []func(vid *vertex.WrappedTx)

		solidCounter   prometheus.Counter
		pendingCounter prometheus.Counter
		recheckCounter prometheus.Counter
	}
)

const (
	Name     = "solidifier"
	TraceTag = Name
)

func New(env Environment) *Solidifier {
	ret := &Solidifier{
		Environment: env,
		onSolid:     make([]func(vid *vertex.WrappedTx), 0),
	}
	ret.WorkProcess = work_process.New[*vertex.WrappedTx](env, Name, ret.Solidify)
	ret.registerMetrics()
	return ret
}

// Start starts the work process. With positive recheckPeriod, pending vertices are periodically
// pushed back to the queue, so missing parents are requested again
func (s *Solidifier) Start(recheckPeriod time.Duration) {
	s.WorkProcess.Start()
	if recheckPeriod <= 0 {
		return
	}
	s.RepeatInBackground(Name+"_recheck", recheckPeriod, func() bool {
		s.recheckPending()
		return true
	}, true)
}

func (s *Solidifier) recheckPending() {
	pending := s.PendingVertices()
	if len(pending) == 0 {
		return
	}
	s.Tracef(TraceTag, "re-checking %d pending vertices", len(pending))
	for _, vid := range pending {
		s.recheckCounter.Inc()
		s.Push(vid)
	}
}

// OnSolid registers hook called synchronously, exactly once per vertex, when it becomes solid.
// Hooks must not block
func (s *Solidifier) OnSolid(fun func(vid *vertex.WrappedTx)) {
	s.hooksMutex.Lock()
	defer s.hooksMutex.Unlock()

	s.onSolid = append(s.onSolid, fun)
}

func (s *Solidifier) runHooks(vid *vertex.WrappedTx) {
	s.hooksMutex.RLock()
	defer s.hooksMutex.RUnlock()

	for _, fun := range s.onSolid {
		fun(vid)
	}
}

// Solidify checks the vertex and runs the cascade to the fixed point before returning.
// Concurrent cascades are deduplicated by the monotonic solid flag of the vertex
func (s *Solidifier) Solidify(vid *vertex.WrappedTx) {
	var worklist deque.Deque[*vertex.WrappedTx]
	worklist.PushBack(vid)
	numSolidified := 0

	for worklist.Len() > 0 {
		cur := worklist.PopFront()
		if cur.IsSolid() {
			continue
		}
		youngest, solid := s.checkParents(cur, cur == vid)
		if !solid {
			continue
		}
		if !cur.SetSolid(youngest) {
			// other cascade was first
			continue
		}
		numSolidified++
		s.solidCounter.Inc()
		s.Tracef(TraceTag, "solid: %s", cur.String)
		s.runHooks(cur)

		for _, approver := range s.ApproverVertices(cur.ID) {
			if !approver.IsSolid() {
				worklist.PushBack(approver)
			}
		}
	}
	if numSolidified > 1 {
		s.Tracef(TraceTag, "cascade from %s solidified %d vertices", vid.IDShortString, numSolidified)
	}
}

// checkParents returns youngest milestone index referenced by the parents and solidity.
// Missing parents are requested only when checking the vertex which triggered the cascade,
// approvers in the cascade requested theirs on arrival
func (s *Solidifier) checkParents(vid *vertex.WrappedTx, requestMissing bool) (ledger.MilestoneIndex, bool) {
	var youngest ledger.MilestoneIndex
	solid := true
	parents := vid.Parents()
	for i, p := range parents {
		if i == 1 && p == parents[0] {
			break
		}
		if idx, isSEP := s.SolidEntryPoint(p); isSEP {
			youngest = max(youngest, idx)
			continue
		}
		pv := s.GetVertex(p)
		switch {
		case pv == nil:
			solid = false
			if requestMissing {
				s.PullMissing(p, vid.ID)
			}
		case pv.IsSolid():
			youngest = max(youngest, pv.YoungestMilestone())
		default:
			solid = false
		}
	}
	if !solid && vid.Status() == vertex.Unknown {
		vid.SetPending()
		s.pendingCounter.Inc()
	}
	return youngest, solid
}

func (s *Solidifier) registerMetrics() {
	s.solidCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_solidifier_solid_counter",
		Help: "number of vertices which became solid",
	})
	s.pendingCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_solidifier_pending_counter",
		Help: "number of vertices which had to wait for parents",
	})
	s.recheckCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_solidifier_recheck_counter",
		Help: "number of pending vertices pushed back for re-check",
	})
	s.MetricsRegistry().MustRegister(s.solidCounter, s.pendingCounter, s.recheckCounter)
}
