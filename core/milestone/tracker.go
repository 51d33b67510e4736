package milestone

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/tangle/util/lines"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	Environment interface {
		global.NodeGlobal
	}

	// Tracker validates milestone candidates and hands solid milestones over to the ledger
	// strictly in contiguous index order
	Tracker struct {
		Environment
		coordinatorKeys []ed25519.PublicKey
		// apply is called under the tracker lock, in index order. Must not block
		apply func(vid *vertex.WrappedTx)

		mutex       sync.RWMutex
		latestKnown ledger.MilestoneIndex
		latestSolid ledger.MilestoneIndex
		registered  map[ledger.MilestoneIndex]*vertex.WrappedTx
		// solid milestones waiting for contiguity
		waiting map[ledger.MilestoneIndex]*vertex.WrappedTx

		latestKnownGauge prometheus.Gauge
		latestSolidGauge prometheus.Gauge
		rejectedCounter  prometheus.Counter
	}
)

const (
	Name     = "milestoneTracker"
	TraceTag = Name
)

// New creates tracker which starts from the latest applied milestone index of the ledger
func New(env Environment, coordinatorKeys []ed25519.PublicKey, latestSolid ledger.MilestoneIndex, apply func(vid *vertex.WrappedTx)) *Tracker {
	util.Assertf(len(coordinatorKeys) > 0, "milestone.New: coordinator key required")
	ret := &Tracker{
		Environment:     env,
		coordinatorKeys: coordinatorKeys,
		apply:           apply,
		latestKnown:     latestSolid,
		latestSolid:     latestSolid,
		registered:      make(map[ledger.MilestoneIndex]*vertex.WrappedTx),
		waiting:         make(map[ledger.MilestoneIndex]*vertex.WrappedTx),
	}
	ret.registerMetrics()
	ret.latestKnownGauge.Set(float64(latestSolid))
	ret.latestSolidGauge.Set(float64(latestSolid))
	return ret
}

// ValidateCandidate checks the milestone signature and the index. Indices not above the latest
// solid index or already registered by another vertex are stale. Indices in the gap between
// latest solid and latest known are accepted. Valid candidate is marked as milestone
func (t *Tracker) ValidateCandidate(vid *vertex.WrappedTx) (ledger.MilestoneIndex, error) {
	idx, err := ledger.VerifyMilestoneSignature(vid.Tx, t.coordinatorKeys...)
	if err != nil {
		t.rejectedCounter.Inc()
		return 0, err
	}
	if err = t.register(vid, idx); err != nil {
		t.rejectedCounter.Inc()
		return 0, err
	}
	if vid.IsSolid() {
		t.OnVertexSolid(vid)
	}
	return idx, nil
}

func (t *Tracker) register(vid *vertex.WrappedTx, idx ledger.MilestoneIndex) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if idx <= t.latestSolid {
		return fmt.Errorf("%w: #%d, latest solid is #%d", ledger.ErrStaleIndex, idx, t.latestSolid)
	}
	if already, found := t.registered[idx]; found {
		if already == vid {
			return nil
		}
		return fmt.Errorf("%w: #%d is already registered as %s", ledger.ErrStaleIndex, idx, already.IDShortString())
	}
	if err := vid.SetMilestone(idx); err != nil {
		return err
	}
	t.registered[idx] = vid
	if idx > t.latestKnown {
		t.latestKnown = idx
		t.latestKnownGauge.Set(float64(idx))
	}
	t.Log().Infof("[%s] milestone #%d %s registered. Latest known: #%d, latest solid: #%d",
		Name, idx, vid.IDShortString(), t.latestKnown, t.latestSolid)
	return nil
}

// OnVertexSolid advances latest solid milestone index while milestones are contiguous.
// Out of order milestones wait in the ordered wait set
func (t *Tracker) OnVertexSolid(vid *vertex.WrappedTx) {
	idx, isMilestone := vid.MilestoneIndex()
	if !isMilestone {
		return
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if idx <= t.latestSolid || t.registered[idx] != vid {
		return
	}
	t.waiting[idx] = vid
	for {
		next, found := t.waiting[t.latestSolid+1]
		if !found {
			break
		}
		delete(t.waiting, t.latestSolid+1)
		t.latestSolid++
		t.latestSolidGauge.Set(float64(t.latestSolid))
		t.Log().Infof("[%s] milestone #%d %s is solid", Name, t.latestSolid, next.IDShortString())
		t.apply(next)
	}
	if len(t.waiting) > 0 {
		t.Tracef(TraceTag, "%d solid milestones wait for #%d", len(t.waiting), t.latestSolid+1)
	}
}

func (t *Tracker) LatestKnownIndex() ledger.MilestoneIndex {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.latestKnown
}

func (t *Tracker) LatestSolidIndex() ledger.MilestoneIndex {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.latestSolid
}

// MilestoneByIndex returns registered milestone vertex, nil if not known
func (t *Tracker) MilestoneByIndex(idx ledger.MilestoneIndex) *vertex.WrappedTx {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.registered[idx]
}

func (t *Tracker) NumWaiting() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return len(t.waiting)
}

func (t *Tracker) Lines(prefix ...string) *lines.Lines {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	ret := lines.New(prefix...)
	ret.Add("latest known: #%d", t.latestKnown).
		Add("latest solid: #%d", t.latestSolid).
		Add("registered: %d, waiting for contiguity: %d", len(t.registered), len(t.waiting))
	return ret
}

func (t *Tracker) registerMetrics() {
	t.latestKnownGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tangle_milestone_latest_known",
		Help: "latest known milestone index",
	})
	t.latestSolidGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tangle_milestone_latest_solid",
		Help: "latest solid milestone index",
	})
	t.rejectedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_milestone_rejected_counter",
		Help: "number of rejected milestone candidates",
	})
	t.MetricsRegistry().MustRegister(t.latestKnownGauge, t.latestSolidGauge, t.rejectedCounter)
}
