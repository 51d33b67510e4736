package tippool

import (
	"sync"
	"time"

	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util/set"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/rand"
)

type (
	Environment interface {
		global.NodeGlobal
		NumApprovers(h ledger.Hash) int
		LatestSolidMilestoneIndex() ledger.MilestoneIndex
	}

	// Config thresholds of tip classification. Delta is the distance between the latest solid
	// milestone index and the youngest milestone index referenced by the tip
	Config struct {
		MaxDeltaNonLazy  uint32
		MaxDeltaSemiLazy uint32
		MaxAgeNonLazy    time.Duration
		MaxAgeSemiLazy   time.Duration
	}

	TipPool struct {
		Environment
		cfg      Config
		mutex    sync.RWMutex
		nonLazy  map[ledger.Hash]*vertex.WrappedTx
		semiLazy map[ledger.Hash]*vertex.WrappedTx
		rnd      *rand.Rand

		numNonLazy  prometheus.Gauge
		numSemiLazy prometheus.Gauge
		numEvicted  prometheus.Counter
	}

	Class byte
)

const (
	NonLazy = Class(iota)
	SemiLazy
	Lazy
)

const (
	Name                 = "tippool"
	TraceTag             = Name
	reclassifyLoopPeriod = 5 * time.Second
)

func (c Class) String() string {
	switch c {
	case NonLazy:
		return "non-lazy"
	case SemiLazy:
		return "semi-lazy"
	case Lazy:
		return "lazy"
	}
	return "???"
}

func DefaultConfig() Config {
	return Config{
		MaxDeltaNonLazy:  2,
		MaxDeltaSemiLazy: 7,
		MaxAgeNonLazy:    30 * time.Second,
		MaxAgeSemiLazy:   2 * time.Minute,
	}
}

func New(env Environment, cfg Config) *TipPool {
	ret := &TipPool{
		Environment: env,
		cfg:         cfg,
		nonLazy:     make(map[ledger.Hash]*vertex.WrappedTx),
		semiLazy:    make(map[ledger.Hash]*vertex.WrappedTx),
		rnd:         rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
	}
	ret.registerMetrics()
	return ret
}

// Start periodic reclassification of tips
func (t *TipPool) Start() {
	t.RepeatInBackground(Name+"_reclassify", reclassifyLoopPeriod, func() bool {
		t.Reclassify()
		return true
	}, true)
}

// Classify the tip relative to the latest solid milestone and tip age
func (t *TipPool) Classify(vid *vertex.WrappedTx, lsmi ledger.MilestoneIndex, nowis time.Time) Class {
	md := vid.Metadata()
	var delta uint32
	if lsmi > md.YoungestMilestone {
		delta = uint32(lsmi - md.YoungestMilestone)
	}
	since := md.SolidificationTime
	if since.IsZero() {
		since = md.ArrivalTime
	}
	age := nowis.Sub(since)
	switch {
	case delta <= t.cfg.MaxDeltaNonLazy && age <= t.cfg.MaxAgeNonLazy:
		return NonLazy
	case delta <= t.cfg.MaxDeltaSemiLazy && age <= t.cfg.MaxAgeSemiLazy:
		return SemiLazy
	}
	return Lazy
}

// AddTip adds solid vertex without approvers. Approvers are checked under the pool lock,
// so a concurrent RemoveTips of the same vertex cannot be lost
func (t *TipPool) AddTip(vid *vertex.WrappedTx) {
	if !vid.IsSolid() {
		return
	}
	cls := t.Classify(vid, t.LatestSolidMilestoneIndex(), time.Now())

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.NumApprovers(vid.ID) > 0 {
		return
	}
	switch cls {
	case NonLazy:
		t.nonLazy[vid.ID] = vid
	case SemiLazy:
		t.semiLazy[vid.ID] = vid
	default:
		t.Tracef(TraceTag, "%s is lazy, not added", vid.IDShortString)
		return
	}
	t.Tracef(TraceTag, "added %s tip %s", cls.String, vid.IDShortString)
	t.updateGaugesNoLock()
}

// RemoveTips removes referenced vertices from the pool
func (t *TipPool) RemoveTips(hashes ...ledger.Hash) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, h := range hashes {
		delete(t.nonLazy, h)
		delete(t.semiLazy, h)
	}
	t.updateGaugesNoLock()
}

// Reclassify moves tips between pools and evicts lazy ones. If eviction would leave the pool empty,
// the lazy tips are kept as semi-lazy, so the node can always issue a transaction
func (t *TipPool) Reclassify() {
	lsmi := t.LatestSolidMilestoneIndex()
	nowis := time.Now()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	nonLazy := make(map[ledger.Hash]*vertex.WrappedTx)
	semiLazy := make(map[ledger.Hash]*vertex.WrappedTx)
	lazy := make(map[ledger.Hash]*vertex.WrappedTx)

	for _, pool := range []map[ledger.Hash]*vertex.WrappedTx{t.nonLazy, t.semiLazy} {
		for h, vid := range pool {
			switch t.Classify(vid, lsmi, nowis) {
			case NonLazy:
				nonLazy[h] = vid
			case SemiLazy:
				semiLazy[h] = vid
			default:
				lazy[h] = vid
			}
		}
	}
	if len(nonLazy)+len(semiLazy) == 0 {
		semiLazy = lazy
	} else if len(lazy) > 0 {
		t.numEvicted.Add(float64(len(lazy)))
		t.Tracef(TraceTag, "evicted %d lazy tips", len(lazy))
	}
	t.nonLazy, t.semiLazy = nonLazy, semiLazy
	t.updateGaugesNoLock()
}

// SelectTip selects tip uniformly at random from the non-lazy pool, if empty, from the semi-lazy pool
func (t *TipPool) SelectTip() (*vertex.WrappedTx, error) {
	ret, err := t.SelectTips(1)
	if err != nil {
		return nil, err
	}
	return ret[0], nil
}

// SelectTips selects n tips, distinct when the pools have enough of them
func (t *TipPool) SelectTips(n int) ([]*vertex.WrappedTx, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	candidates := maps.Values(t.nonLazy)
	if len(candidates) == 0 {
		candidates = maps.Values(t.semiLazy)
	}
	if len(candidates) == 0 {
		return nil, ledger.ErrNoTipsAvailable
	}
	ret := make([]*vertex.WrappedTx, 0, n)
	if len(candidates) >= n {
		for _, i := range t.rnd.Perm(len(candidates))[:n] {
			ret = append(ret, candidates[i])
		}
		return ret, nil
	}
	ret = append(ret, candidates...)
	for len(ret) < n {
		ret = append(ret, candidates[t.rnd.Intn(len(candidates))])
	}
	return ret, nil
}

func (t *TipPool) NumTips() (nonLazy, semiLazy int) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return len(t.nonLazy), len(t.semiLazy)
}

func (t *TipPool) IsTip(h ledger.Hash) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	_, isNonLazy := t.nonLazy[h]
	_, isSemiLazy := t.semiLazy[h]
	return isNonLazy || isSemiLazy
}

// Tips all tips, non-lazy first
func (t *TipPool) Tips() []*vertex.WrappedTx {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return append(maps.Values(t.nonLazy), maps.Values(t.semiLazy)...)
}

func (t *TipPool) TipSet() set.Set[ledger.Hash] {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	ret := set.New[ledger.Hash](maps.Keys(t.nonLazy)...)
	return ret.Insert(maps.Keys(t.semiLazy)...)
}

func (t *TipPool) updateGaugesNoLock() {
	t.numNonLazy.Set(float64(len(t.nonLazy)))
	t.numSemiLazy.Set(float64(len(t.semiLazy)))
}

func (t *TipPool) registerMetrics() {
	t.numNonLazy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tangle_tippool_non_lazy_gauge",
		Help: "number of non-lazy tips",
	})
	t.numSemiLazy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tangle_tippool_semi_lazy_gauge",
		Help: "number of semi-lazy tips",
	})
	t.numEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_tippool_evicted_counter",
		Help: "number of lazy tips evicted from the pool",
	})
	t.MetricsRegistry().MustRegister(t.numNonLazy, t.numSemiLazy, t.numEvicted)
}
