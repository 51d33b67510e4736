package pull_client

import (
	"sync"
	"time"

	"github.com/lunfardo314/tangle/core/work_process"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// pull_client is a queued work process which requests missing transactions from peers.
// It repeats requests for the transaction periodically until stopped or until
// the maximum number of attempts is reached. Then the transaction is reported stalled

type (
	environment interface {
		global.NodeGlobal
		// HasTransaction true if the transaction is already in the tangle
		HasTransaction(h ledger.Hash) bool
		RequestTransaction(h ledger.Hash)
		TransactionStalled(h ledger.Hash, attempts int)
	}

	Config struct {
		RequestPeriod        time.Duration
		MaxAttempts          int
		MaxRequestsPerSecond int
		QueueCapacity        int
	}

	Input struct {
		Hash ledger.Hash
		Stop bool
		By   string
	}

	PullClient struct {
		environment
		*work_process.WorkProcess[*Input]
		cfg     Config
		limiter *rate.Limiter
		// set of wanted transactions
		mutex    sync.RWMutex
		pullList map[ledger.Hash]pullRecord
		// metrics
		txPullRequestsTotal prometheus.Counter
		txPullRequestsSent  prometheus.Counter
		pullTime            prometheus.Gauge
		numStalled          prometheus.Counter
	}

	pullRecord struct {
		start        time.Time
		nextDeadline time.Time
		attempts     int
	}
)

const (
	Name           = "pullClient"
	TraceTag       = Name
	pullLoopPeriod = 50 * time.Millisecond
)

func DefaultConfig() Config {
	return Config{
		RequestPeriod:        time.Second,
		MaxAttempts:          10,
		MaxRequestsPerSecond: 100,
		QueueCapacity:        10_000,
	}
}

func New(env environment, cfg Config) *PullClient {
	ret := &PullClient{
		environment: env,
		cfg:         cfg,
		limiter:     rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), cfg.MaxRequestsPerSecond),
		pullList:    make(map[ledger.Hash]pullRecord),
	}
	ret.WorkProcess = work_process.New[*Input](env, Name, ret.consume, cfg.QueueCapacity)
	ret.registerMetrics()
	return ret
}

func (p *PullClient) Start() {
	p.WorkProcess.Start()
	p.RepeatInBackground(Name+"_background_loop", pullLoopPeriod, func() bool {
		p.repeatMatured()
		return true
	}, true)
}

func (p *PullClient) consume(inp *Input) {
	if inp.Stop {
		p.stopPulling(inp.Hash)
	} else {
		p.startPulling(inp.Hash, inp.By)
	}
}

func (p *PullClient) startPulling(h ledger.Hash, by string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, already := p.pullList[h]; already {
		return
	}
	if p.HasTransaction(h) {
		// arrived while the request was queued
		p.Tracef(TraceTag, "%s requested by %s is already present", h.StringShort, by)
		return
	}
	p.txPullRequestsTotal.Inc()

	rec := pullRecord{start: time.Now()}
	if p.limiter.Allow() {
		p.RequestTransaction(h)
		p.txPullRequestsSent.Inc()
		rec.attempts = 1
		rec.nextDeadline = rec.start.Add(p.cfg.RequestPeriod)
	}
	p.pullList[h] = rec
	p.Tracef(TraceTag, "%s added to the pull list by %s. Pull list size: %d", h.StringShort, by, len(p.pullList))
}

// repeatMatured re-sends requests which were not satisfied within request period.
// Requests which exhausted attempts are dropped and reported stalled
func (p *PullClient) repeatMatured() {
	stalled := make(map[ledger.Hash]int)

	p.mutex.Lock()
	nowis := time.Now()
	for h, rec := range p.pullList {
		if nowis.Before(rec.nextDeadline) {
			continue
		}
		if rec.attempts >= p.cfg.MaxAttempts {
			delete(p.pullList, h)
			stalled[h] = rec.attempts
			continue
		}
		if !p.limiter.Allow() {
			// leave the rest for the next round
			break
		}
		p.RequestTransaction(h)
		p.txPullRequestsSent.Inc()
		rec.attempts++
		rec.nextDeadline = nowis.Add(p.cfg.RequestPeriod)
		p.pullList[h] = rec
	}
	p.mutex.Unlock()

	for h, attempts := range stalled {
		p.numStalled.Inc()
		p.Log().Warnf("[%s] transaction %s stalled after %d request attempts", Name, h.StringShort(), attempts)
		p.TransactionStalled(h, attempts)
	}
}

// Pull starts pulling the transaction (async)
func (p *PullClient) Pull(h ledger.Hash, by string) {
	p.Queue.Push(&Input{
		Hash: h,
		By:   by,
	})
}

// StopPulling stops pulling the transaction (async)
func (p *PullClient) StopPulling(h ledger.Hash) {
	p.Queue.Push(&Input{
		Hash: h,
		Stop: true,
	})
}

// stopPulling stops pulling the transaction (sync)
func (p *PullClient) stopPulling(h ledger.Hash) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if rec, found := p.pullList[h]; found {
		delete(p.pullList, h)

		p.pullTime.Set(float64(time.Since(rec.start) / time.Millisecond))
		p.Tracef(TraceTag, "stop pulling %s", h.StringShort)
	}
}

func (p *PullClient) IsPulling(h ledger.Hash) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	_, found := p.pullList[h]
	return found
}

func (p *PullClient) NumPulling() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return len(p.pullList)
}

func (p *PullClient) registerMetrics() {
	p.txPullRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_txPullRequests_Total_counter",
		Help: "total number of missing transactions to pull",
	})
	p.txPullRequestsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_txPullRequestsSent_counter",
		Help: "number of transaction requests sent to peers, including repeated",
	})
	p.pullTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tangle_pullTime_gauge",
		Help: "milliseconds between start and stop pull transaction",
	})
	p.numStalled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_txStalled_counter",
		Help: "number of transactions not received after all request attempts",
	})
	p.MetricsRegistry().MustRegister(p.txPullRequestsTotal, p.txPullRequestsSent, p.pullTime, p.numStalled)
}
