package txinput_queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/lunfardo314/tangle/core/memdag"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/core/work_process"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/ledger/pow"
	"github.com/lunfardo314/tangle/util/seenset"
	"github.com/lunfardo314/tangle/util/workerpool"
	"github.com/prometheus/client_golang/prometheus"
)

// transaction input queue buffers incoming transactions from peers, from API and from local issuance.
// Transactions recently seen from peers are ignored. Each new transaction is processed by
// one of the workers: insert -> milestone validation -> solidification -> gossip

type (
	environment interface {
		global.NodeGlobal
		InsertTransaction(tx *ledger.Transaction) (memdag.InsertOutcome, *vertex.WrappedTx, error)
		ValidateMilestoneCandidate(vid *vertex.WrappedTx) (ledger.MilestoneIndex, error)
		Solidify(vid *vertex.WrappedTx)
		BroadcastTransaction(txBytes []byte, except ...peer.ID)
	}

	Config struct {
		Workers int
		// MinPoW minimal number of leading zero bits of the transaction hash. 0 means not checked
		MinPoW  int
		SeenTTL time.Duration
		// QueueCapacity bounds number of not yet consumed inputs. Producers block when it is reached
		QueueCapacity int
	}

	Input struct {
		TxBytes []byte
		// Tx is already parsed transaction. If nil, TxBytes are parsed
		Tx *ledger.Transaction
		// From nil means transaction did not come from a peer
		From     *peer.ID
		Callback func(vid *vertex.WrappedTx, err error)
	}

	TxInputQueue struct {
		environment
		*work_process.WorkProcess[*Input]
		cfg  Config
		seen *seenset.SeenSet[ledger.Hash]
		pool *workerpool.WorkerPool
		// metrics
		inputTxCounter   prometheus.Counter
		badTxCounter     prometheus.Counter
		filterHitCounter prometheus.Counter
		gossipedCounter  prometheus.Counter
		queueSize        prometheus.Gauge
	}
)

const (
	Name        = "txInputQueue"
	TraceTag    = Name
	purgePeriod = 5 * time.Second
)

func DefaultConfig() Config {
	return Config{
		Workers:       4,
		SeenTTL:       time.Minute,
		QueueCapacity: 10_000,
	}
}

func New(env environment, cfg Config) *TxInputQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	ret := &TxInputQueue{
		environment: env,
		cfg:         cfg,
		seen:        seenset.New[ledger.Hash](),
		pool:        workerpool.NewWorkerPool(cfg.Workers),
	}
	ret.WorkProcess = work_process.New[*Input](env, Name, ret.consume, cfg.QueueCapacity)
	ret.registerMetrics()
	return ret
}

func (q *TxInputQueue) Start() {
	q.WorkProcess.Start()
	q.RepeatInBackground(Name+"_purge", purgePeriod, func() bool {
		if n := q.seen.Purge(q.cfg.SeenTTL); n > 0 {
			q.Tracef(TraceTag, "purged %d seen transaction IDs", n)
		}
		return true
	}, true)
}

func (q *TxInputQueue) consume(inp *Input) {
	q.inputTxCounter.Inc()
	q.queueSize.Set(float64(q.Queue.Len()))

	tx, err := q.parse(inp)
	if err != nil {
		q.badTxCounter.Inc()
		q.Log().Warnf("[%s] %v", Name, err)
		q.callback(inp, nil, err)
		return
	}
	if inp.From != nil && q.seen.Seen(tx.ID()) {
		// repeating gossip is ignored
		q.filterHitCounter.Inc()
		return
	}
	q.pool.Work(func() {
		q.process(tx, inp)
	})
}

func (q *TxInputQueue) parse(inp *Input) (*ledger.Transaction, error) {
	tx := inp.Tx
	if tx == nil {
		var err error
		if tx, err = ledger.TransactionFromBytes(inp.TxBytes); err != nil {
			return nil, err
		}
	}
	if q.cfg.MinPoW > 0 && !pow.MeetsDifficulty(tx.Bytes(), q.cfg.MinPoW) {
		return nil, fmt.Errorf("transaction %s: %w", tx.ID().StringShort(), ledger.ErrNotEnoughPoW)
	}
	return tx, nil
}

func (q *TxInputQueue) process(tx *ledger.Transaction, inp *Input) {
	outcome, vid, err := q.InsertTransaction(tx)
	if err != nil {
		// the transaction may arrive again
		q.seen.Forget(tx.ID())
		q.Log().Errorf("[%s] insert %s: %v", Name, tx.ID().StringShort(), err)
		q.callback(inp, nil, err)
		return
	}
	if outcome == memdag.AlreadyExists {
		q.callback(inp, vid, nil)
		return
	}

	if tx.IsMilestone() {
		if idx, err := q.ValidateMilestoneCandidate(vid); err != nil {
			if !errors.Is(err, ledger.ErrStaleIndex) {
				q.badTxCounter.Inc()
			}
			q.Log().Warnf("[%s] milestone candidate %s rejected: %v", Name, vid.IDShortString(), err)
		} else {
			q.Tracef(TraceTag, "milestone candidate %s with index %d is valid", vid.IDShortString, idx)
		}
	}
	q.Solidify(vid)

	if inp.From != nil {
		q.BroadcastTransaction(tx.Bytes(), *inp.From)
	} else {
		q.BroadcastTransaction(tx.Bytes())
	}
	q.gossipedCounter.Inc()
	q.callback(inp, vid, nil)
}

func (q *TxInputQueue) callback(inp *Input, vid *vertex.WrappedTx, err error) {
	if inp.Callback != nil {
		inp.Callback(vid, err)
	}
}

// TransactionBytesIn (async)
func (q *TxInputQueue) TransactionBytesIn(txBytes []byte, from *peer.ID, callback ...func(vid *vertex.WrappedTx, err error)) {
	inp := &Input{TxBytes: txBytes, From: from}
	if len(callback) > 0 {
		inp.Callback = callback[0]
	}
	q.Queue.Push(inp)
}

// TransactionIn parsed transaction (async)
func (q *TxInputQueue) TransactionIn(tx *ledger.Transaction, callback ...func(vid *vertex.WrappedTx, err error)) {
	inp := &Input{Tx: tx}
	if len(callback) > 0 {
		inp.Callback = callback[0]
	}
	q.Queue.Push(inp)
}

// WaitIdle waits until all started workers are finished. Used by tests
func (q *TxInputQueue) WaitIdle() {
	q.pool.Wait()
}

func (q *TxInputQueue) registerMetrics() {
	q.inputTxCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_txInputQueue_in",
		Help: "input queue counter",
	})
	q.badTxCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_txInputQueue_bad",
		Help: "number of non-parseable or invalid transactions",
	})
	q.filterHitCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_txInputQueue_repeating",
		Help: "number of ignored repeating transactions",
	})
	q.gossipedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_txInputQueue_gossiped",
		Help: "number of gossiped",
	})
	q.queueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tangle_txInputQueue_queueSize",
		Help: "size of the input queue",
	})
	q.MetricsRegistry().MustRegister(q.inputTxCounter, q.badTxCounter, q.filterHitCounter, q.gossipedCounter, q.queueSize)
}
