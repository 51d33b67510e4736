package pull_tx_server

import (
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/lunfardo314/tangle/core/work_process"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	Environment interface {
		global.NodeGlobal
		TransactionBytes(h ledger.Hash) ([]byte, bool)
		SendTransactionTo(id peer.ID, txBytes []byte)
	}

	Config struct {
		QueueCapacity int
	}

	Input struct {
		ID     ledger.Hash
		PeerID peer.ID
	}

	// PullTxServer serves transaction requests of peers. Lookups may hit the storage,
	// so they are kept off the gossip dispatch path
	PullTxServer struct {
		Environment
		*work_process.WorkProcess[*Input]
		responseCounter prometheus.Counter
		missCounter     prometheus.Counter
	}
)

const (
	Name     = "pullTxServer"
	TraceTag = Name
)

func DefaultConfig() Config {
	return Config{QueueCapacity: 1000}
}

// New creates the server. Requests above the queue capacity block the gossip dispatcher
func New(env Environment, cfg Config) *PullTxServer {
	ret := &PullTxServer{
		Environment: env,
	}
	ret.WorkProcess = work_process.New[*Input](env, Name, ret.consume, cfg.QueueCapacity)
	ret.registerMetrics()
	return ret
}

func (d *PullTxServer) consume(inp *Input) {
	txBytes, found := d.TransactionBytes(inp.ID)
	if !found {
		d.missCounter.Inc()
		d.Tracef(TraceTag, "NOT FOUND %s, request from %s", inp.ID.StringShort, inp.PeerID.String)
		return
	}
	d.SendTransactionTo(inp.PeerID, txBytes)
	d.responseCounter.Inc()

	d.Tracef(TraceTag, "FOUND %s -> %s", inp.ID.StringShort, inp.PeerID.String)
}

func (d *PullTxServer) registerMetrics() {
	d.responseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_response_to_pull_counter",
		Help: "counts responses to transaction requests of peers",
	})
	d.missCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_response_to_pull_miss_counter",
		Help: "number of transaction requests from peers which could not be served",
	})
	d.MetricsRegistry().MustRegister(d.responseCounter, d.missCounter)
}
