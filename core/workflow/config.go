package workflow

import (
	"time"

	"github.com/lunfardo314/tangle/core/ledgerstate"
	"github.com/lunfardo314/tangle/core/work_process/gossip"
	"github.com/lunfardo314/tangle/core/work_process/pull_client"
	"github.com/lunfardo314/tangle/core/work_process/pull_tx_server"
	"github.com/lunfardo314/tangle/core/work_process/tippool"
	"github.com/lunfardo314/tangle/core/work_process/txinput_queue"
	"go.uber.org/zap"
)

type (
	Config struct {
		TipPool    tippool.Config
		PullClient pull_client.Config
		PullServer pull_tx_server.Config
		Gossip     gossip.Config
		Writer     ledgerstate.WriterConfig
		TxInput    txinput_queue.Config
		// PoWTarget number of leading zero bits of issued transactions
		PoWTarget       int
		PoWWorkers      int
		HeartbeatPeriod time.Duration
		// RecheckPeriod period of pushing pending vertices back to the solidifier. 0 disables
		RecheckPeriod time.Duration
	}

	ConfigOption func(c *Config)
)

func DefaultConfig() Config {
	return Config{
		TipPool:         tippool.DefaultConfig(),
		PullClient:      pull_client.DefaultConfig(),
		PullServer:      pull_tx_server.DefaultConfig(),
		Gossip:          gossip.DefaultConfig(),
		Writer:          ledgerstate.DefaultWriterConfig(),
		TxInput:         txinput_queue.DefaultConfig(),
		PoWTarget:       0,
		PoWWorkers:      2,
		HeartbeatPeriod: 10 * time.Second,
		RecheckPeriod:   30 * time.Second,
	}
}

// WithPoWTarget sets target for issued and for received transactions
// Config key: 'pow.target'
func WithPoWTarget(target int) ConfigOption {
	return func(c *Config) {
		c.PoWTarget = target
		c.TxInput.MinPoW = target
	}
}

// WithIngestWorkers number of parallel ingestion workers
// Config key: 'workflow.ingest_workers'
func WithIngestWorkers(n int) ConfigOption {
	return func(c *Config) {
		c.TxInput.Workers = n
	}
}

// WithQueueCapacity bounds queues of ingestion, pull client, pull server and outbound gossip
// Config key: 'workflow.queue_capacity'
func WithQueueCapacity(capacity int) ConfigOption {
	return func(c *Config) {
		c.TxInput.QueueCapacity = capacity
		c.PullClient.QueueCapacity = capacity
		c.PullServer.QueueCapacity = capacity
		c.Gossip.QueueCapacity = capacity
	}
}

// WithoutHeartbeat used for testing
func WithoutHeartbeat(c *Config) {
	c.HeartbeatPeriod = 0
}

func (cfg *Config) log(log *zap.SugaredLogger) {
	log.Infof("[workflow config] tip pool: non-lazy delta <= %d, age <= %v; semi-lazy delta <= %d, age <= %v",
		cfg.TipPool.MaxDeltaNonLazy, cfg.TipPool.MaxAgeNonLazy, cfg.TipPool.MaxDeltaSemiLazy, cfg.TipPool.MaxAgeSemiLazy)
	log.Infof("[workflow config] pull: period %v, max attempts %d, max requests/sec %d",
		cfg.PullClient.RequestPeriod, cfg.PullClient.MaxAttempts, cfg.PullClient.MaxRequestsPerSecond)
	log.Infof("[workflow config] ledger writer: max retries %d, backoff %v", cfg.Writer.MaxRetries, cfg.Writer.RetryBackoff)
	log.Infof("[workflow config] ingest workers: %d, pow target: %d", cfg.TxInput.Workers, cfg.PoWTarget)
	log.Infof("[workflow config] queue capacity: ingest %d, pull %d, pull server %d, gossip %d",
		cfg.TxInput.QueueCapacity, cfg.PullClient.QueueCapacity, cfg.PullServer.QueueCapacity, cfg.Gossip.QueueCapacity)
	log.Infof("[workflow config] pending re-check period: %v", cfg.RecheckPeriod)
	if cfg.HeartbeatPeriod == 0 {
		log.Info("[workflow config] heartbeat disabled")
	}
}
