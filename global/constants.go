package global

const (
	ConfigKeyLoggerLevel      = "logger.level"
	ConfigKeyLoggerOutput     = "logger.output"
	ConfigKeyLoggerTimeLayout = "logger.timelayout"
	ConfigKeyTraceTags        = "trace_tags"

	ConfigKeyDBType     = "db.type"
	ConfigKeyDBDir      = "db.dir"
	ConfigKeyDBGCPeriod = "db.gc_period"

	ConfigKeyGenesisFile          = "genesis.file"
	ConfigKeyCoordinatorPublicKey = "coordinator.public_key"
	ConfigKeyPoWTarget            = "pow.target"

	ConfigKeyTipPoolMaxDeltaNonLazy  = "tippool.max_delta_non_lazy"
	ConfigKeyTipPoolMaxDeltaSemiLazy = "tippool.max_delta_semi_lazy"
	ConfigKeyTipPoolMaxAgeNonLazy    = "tippool.max_age_non_lazy"
	ConfigKeyTipPoolMaxAgeSemiLazy   = "tippool.max_age_semi_lazy"

	ConfigKeySolidifierRequestPeriod      = "solidifier.request_period"
	ConfigKeySolidifierMaxRequestAttempts = "solidifier.max_request_attempts"
	ConfigKeySolidifierMaxRequestsPerSec  = "solidifier.max_requests_per_second"
	ConfigKeySolidifierRecheckPeriod      = "solidifier.recheck_period"

	ConfigKeyLedgerMaxRetries   = "ledger.max_retries"
	ConfigKeyLedgerRetryBackoff = "ledger.retry_backoff"

	ConfigKeyHeartbeatPeriod = "heartbeat.period"
	ConfigKeyIngestWorkers   = "workflow.ingest_workers"
	ConfigKeyQueueCapacity   = "workflow.queue_capacity"

	ConfigKeyAPIPort        = "api.port"
	ConfigKeyMetricsEnable  = "metrics.enable"
	ConfigKeyMetricsPort    = "metrics.port"
	ConfigKeyPProfEnable    = "pprof.enable"
	ConfigKeyPProfPort      = "pprof.port"
	ConfigKeyMemStatsPeriod = "memstats.period"
)

const (
	DBTypeBadger  = "badger"
	DBTypeLevelDB = "leveldb"
	DBTypeMemory  = "memory"

	DefaultDBDir = "tangledb"
)
