package node

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/lunfardo314/tangle/core/workflow"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/util"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFileName = "tangle"

func init() {
	pflag.String(global.ConfigKeyLoggerLevel, "info", "log level: info | debug")
	pflag.String(global.ConfigKeyLoggerTimeLayout, global.TimeLayoutDefault, "time format")
	pflag.String(global.ConfigKeyLoggerOutput, "stdout", "comma separated list where to write log")
	pflag.StringSlice(global.ConfigKeyTraceTags, nil, "enabled trace tags")

	pflag.String(global.ConfigKeyDBType, global.DBTypeBadger, "one of: badger | leveldb | memory")
	pflag.String(global.ConfigKeyDBDir, global.DefaultDBDir, "database directory")
	pflag.Duration(global.ConfigKeyDBGCPeriod, 5*time.Minute, "badger value log GC period, 0 disables")

	pflag.String(global.ConfigKeyGenesisFile, "", "genesis file used to initialize an empty database")
	pflag.String(global.ConfigKeyCoordinatorPublicKey, "", "hex-encoded ed25519 public key of the coordinator")
	pflag.Int(global.ConfigKeyPoWTarget, 0, "required number of leading zero bits of the transaction PoW")

	pflag.Uint32(global.ConfigKeyTipPoolMaxDeltaNonLazy, 2, "max milestone delta of a non-lazy tip")
	pflag.Uint32(global.ConfigKeyTipPoolMaxDeltaSemiLazy, 7, "max milestone delta of a semi-lazy tip")
	pflag.Duration(global.ConfigKeyTipPoolMaxAgeNonLazy, 30*time.Second, "max age of a non-lazy tip")
	pflag.Duration(global.ConfigKeyTipPoolMaxAgeSemiLazy, 2*time.Minute, "max age of a semi-lazy tip")

	pflag.Duration(global.ConfigKeySolidifierRequestPeriod, time.Second, "period of missing transaction requests")
	pflag.Int(global.ConfigKeySolidifierMaxRequestAttempts, 10, "attempts before a missing transaction is reported stalled")
	pflag.Int(global.ConfigKeySolidifierMaxRequestsPerSec, 100, "limit of outgoing missing transaction requests")
	pflag.Duration(global.ConfigKeySolidifierRecheckPeriod, 30*time.Second, "period of re-checking pending transactions, 0 disables")

	pflag.Int(global.ConfigKeyLedgerMaxRetries, 5, "retries of a failed ledger write before the node halts writes")
	pflag.Duration(global.ConfigKeyLedgerRetryBackoff, 200*time.Millisecond, "initial backoff of ledger write retries")

	pflag.Duration(global.ConfigKeyHeartbeatPeriod, 10*time.Second, "heartbeat period, 0 disables")
	pflag.Int(global.ConfigKeyIngestWorkers, 4, "number of parallel transaction ingestion workers")
	pflag.Int(global.ConfigKeyQueueCapacity, 10_000, "capacity of ingestion, pull and gossip queues, 0 means unbounded")

	pflag.Int(global.ConfigKeyAPIPort, 14100, "API server port, 0 disables")
	pflag.Bool(global.ConfigKeyMetricsEnable, false, "expose Prometheus metrics")
	pflag.Int(global.ConfigKeyMetricsPort, 14000, "Prometheus metrics port")
	pflag.Bool(global.ConfigKeyPProfEnable, false, "enable pprof")
	pflag.Int(global.ConfigKeyPProfPort, 8080, "pprof port")
	pflag.Duration(global.ConfigKeyMemStatsPeriod, 10*time.Second, "memory stats logging period, 0 disables")
}

// initConfig binds command line flags and reads optional 'tangle.yaml' from the working directory
func initConfig() error {
	pflag.Parse()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return err
	}
	viper.SetConfigName(configFileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	return nil
}

// workflowOptionsFromConfig all workflow parameters are taken from viper
func workflowOptionsFromConfig() []workflow.ConfigOption {
	return []workflow.ConfigOption{
		func(c *workflow.Config) {
			c.TipPool.MaxDeltaNonLazy = viper.GetUint32(global.ConfigKeyTipPoolMaxDeltaNonLazy)
			c.TipPool.MaxDeltaSemiLazy = viper.GetUint32(global.ConfigKeyTipPoolMaxDeltaSemiLazy)
			c.TipPool.MaxAgeNonLazy = viper.GetDuration(global.ConfigKeyTipPoolMaxAgeNonLazy)
			c.TipPool.MaxAgeSemiLazy = viper.GetDuration(global.ConfigKeyTipPoolMaxAgeSemiLazy)

			c.PullClient.RequestPeriod = viper.GetDuration(global.ConfigKeySolidifierRequestPeriod)
			c.PullClient.MaxAttempts = viper.GetInt(global.ConfigKeySolidifierMaxRequestAttempts)
			c.PullClient.MaxRequestsPerSecond = viper.GetInt(global.ConfigKeySolidifierMaxRequestsPerSec)
			c.RecheckPeriod = viper.GetDuration(global.ConfigKeySolidifierRecheckPeriod)

			c.Writer.MaxRetries = viper.GetInt(global.ConfigKeyLedgerMaxRetries)
			c.Writer.RetryBackoff = viper.GetDuration(global.ConfigKeyLedgerRetryBackoff)

			c.HeartbeatPeriod = viper.GetDuration(global.ConfigKeyHeartbeatPeriod)
		},
		workflow.WithPoWTarget(viper.GetInt(global.ConfigKeyPoWTarget)),
		workflow.WithIngestWorkers(viper.GetInt(global.ConfigKeyIngestWorkers)),
		workflow.WithQueueCapacity(viper.GetInt(global.ConfigKeyQueueCapacity)),
	}
}

// coordinatorKeyFromConfig returns nil if the key is not configured
func coordinatorKeyFromConfig() (ed25519.PublicKey, error) {
	s := viper.GetString(global.ConfigKeyCoordinatorPublicKey)
	if s == "" {
		return nil, nil
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("wrong '%s': %w", global.ConfigKeyCoordinatorPublicKey, err)
	}
	if len(data) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("wrong '%s': expected %d bytes, got %d", global.ConfigKeyCoordinatorPublicKey, ed25519.PublicKeySize, len(data))
	}
	return data, nil
}

func mustPortFromConfig(key string) int {
	port := viper.GetInt(key)
	util.Assertf(port >= 0 && port < 1<<16, "wrong port '%s': %d", key, port)
	return port
}
