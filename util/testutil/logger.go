package testutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewNamedLogger console logger to stderr for tests. Default level is info
func NewNamedLogger(name string, logLevel ...zapcore.Level) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	if len(logLevel) > 0 {
		cfg.Level = zap.NewAtomicLevelAt(logLevel[0])
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("04:05.00000")

	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log.Sugar().Named(name)
}
