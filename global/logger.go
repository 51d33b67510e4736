package global

import (
	"strings"

	"github.com/lunfardo314/tangle/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const TimeLayoutDefault = "01-02 15:04:05.000"

func NewLogger(name string, level zapcore.Level, outputs []string, timeLayout string) *zap.SugaredLogger {
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      outputs,
		ErrorOutputPaths: outputs,
		DisableCaller:    true,
	}

	if timeLayout == "" {
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(TimeLayoutDefault)
	} else {
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	}

	log, err := cfg.Build()
	util.AssertNoError(err)
	log = log.WithOptions(zap.IncreaseLevel(level), zap.AddStacktrace(zapcore.FatalLevel))

	return log.Sugar().Named(name)
}

// NewFromConfig creates global environment with the logger configured by 'logger.*' keys
func NewFromConfig() *Global {
	lvl := zapcore.InfoLevel
	if viper.GetString(ConfigKeyLoggerLevel) == "debug" {
		lvl = zapcore.DebugLevel
	}
	outputs := make([]string, 0)
	for _, o := range strings.Split(viper.GetString(ConfigKeyLoggerOutput), ",") {
		if o = strings.TrimSpace(o); o != "" {
			outputs = append(outputs, o)
		}
	}
	if _, found := util.FindFirst(outputs, func(el string) bool { return el == "stdout" }); !found {
		outputs = append(outputs, "stdout")
	}
	ret := New(NewLogger("[node]", lvl, outputs, viper.GetString(ConfigKeyLoggerTimeLayout)))
	ret.EnableTraceTags(viper.GetStringSlice(ConfigKeyTraceTags)...)
	return ret
}
