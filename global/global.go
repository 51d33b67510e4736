package global

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/tangle/util/set"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	Logging interface {
		Log() *zap.SugaredLogger
		Tracef(tag string, format string, args ...any)
		Assertf(cond bool, format string, args ...any)
		AssertNoError(err error, prefix ...string)
	}

	Metrics interface {
		MetricsRegistry() *prometheus.Registry
	}

	// NodeGlobal is the environment every component is constructed with. There is no process-wide instance
	NodeGlobal interface {
		Logging
		Metrics
		Ctx() context.Context
		Stop()
		IsShuttingDown() bool
		MarkWorkProcessStarted(name string)
		MarkWorkProcessStopped(name string)
		RepeatInBackground(name string, period time.Duration, fun func() bool, skipFirst ...bool)
	}

	Global struct {
		*zap.SugaredLogger
		ctx             context.Context
		stopFun         context.CancelFunc
		once            sync.Once
		shuttingDown    atomic.Bool
		enabledTrace    atomic.Bool
		traceTagsMutex  sync.RWMutex
		traceTags       set.Set[string]
		metricsRegistry *prometheus.Registry
		// work process bookkeeping
		mutex       sync.Mutex
		components  set.Set[string]
		wgProcesses sync.WaitGroup
	}
)

func New(log *zap.SugaredLogger) *Global {
	ctx, cancelFun := context.WithCancel(context.Background())
	return &Global{
		SugaredLogger:   log,
		ctx:             ctx,
		stopFun:         cancelFun,
		traceTags:       set.New[string](),
		metricsRegistry: prometheus.NewRegistry(),
		components:      set.New[string](),
	}
}

func NewDefault() *Global {
	return New(NewLogger("", zapcore.InfoLevel, nil, ""))
}

func (l *Global) Log() *zap.SugaredLogger {
	return l.SugaredLogger
}

func (l *Global) Ctx() context.Context {
	return l.ctx
}

func (l *Global) Stop() {
	l.once.Do(func() {
		l.shuttingDown.Store(true)
		l.Log().Info("shutting down..")
		l.stopFun()
	})
}

func (l *Global) IsShuttingDown() bool {
	return l.shuttingDown.Load()
}

func (l *Global) MetricsRegistry() *prometheus.Registry {
	return l.metricsRegistry
}

func (l *Global) Assertf(cond bool, format string, args ...any) {
	if !cond {
		l.Log().Fatalf("assertion failed: "+format, util.EvalLazyArgs(args...)...)
	}
}

func (l *Global) AssertNoError(err error, prefix ...string) {
	if err != nil {
		pref := "error: "
		if len(prefix) > 0 {
			pref = strings.Join(prefix, " ") + ": "
		}
		l.Log().Fatalf(pref+"%v", err)
	}
}

func (l *Global) MarkWorkProcessStarted(name string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	util.Assertf(!l.components.Contains(name), "work process %s already started", name)
	l.components.Insert(name)
	l.wgProcesses.Add(1)
}

func (l *Global) MarkWorkProcessStopped(name string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	util.Assertf(l.components.Contains(name), "work process %s not started", name)
	l.components.Remove(name)
	l.wgProcesses.Done()
}

// MustWaitAllWorkProcessesStop waits until all work processes reported stop or timeout expires
func (l *Global) MustWaitAllWorkProcessesStop(timeout ...time.Duration) {
	deadline := time.Duration(0)
	if len(timeout) > 0 {
		deadline = timeout[0]
	}
	exit := make(chan struct{})
	go func() {
		l.wgProcesses.Wait()
		close(exit)
	}()
	if deadline == 0 {
		<-exit
		l.Log().Info("all work processes stopped")
		return
	}
	select {
	case <-exit:
		l.Log().Info("all work processes stopped")
	case <-time.After(deadline):
		l.mutex.Lock()
		running := l.components.Ordered(func(el1, el2 string) bool { return el1 < el2 })
		l.mutex.Unlock()
		l.Log().Errorf("work processes didn't stop in %v: %s", deadline, strings.Join(running, ","))
	}
}

// RepeatInBackground runs fun periodically until it returns false or the global context is cancelled
func (l *Global) RepeatInBackground(name string, period time.Duration, fun func() bool, skipFirst ...bool) {
	util.RunWrappedRoutine(name, func() {
		if len(skipFirst) == 0 || !skipFirst[0] {
			if !fun() {
				return
			}
		}
		for {
			select {
			case <-l.ctx.Done():
				return
			case <-time.After(period):
				if !fun() {
					return
				}
			}
		}
	}, func(err error) {
		l.Log().Fatal(err)
	})
}

func (l *Global) EnableTraceTags(tags ...string) {
	l.traceTagsMutex.Lock()
	enabled := make([]string, 0)
	for _, t := range tags {
		for _, t1 := range strings.Split(t, ",") {
			if t1 = strings.TrimSpace(t1); t1 != "" {
				l.traceTags.Insert(t1)
				enabled = append(enabled, t1)
			}
		}
	}
	if len(enabled) > 0 {
		l.enabledTrace.Store(true)
	}
	l.traceTagsMutex.Unlock()

	for _, tag := range enabled {
		l.Tracef(tag, "trace tag enabled")
	}
}

func (l *Global) DisableTraceTag(tag string) {
	l.traceTagsMutex.Lock()
	defer l.traceTagsMutex.Unlock()

	l.traceTags.Remove(tag)
	if len(l.traceTags) == 0 {
		l.enabledTrace.Store(false)
	}
}

func (l *Global) TraceLog(log *zap.SugaredLogger, tag string, format string, args ...any) {
	if !l.enabledTrace.Load() {
		return
	}

	l.traceTagsMutex.RLock()
	defer l.traceTagsMutex.RUnlock()

	for _, t := range strings.Split(tag, ",") {
		if l.traceTags.Contains(t) {
			log.Infof("TRACE(%s) %s", t, fmt.Sprintf(format, util.EvalLazyArgs(args...)...))
			return
		}
	}
}

func (l *Global) Tracef(tag string, format string, args ...any) {
	l.TraceLog(l.Log(), tag, format, args...)
}
