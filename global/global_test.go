package global

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap/zapcore"
)

func TestGlobal(t *testing.T) {
	t.Run("work processes", func(t *testing.T) {
		glb := New(NewLogger("test", zapcore.InfoLevel, nil, ""))
		glb.MarkWorkProcessStarted("a")
		glb.MarkWorkProcessStarted("b")
		require.Panics(t, func() {
			glb.MarkWorkProcessStarted("a")
		})
		go func() {
			<-glb.Ctx().Done()
			glb.MarkWorkProcessStopped("a")
			glb.MarkWorkProcessStopped("b")
		}()
		require.False(t, glb.IsShuttingDown())
		glb.Stop()
		glb.Stop()
		require.True(t, glb.IsShuttingDown())
		glb.MustWaitAllWorkProcessesStop(time.Second)
	})
	t.Run("repeat", func(t *testing.T) {
		glb := NewDefault()
		var counter atomic.Int32
		glb.RepeatInBackground("test_loop", 5*time.Millisecond, func() bool {
			return counter.Inc() < 3
		})
		require.Eventually(t, func() bool {
			return counter.Load() == 3
		}, time.Second, 5*time.Millisecond)
		glb.Stop()
	})
	t.Run("trace tags", func(t *testing.T) {
		glb := NewDefault()
		glb.EnableTraceTags("ledger, solidifier", "tippool")
		require.True(t, glb.enabledTrace.Load())
		require.True(t, glb.traceTags.Contains("ledger"))
		require.True(t, glb.traceTags.Contains("solidifier"))
		require.True(t, glb.traceTags.Contains("tippool"))
		glb.Tracef("ledger", "%s", func() any { return "lazy" })

		glb.DisableTraceTag("ledger")
		glb.DisableTraceTag("solidifier")
		glb.DisableTraceTag("tippool")
		require.False(t, glb.enabledTrace.Load())
	})
}
