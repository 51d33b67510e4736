package workerpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestBasic(t *testing.T) {
	t.Run("zero workers", func(t *testing.T) {
		require.Panics(t, func() {
			NewWorkerPool(0)
		})
	})
	t.Run("one worker", func(t *testing.T) {
		const howMany = 50
		wp := NewWorkerPool(1)
		var nw, counter atomic.Int32
		for i := 0; i < howMany; i++ {
			wp.Work(func() {
				require.True(t, nw.Inc() == 1)
				counter.Inc()
				time.Sleep(time.Millisecond)
				nw.Dec()
			})
		}
		wp.Wait()
		require.EqualValues(t, howMany, counter.Load())
		require.EqualValues(t, 0, wp.Len())
	})
	t.Run("many workers", func(t *testing.T) {
		const (
			numWorkers = 10
			howMany    = 200
		)
		wp := NewWorkerPool(numWorkers)
		var nw, counter atomic.Int32
		for i := 0; i < howMany; i++ {
			wp.Work(func() {
				require.True(t, nw.Inc() <= numWorkers)
				counter.Inc()
				time.Sleep(time.Millisecond)
				nw.Dec()
			})
		}
		wp.Wait()
		require.EqualValues(t, howMany, counter.Load())
	})
}
