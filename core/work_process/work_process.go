package work_process

import (
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/util/queue"
)

type (
	Environment interface {
		global.NodeGlobal
	}

	// WorkProcess is a queue with a single consumer goroutine, stopped by the global context
	WorkProcess[T any] struct {
		Environment
		*queue.Queue[T]
		Name     string
		consumer func(inp T)
		capacity int
	}
)

func New[T any](env Environment, name string, consumer func(inp T), capacity ...int) *WorkProcess[T] {
	c := 0
	if len(capacity) > 0 {
		c = capacity[0]
	}
	return &WorkProcess[T]{
		Environment: env,
		Name:        name,
		consumer:    consumer,
		capacity:    c,
	}
}

func (wp *WorkProcess[T]) Start() {
	wp.Queue = queue.NewBounded(wp.consumer, wp.capacity)
	wp.MarkWorkProcessStarted(wp.Name)
	wp.Log().Infof("[%s] STARTED", wp.Name)

	go func() {
		// work process stops by observing closing global context
		<-wp.Ctx().Done()

		// element being consumed is processed till the end, the rest is dropped
		wp.Queue.Close(false)
		wp.Queue.WaitConsumed()
		wp.MarkWorkProcessStopped(wp.Name)
		wp.Log().Infof("[%s] STOPPED", wp.Name)
	}()
}
