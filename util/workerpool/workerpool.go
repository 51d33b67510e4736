package workerpool

import (
	"sync"

	"github.com/lunfardo314/tangle/util"
)

// WorkerPool limits number of concurrently running tasks
type WorkerPool struct {
	slots chan struct{}
	wg    sync.WaitGroup
}

func NewWorkerPool(maxWorkers int) *WorkerPool {
	util.Assertf(maxWorkers > 0, "maximum workers parameter must be positive")
	return &WorkerPool{slots: make(chan struct{}, maxWorkers)}
}

// Work blocks until a worker slot is available, then runs fun in a separate goroutine
func (wp *WorkerPool) Work(fun func()) {
	wp.slots <- struct{}{}
	wp.wg.Add(1)
	go func() {
		defer func() {
			<-wp.slots
			wp.wg.Done()
		}()
		fun()
	}()
}

// Wait blocks until all started tasks are finished
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) Len() int {
	return len(wp.slots)
}
