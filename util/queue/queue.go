package queue

import (
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
	"github.com/lunfardo314/tangle/util"
)

type (
	// Queue implements variable and adaptive size FIFO queue. Unlike channels, never jams unless
	// the capacity bound is set. With capacity bound, Push blocks while the number of elements
	// not yet consumed reaches the capacity
	Queue[T any] struct {
		d                       *deque.Deque[T] // variable size deque
		inCh                    chan _inElem[T]
		outCh                   chan T
		consume                 func(e T)
		inMutex                 sync.RWMutex
		closing                 bool
		processRemainingOnClose bool
		len                     atomic.Int32
		slots                   chan struct{} // nil if unbounded
		consumed                chan struct{} // closed when consume loop exits
		closed                  chan struct{}
	}

	_inElem[T any] struct {
		elem     T
		priority bool
	}
)

func New[T any](consume func(e T)) *Queue[T] {
	return NewBounded[T](consume, 0)
}

// NewBounded creates queue with capacity bound. Capacity 0 means unbounded
func NewBounded[T any](consume func(e T), capacity int) *Queue[T] {
	util.Assertf(capacity >= 0, "queue capacity must be non-negative")
	ret := &Queue[T]{
		d:        new(deque.Deque[T]),
		inCh:     make(chan _inElem[T]),
		outCh:    make(chan T),
		consume:  consume,
		consumed: make(chan struct{}),
		closed:   make(chan struct{}),
	}
	if capacity > 0 {
		ret.slots = make(chan struct{}, capacity)
	}
	go ret.inputLoop()
	go ret.consumeLoop()
	return ret
}

// Close queue must be closed in order to close channels and stop goroutines
func (q *Queue[T]) Close(processRemaining bool) {
	q.inMutex.Lock()
	defer q.inMutex.Unlock()

	if !q.closing {
		q.closing = true
		q.processRemainingOnClose = processRemaining
		close(q.inCh)
		close(q.closed)
	}
}

// WaitConsumed blocks until the consume loop exits after Close. The element being consumed at the
// moment of closing is always processed till the end
func (q *Queue[T]) WaitConsumed() {
	<-q.consumed
}

// Push places element into the queue optionally with priority
func (q *Queue[T]) Push(e T, priority ...bool) {
	if q.slots != nil {
		select {
		case q.slots <- struct{}{}:
		case <-q.closed:
			return
		}
	}
	q.inMutex.RLock()
	defer q.inMutex.RUnlock()

	if q.closing {
		// ignore when closing
		q.releaseSlot()
		return
	}
	prio := false
	if len(priority) > 0 {
		prio = priority[0]
	}
	q.inCh <- _inElem[T]{
		elem:     e,
		priority: prio,
	}
}

func (q *Queue[T]) Len() int {
	return int(q.len.Load())
}

func (q *Queue[T]) releaseSlot() {
	if q.slots != nil {
		select {
		case <-q.slots:
		default:
		}
	}
}

func (q *Queue[T]) pushToBuffer(e _inElem[T]) {
	if e.priority {
		q.d.PushFront(e.elem)
	} else {
		q.d.PushBack(e.elem)
	}
}

func (q *Queue[T]) inputLoop() {
	defer close(q.outCh)

	for {
		// read incoming
		if q.d.Len() == 0 {
			// buffer is empty. Waits for incoming element
			e, ok := <-q.inCh
			if !ok {
				return
			}
			q.pushToBuffer(e)
		} else {
			// tries to read incoming element but does not block because buffer has data to be consumed
			select {
			case e, ok := <-q.inCh:
				if ok {
					q.pushToBuffer(e)
				} else {
					if !q.processRemainingOnClose {
						return
					}
				}
			default:
			}
		}

		util.Assertf(q.d.Len() > 0, "q.d.Len()>0")
		// sends front element (FIFO) into the out channel. If consumer is busy, just skips
		select {
		case q.outCh <- q.d.Front():
			q.d.PopFront()
		default:
		}
		q.len.Store(int32(q.d.Len()))
	}
}

func (q *Queue[T]) consumeLoop() {
	defer close(q.consumed)

	for e := range q.outCh {
		q.consume(e)
		q.releaseSlot()
	}
}
