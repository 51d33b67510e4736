package countdown

import (
	"errors"
	"fmt"
	"time"

	"github.com/lunfardo314/tangle/util"
	"go.uber.org/atomic"
)

// Countdown is a test helper: the waiting side is released when the counter reaches exactly zero
type Countdown struct {
	counter atomic.Int32
	from    int32
	timeout time.Duration
	zero    chan struct{}
	under   chan struct{}
}

// New creates countdown from 'from'. Without timeout Wait blocks until zero is reached
func New(from int, timeout ...time.Duration) *Countdown {
	util.Assertf(from > 0, "countdown: starting point must be > 0")
	ret := &Countdown{
		from:  int32(from),
		zero:  make(chan struct{}),
		under: make(chan struct{}),
	}
	ret.counter.Store(ret.from)
	if len(timeout) > 0 {
		ret.timeout = timeout[0]
	}
	return ret
}

func (c *Countdown) Tick() {
	switch c.counter.Dec() {
	case 0:
		close(c.zero)
	case -1:
		close(c.under)
	}
}

func (c *Countdown) Wait() error {
	var expired <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-c.zero:
	case <-expired:
		return fmt.Errorf("countdown from %d: timeout %v expired at %d", c.from, c.timeout, c.counter.Load())
	}
	// catch extra ticks which arrive right after zero
	select {
	case <-c.under:
		return fmt.Errorf("countdown from %d: underflow", c.from)
	case <-time.After(10 * time.Millisecond):
		return nil
	}
}

// Wait waits for all countdowns and joins errors
func Wait(cd ...*Countdown) error {
	errs := make([]error, len(cd))
	done := make(chan int)
	for i := range cd {
		go func(i int) {
			errs[i] = cd[i].Wait()
			done <- i
		}(i)
	}
	for range cd {
		<-done
	}
	return errors.Join(errs...)
}
