package util

import (
	"fmt"
	"runtime/debug"
)

// CatchPanicOrError runs f and returns either its error or the recovered panic as error.
// Panic values which are errors are wrapped, so errors.Is works on them
func CatchPanicOrError(f func() error, includeStack ...bool) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			err = e
		} else {
			err = fmt.Errorf("panic: %v", r)
		}
		if len(includeStack) > 0 && includeStack[0] {
			err = fmt.Errorf("%w\n%s", err, debug.Stack())
		}
	}()
	return f()
}

// RunWrappedRoutine runs fun in a goroutine. Uncaught panic is passed to onUncaughtPanic, or re-panics if it is nil
func RunWrappedRoutine(name string, fun func(), onUncaughtPanic func(err error)) {
	go func() {
		err := CatchPanicOrError(func() error {
			fun()
			return nil
		}, true)
		if err == nil {
			return
		}
		err = fmt.Errorf("uncaught panic in '%s': %w", name, err)
		if onUncaughtPanic == nil {
			panic(err)
		}
		onUncaughtPanic(err)
	}()
}
