package util

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// EvalLazyArgs evaluates arguments of type func() any and func() string.
// Used to avoid formatting costs of trace messages which are not logged
func EvalLazyArgs(args ...any) []any {
	ret := make([]any, len(args))
	for i, arg := range args {
		switch fun := arg.(type) {
		case func() string:
			ret[i] = fun()
		case func() any:
			ret[i] = fun()
		default:
			ret[i] = arg
		}
	}
	return ret
}

// Assertf panics with formatted error if the condition does not hold. Arguments may be lazy
func Assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	panic(fmt.Errorf("assertion failed: "+format, EvalLazyArgs(args...)...))
}

func AssertNoError(err error, prefix ...string) {
	if err == nil {
		return
	}
	if len(prefix) == 0 {
		panic(fmt.Errorf("assertion failed: %w", err))
	}
	panic(fmt.Errorf("assertion failed: %s: %w", strings.Join(prefix, " "), err))
}

// RequireErrorWith requires error which contains all fragments
func RequireErrorWith(t *testing.T, err error, fragments ...string) {
	require.Error(t, err)
	for _, f := range fragments {
		require.Contains(t, err.Error(), f)
	}
}
