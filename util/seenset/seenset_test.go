package seenset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestBasic(t *testing.T) {
	t.Run("1", func(t *testing.T) {
		ss := New[int]()
		require.False(t, ss.Seen(314))
		require.True(t, ss.Seen(314))
		ss.Forget(314)
		require.False(t, ss.Seen(314))
	})
	t.Run("2", func(t *testing.T) {
		ss := New[[32]byte]()
		h1 := blake2b.Sum256([]byte{1})
		require.False(t, ss.Seen(h1, true))
		require.False(t, ss.Seen(h1))
		require.True(t, ss.Seen(h1))
	})
	t.Run("purge", func(t *testing.T) {
		ss := New[int]()
		ss.Seen(1)
		ss.Seen(2)
		time.Sleep(20 * time.Millisecond)
		ss.Seen(3)
		require.EqualValues(t, 2, ss.Purge(10*time.Millisecond))
		require.EqualValues(t, 1, ss.Len())
		require.True(t, ss.Seen(3))
	})
}
