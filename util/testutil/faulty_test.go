package testutil

import (
	"testing"

	"github.com/lunfardo314/unitrie/common"
	"github.com/stretchr/testify/require"
)

func TestFaultyKVStore(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := NewFaultyInMemoryKVStore()
		f.Set([]byte("a"), []byte("1"))
		b := f.BatchedWriter()
		b.Set([]byte("b"), []byte("2"))
		require.NoError(t, b.Commit())
		require.EqualValues(t, []byte("1"), f.Get([]byte("a")))
		require.EqualValues(t, []byte("2"), f.Get([]byte("b")))
	})
	t.Run("failing", func(t *testing.T) {
		f := NewFaultyInMemoryKVStore()
		f.SetFailing(true)
		require.PanicsWithValue(t, common.ErrDBUnavailable, func() {
			f.Set([]byte("a"), []byte("1"))
		})
		b := f.BatchedWriter()
		b.Set([]byte("b"), []byte("2"))
		require.ErrorIs(t, b.Commit(), common.ErrDBUnavailable)
		require.False(t, f.Has([]byte("b")))

		f.SetFailing(false)
		f.Set([]byte("a"), []byte("1"))
		require.True(t, f.Has([]byte("a")))
	})
}
