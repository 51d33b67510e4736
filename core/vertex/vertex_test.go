package vertex

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func newVertex(data string) *WrappedTx {
	return New(ledger.MustNewTransaction(ledger.NullHash, ledger.NullHash, time.Now(), ledger.DataPayload(data)))
}

func TestSolid(t *testing.T) {
	t.Run("transition once", func(t *testing.T) {
		vid := newVertex("a")
		require.EqualValues(t, Unknown, vid.Status())
		vid.SetPending()
		require.EqualValues(t, Pending, vid.Status())

		require.True(t, vid.SetSolid(2))
		require.False(t, vid.SetSolid(5))
		require.EqualValues(t, Solid, vid.Status())
		require.EqualValues(t, 2, vid.YoungestMilestone())

		vid.SetPending()
		require.EqualValues(t, Solid, vid.Status())
		require.False(t, vid.Metadata().SolidificationTime.IsZero())
	})
	t.Run("concurrent", func(t *testing.T) {
		const n = 100
		vid := newVertex("a")
		var winners atomic.Int32
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				if vid.SetSolid(0) {
					winners.Inc()
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, winners.Load())
	})
	t.Run("milestone youngest", func(t *testing.T) {
		vid := newVertex("a")
		require.NoError(t, vid.SetMilestone(7))
		vid.SetSolid(3)
		require.EqualValues(t, 7, vid.YoungestMilestone())
	})
}

func TestMilestone(t *testing.T) {
	vid := newVertex("a")
	_, isMs := vid.MilestoneIndex()
	require.False(t, isMs)

	require.NoError(t, vid.SetMilestone(5))
	require.NoError(t, vid.SetMilestone(5))
	err := vid.SetMilestone(6)
	require.True(t, errors.Is(err, ledger.ErrInvariantViolation))
	idx, isMs := vid.MilestoneIndex()
	require.True(t, isMs)
	require.EqualValues(t, 5, idx)
}

func TestConfirmed(t *testing.T) {
	vid := newVertex("a")
	require.EqualValues(t, 0, vid.ConfirmedBy())
	require.True(t, vid.SetConfirmed(3, true))
	require.False(t, vid.SetConfirmed(4, false))
	require.EqualValues(t, 3, vid.ConfirmedBy())
	require.True(t, vid.IsConflicting())
	require.EqualValues(t, ConflictExcluded, vid.Metadata().Conflict)
}

func TestUpdateMetadata(t *testing.T) {
	vid := newVertex("a")
	err := vid.UpdateMetadata(func(md *Metadata) {
		md.Milestone = true
		md.MilestoneIndex = 2
		md.Solid = true
	})
	require.NoError(t, err)
	md := vid.Metadata()
	require.True(t, md.Solid)
	require.True(t, md.Milestone)
	require.False(t, md.SolidificationTime.IsZero())

	err = vid.UpdateMetadata(func(md *Metadata) {
		md.MilestoneIndex = 3
	})
	require.True(t, errors.Is(err, ledger.ErrInvariantViolation))
	require.EqualValues(t, 2, vid.Metadata().MilestoneIndex)

	err = vid.UpdateMetadata(func(md *Metadata) {
		md.Solid = false
	})
	require.True(t, errors.Is(err, ledger.ErrInvariantViolation))
	t.Logf("\n%s", vid.Lines().String())
}
