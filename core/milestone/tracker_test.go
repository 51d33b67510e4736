package milestone

import (
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util/testutil"
	"github.com/stretchr/testify/require"
)

type applied struct {
	mutex sync.Mutex
	order []ledger.MilestoneIndex
}

func (a *applied) apply(vid *vertex.WrappedTx) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	idx, _ := vid.MilestoneIndex()
	a.order = append(a.order, idx)
}

func (a *applied) get() []ledger.MilestoneIndex {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return append([]ledger.MilestoneIndex{}, a.order...)
}

func newTracker(latestSolid ledger.MilestoneIndex) (*Tracker, *ledger.MilestoneSigner, *applied) {
	signer := ledger.NewMilestoneSigner(testutil.GetTestingPrivateKey())
	a := &applied{}
	return New(global.NewDefault(), []ed25519.PublicKey{signer.PublicKey()}, latestSolid, a.apply), signer, a
}

func milestoneVertex(signer *ledger.MilestoneSigner, idx ledger.MilestoneIndex) *vertex.WrappedTx {
	return vertex.New(signer.NewMilestone(ledger.NullHash, ledger.NullHash, idx))
}

func TestValidate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		tr, signer, _ := newTracker(0)
		vid := milestoneVertex(signer, 1)
		idx, err := tr.ValidateCandidate(vid)
		require.NoError(t, err)
		require.EqualValues(t, 1, idx)
		require.True(t, vid.IsMilestone())
		require.EqualValues(t, 1, tr.LatestKnownIndex())
		require.EqualValues(t, 0, tr.LatestSolidIndex())
		require.True(t, tr.MilestoneByIndex(1) == vid)

		// repeated validation of the same vertex is not an error
		_, err = tr.ValidateCandidate(vid)
		require.NoError(t, err)
	})
	t.Run("bad signature", func(t *testing.T) {
		tr, _, _ := newTracker(0)
		other := ledger.NewMilestoneSigner(testutil.GetTestingPrivateKey(1))
		vid := milestoneVertex(other, 1)
		_, err := tr.ValidateCandidate(vid)
		require.True(t, errors.Is(err, ledger.ErrBadSignature))
		require.True(t, errors.Is(err, ledger.ErrValidation))
		require.False(t, vid.IsMilestone())
	})
	t.Run("malformed", func(t *testing.T) {
		tr, _, _ := newTracker(0)
		vid := vertex.New(ledger.MustNewTransaction(ledger.NullHash, ledger.NullHash, time.Now(), ledger.DataPayload("a")))
		_, err := tr.ValidateCandidate(vid)
		require.True(t, errors.Is(err, ledger.ErrMalformedPayload))
	})
	t.Run("stale", func(t *testing.T) {
		tr, signer, _ := newTracker(5)
		_, err := tr.ValidateCandidate(milestoneVertex(signer, 5))
		require.True(t, errors.Is(err, ledger.ErrStaleIndex))
		_, err = tr.ValidateCandidate(milestoneVertex(signer, 3))
		require.True(t, errors.Is(err, ledger.ErrStaleIndex))

		_, err = tr.ValidateCandidate(milestoneVertex(signer, 7))
		require.NoError(t, err)
		// other vertex with registered index
		_, err = tr.ValidateCandidate(vertex.New(signer.NewMilestone(ledger.NullHash, ledger.NullHash, 7, time.Now().Add(time.Second))))
		require.True(t, errors.Is(err, ledger.ErrStaleIndex))
		// gap filling
		_, err = tr.ValidateCandidate(milestoneVertex(signer, 6))
		require.NoError(t, err)
		require.EqualValues(t, 7, tr.LatestKnownIndex())
	})
}

func TestContiguity(t *testing.T) {
	t.Run("5 before 4", func(t *testing.T) {
		tr, signer, a := newTracker(3)
		ms4 := milestoneVertex(signer, 4)
		ms5 := milestoneVertex(signer, 5)
		_, err := tr.ValidateCandidate(ms4)
		require.NoError(t, err)
		_, err = tr.ValidateCandidate(ms5)
		require.NoError(t, err)

		ms5.SetSolid(0)
		tr.OnVertexSolid(ms5)
		require.EqualValues(t, 3, tr.LatestSolidIndex())
		require.EqualValues(t, 1, tr.NumWaiting())
		require.EqualValues(t, 0, len(a.get()))

		ms4.SetSolid(0)
		tr.OnVertexSolid(ms4)
		require.EqualValues(t, 5, tr.LatestSolidIndex())
		require.EqualValues(t, 0, tr.NumWaiting())
		require.EqualValues(t, []ledger.MilestoneIndex{4, 5}, a.get())

		// repeated notification is ignored
		tr.OnVertexSolid(ms4)
		require.EqualValues(t, []ledger.MilestoneIndex{4, 5}, a.get())
	})
	t.Run("solid before validated", func(t *testing.T) {
		tr, signer, a := newTracker(0)
		ms1 := milestoneVertex(signer, 1)
		ms1.SetSolid(0)
		tr.OnVertexSolid(ms1)
		require.EqualValues(t, 0, len(a.get()))

		_, err := tr.ValidateCandidate(ms1)
		require.NoError(t, err)
		require.EqualValues(t, 1, tr.LatestSolidIndex())
		require.EqualValues(t, []ledger.MilestoneIndex{1}, a.get())
	})
	t.Run("concurrent", func(t *testing.T) {
		const n = 50
		tr, signer, a := newTracker(0)
		vids := make([]*vertex.WrappedTx, n)
		for i := range vids {
			vids[i] = milestoneVertex(signer, ledger.MilestoneIndex(i+1))
			_, err := tr.ValidateCandidate(vids[i])
			require.NoError(t, err)
		}
		var wg sync.WaitGroup
		wg.Add(n)
		for i := n - 1; i >= 0; i-- {
			go func(vid *vertex.WrappedTx) {
				defer wg.Done()
				vid.SetSolid(0)
				tr.OnVertexSolid(vid)
			}(vids[i])
		}
		wg.Wait()
		order := a.get()
		require.EqualValues(t, n, len(order))
		for i := range order {
			require.EqualValues(t, i+1, order[i])
		}
	})
}
