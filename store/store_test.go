package store

import (
	"errors"
	"testing"
	"time"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util/testutil"
	"github.com/lunfardo314/unitrie/common"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]KVStore {
	ldb := NewInMemoryLevelDB()
	t.Cleanup(func() { _ = ldb.Close() })
	return map[string]KVStore{
		"memory":  common.NewInMemoryKVStore(),
		"leveldb": ldb,
	}
}

func TestStore(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(kv)
			id := ledger.HashData([]byte("tx"))
			addr := ledger.Address(ledger.HashData([]byte("addr")))

			t.Run("vertex", func(t *testing.T) {
				has, err := s.HasVertex(id)
				require.NoError(t, err)
				require.False(t, has)

				require.NoError(t, s.PersistVertex(id, []byte("tx bytes")))
				data, found, err := s.GetVertexBytes(id)
				require.NoError(t, err)
				require.True(t, found)
				require.EqualValues(t, "tx bytes", string(data))

				count := 0
				err = s.IterateVertices(func(h ledger.Hash, txBytes []byte) bool {
					require.EqualValues(t, id, h)
					count++
					return true
				})
				require.NoError(t, err)
				require.EqualValues(t, 1, count)

				require.NoError(t, s.DeleteVertex(id))
				_, found, err = s.GetVertexBytes(id)
				require.NoError(t, err)
				require.False(t, found)
			})
			t.Run("batch", func(t *testing.T) {
				_, found, err := s.LedgerIndex()
				require.NoError(t, err)
				require.False(t, found)

				diff := ledger.Diff{addr: 10}
				msRec := &MilestoneRecord{
					Index:     1,
					ID:        id,
					Timestamp: time.Unix(0, 12345),
				}
				b := s.NewBatch()
				b.SetBalance(addr, 10)
				b.SetLedgerIndex(1)
				b.PutDiff(1, diff)
				b.PutMilestone(msRec)
				b.PutVertexMetadata(id, &VertexMetadataRecord{ConfirmedBy: 1, Conflicting: true})
				b.PutSolidEntryPoint(ledger.NullHash, 0)
				b.PutIdentity(&Identity{TotalSupply: 10, CoordinatorKey: []byte{1, 2, 3}})
				require.NoError(t, b.Commit())

				idx, found, err := s.LedgerIndex()
				require.NoError(t, err)
				require.True(t, found)
				require.EqualValues(t, 1, idx)

				bal, err := s.Balance(addr)
				require.NoError(t, err)
				require.EqualValues(t, 10, bal)
				all, err := s.Balances()
				require.NoError(t, err)
				require.EqualValues(t, 1, len(all))

				d, found, err := s.Diff(1)
				require.NoError(t, err)
				require.True(t, found)
				require.EqualValues(t, diff, d)

				ms, found, err := s.Milestone(1)
				require.NoError(t, err)
				require.True(t, found)
				require.EqualValues(t, *msRec, *ms)

				md, found, err := s.GetVertexMetadata(id)
				require.NoError(t, err)
				require.True(t, found)
				require.True(t, md.Conflicting)
				require.EqualValues(t, 1, md.ConfirmedBy)

				seps, err := s.SolidEntryPoints()
				require.NoError(t, err)
				require.EqualValues(t, 1, len(seps))

				ident, found, err := s.Identity()
				require.NoError(t, err)
				require.True(t, found)
				require.EqualValues(t, 10, ident.TotalSupply)
				require.EqualValues(t, []byte{1, 2, 3}, ident.CoordinatorKey)

				// zero balance deletes the record
				b = s.NewBatch()
				b.SetBalance(addr, 0)
				require.NoError(t, b.Commit())
				all, err = s.Balances()
				require.NoError(t, err)
				require.EqualValues(t, 0, len(all))
			})
		})
	}
}

func TestStorageFailure(t *testing.T) {
	f := testutil.NewFaultyInMemoryKVStore()
	s := New(f)
	id := ledger.HashData([]byte("tx"))

	f.SetFailing(true)
	err := s.PersistVertex(id, []byte("data"))
	require.True(t, errors.Is(err, ledger.ErrStorageFailure))
	require.True(t, ledger.IsRetryable(err))

	b := s.NewBatch()
	b.SetLedgerIndex(5)
	err = b.Commit()
	require.True(t, errors.Is(err, ledger.ErrStorageFailure))
	_, found, err := s.LedgerIndex()
	require.NoError(t, err)
	require.False(t, found)

	f.SetFailing(false)
	require.NoError(t, s.PersistVertex(id, []byte("data")))
}
