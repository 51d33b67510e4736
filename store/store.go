package store

import (
	"fmt"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/unitrie/common"
)

type (
	// KVStore is the narrow storage backend interface the node needs
	KVStore interface {
		common.KVReader
		common.KVWriter
		common.BatchedUpdatable
		common.Traversable
	}

	// Store provides typed access to records in the KV store. All backend failures are
	// reported as ledger.ErrStorageFailure
	Store struct {
		kv KVStore
	}

	// Batch is an atomic batch of writes
	Batch struct {
		w common.KVBatchedWriter
	}
)

func New(kv KVStore) *Store {
	return &Store{kv: kv}
}

func NewInMemory() *Store {
	return New(common.NewInMemoryKVStore())
}

func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ledger.ErrStorageFailure, err)
}

// guarded runs storage access converting panics of the adaptors into errors
func guarded(fun func() error) error {
	return storageErr(util.CatchPanicOrError(fun))
}

func (s *Store) KVStore() KVStore {
	return s.kv
}

// PersistVertex writes transaction bytes under its hash
func (s *Store) PersistVertex(id ledger.Hash, txBytes []byte) error {
	return guarded(func() error {
		VertexBytes.Insert(s.kv, id, txBytes)
		return nil
	})
}

func (s *Store) GetVertexBytes(id ledger.Hash) (ret []byte, found bool, err error) {
	err = guarded(func() error {
		ret, found, err = VertexBytes.Fetch(s.kv, id)
		return err
	})
	return
}

func (s *Store) HasVertex(id ledger.Hash) (ret bool, err error) {
	err = guarded(func() error {
		ret = VertexBytes.Exist(s.kv, id)
		return nil
	})
	return
}

func (s *Store) DeleteVertex(id ledger.Hash) error {
	return guarded(func() error {
		VertexBytes.Delete(s.kv, id)
		VertexMetadata.Delete(s.kv, id)
		return nil
	})
}

func (s *Store) GetVertexMetadata(id ledger.Hash) (ret *VertexMetadataRecord, found bool, err error) {
	err = guarded(func() error {
		ret, found, err = VertexMetadata.Fetch(s.kv, id)
		return err
	})
	return
}

// IterateVertices iterates all persisted vertices in non-deterministic order
func (s *Store) IterateVertices(fun func(id ledger.Hash, txBytes []byte) bool) error {
	return guarded(func() error {
		return VertexBytes.Iterate(s.kv, fun)
	})
}

func (s *Store) Balance(addr ledger.Address) (ret uint64, err error) {
	err = guarded(func() error {
		ret, _, err = Balances.Fetch(s.kv, addr)
		return err
	})
	return
}

func (s *Store) Balances() (ret map[ledger.Address]uint64, err error) {
	ret = make(map[ledger.Address]uint64)
	err = guarded(func() error {
		return Balances.Iterate(s.kv, func(addr ledger.Address, bal uint64) bool {
			ret[addr] = bal
			return true
		})
	})
	return
}

// LedgerIndex returns latest applied milestone index. Not found means not initialized store
func (s *Store) LedgerIndex() (ret ledger.MilestoneIndex, found bool, err error) {
	err = guarded(func() error {
		ret, found, err = LedgerIndexMarker.Fetch(s.kv, struct{}{})
		return err
	})
	return
}

func (s *Store) Identity() (ret *Identity, found bool, err error) {
	err = guarded(func() error {
		ret, found, err = LedgerIdentity.Fetch(s.kv, struct{}{})
		return err
	})
	return
}

func (s *Store) Diff(index ledger.MilestoneIndex) (ret ledger.Diff, found bool, err error) {
	err = guarded(func() error {
		ret, found, err = Diffs.Fetch(s.kv, index)
		return err
	})
	return
}

func (s *Store) Milestone(index ledger.MilestoneIndex) (ret *MilestoneRecord, found bool, err error) {
	err = guarded(func() error {
		ret, found, err = Milestones.Fetch(s.kv, index)
		return err
	})
	return
}

func (s *Store) SolidEntryPoints() (ret map[ledger.Hash]ledger.MilestoneIndex, err error) {
	ret = make(map[ledger.Hash]ledger.MilestoneIndex)
	err = guarded(func() error {
		return SolidEntryPoints.Iterate(s.kv, func(h ledger.Hash, idx ledger.MilestoneIndex) bool {
			ret[h] = idx
			return true
		})
	})
	return
}

func (s *Store) NewBatch() *Batch {
	return &Batch{w: s.kv.BatchedWriter()}
}

func (b *Batch) SetBalance(addr ledger.Address, balance uint64) {
	if balance == 0 {
		Balances.Delete(b.w, addr)
		return
	}
	Balances.Insert(b.w, addr, balance)
}

func (b *Batch) SetLedgerIndex(index ledger.MilestoneIndex) {
	LedgerIndexMarker.Insert(b.w, struct{}{}, index)
}

func (b *Batch) PutDiff(index ledger.MilestoneIndex, diff ledger.Diff) {
	Diffs.Insert(b.w, index, diff)
}

func (b *Batch) PutMilestone(rec *MilestoneRecord) {
	Milestones.Insert(b.w, rec.Index, rec)
}

func (b *Batch) PutVertexMetadata(id ledger.Hash, rec *VertexMetadataRecord) {
	VertexMetadata.Insert(b.w, id, rec)
}

func (b *Batch) PutSolidEntryPoint(id ledger.Hash, index ledger.MilestoneIndex) {
	SolidEntryPoints.Insert(b.w, id, index)
}

func (b *Batch) PutIdentity(id *Identity) {
	LedgerIdentity.Insert(b.w, struct{}{}, id)
}

// Commit writes the batch atomically
func (b *Batch) Commit() error {
	return guarded(func() error {
		return b.w.Commit()
	})
}
