package testutil

import (
	"github.com/lunfardo314/unitrie/common"
	"go.uber.org/atomic"
)

type (
	// KVStore is the backend interface wrapped by FaultyKVStore
	KVStore interface {
		common.KVReader
		common.KVWriter
		common.BatchedUpdatable
		common.Traversable
	}

	// FaultyKVStore wraps a KV store and fails writes and batch commits while failing is enabled
	FaultyKVStore struct {
		KVStore
		failing atomic.Bool
	}

	faultyBatch struct {
		common.KVBatchedWriter
		f *FaultyKVStore
	}
)

func NewFaultyKVStore(kv KVStore) *FaultyKVStore {
	return &FaultyKVStore{KVStore: kv}
}

func NewFaultyInMemoryKVStore() *FaultyKVStore {
	return NewFaultyKVStore(common.NewInMemoryKVStore())
}

func (f *FaultyKVStore) SetFailing(failing bool) {
	f.failing.Store(failing)
}

func (f *FaultyKVStore) Set(key, value []byte) {
	if f.failing.Load() {
		panic(common.ErrDBUnavailable)
	}
	f.KVStore.Set(key, value)
}

func (f *FaultyKVStore) BatchedWriter() common.KVBatchedWriter {
	return &faultyBatch{KVBatchedWriter: f.KVStore.BatchedWriter(), f: f}
}

func (b *faultyBatch) Commit() error {
	if b.f.failing.Load() {
		return common.ErrDBUnavailable
	}
	return b.KVBatchedWriter.Commit()
}
