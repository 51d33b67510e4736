package store

import (
	"errors"

	"github.com/lunfardo314/unitrie/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB adapts goleveldb to the KVStore interface. Same as the badger adaptor, it panics
// with common.ErrDBUnavailable on backend errors

type (
	LevelDB struct {
		db *leveldb.DB
	}

	levelDBBatch struct {
		db    *leveldb.DB
		batch *leveldb.Batch
	}

	levelDBIterator struct {
		db     *leveldb.DB
		prefix []byte
	}
)

func OpenLevelDB(dir string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewInMemoryLevelDB leveldb over memory storage, mainly for testing
func NewInMemoryLevelDB() *LevelDB {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		panic(err)
	}
	return &LevelDB{db: db}
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

func mustNoDBError(err error) {
	if err != nil {
		panic(errors.Join(common.ErrDBUnavailable, err))
	}
}

func (l *LevelDB) Get(key []byte) []byte {
	ret, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil
	}
	mustNoDBError(err)
	return ret
}

func (l *LevelDB) Has(key []byte) bool {
	ret, err := l.db.Has(key, nil)
	mustNoDBError(err)
	return ret
}

// Set with nil value deletes the key
func (l *LevelDB) Set(key, value []byte) {
	var err error
	if len(value) == 0 {
		err = l.db.Delete(key, nil)
	} else {
		err = l.db.Put(key, value, nil)
	}
	mustNoDBError(err)
}

func (l *LevelDB) BatchedWriter() common.KVBatchedWriter {
	return &levelDBBatch{
		db:    l.db,
		batch: new(leveldb.Batch),
	}
}

func (l *LevelDB) Iterator(prefix []byte) common.KVIterator {
	return &levelDBIterator{
		db:     l.db,
		prefix: prefix,
	}
}

func (b *levelDBBatch) Set(key, value []byte) {
	if len(value) == 0 {
		b.batch.Delete(key)
	} else {
		b.batch.Put(key, value)
	}
}

func (b *levelDBBatch) Commit() error {
	return b.db.Write(b.batch, &opt.WriteOptions{Sync: true})
}

func (it *levelDBIterator) Iterate(fun func(k, v []byte) bool) {
	iter := it.db.NewIterator(util.BytesPrefix(it.prefix), nil)
	defer iter.Release()

	for iter.Next() {
		k := make([]byte, len(iter.Key()))
		copy(k, iter.Key())
		v := make([]byte, len(iter.Value()))
		copy(v, iter.Value())
		if !fun(k, v) {
			break
		}
	}
	mustNoDBError(iter.Error())
}

func (it *levelDBIterator) IterateKeys(fun func(k []byte) bool) {
	it.Iterate(func(k, _ []byte) bool {
		return fun(k)
	})
}
