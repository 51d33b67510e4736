package store

import (
	"github.com/lunfardo314/unitrie/common"
)

// Record is a typed table in the KV store: keys are prefixed with the partition byte
type Record[K any, V any] struct {
	Partition byte
	KeyBytes  func(k K) []byte
	KeyFrom   func(data []byte) (K, error)
	Encode    func(v V) []byte
	Decode    func(data []byte) (V, error)
}

func (r *Record[K, V]) dbKey(k K) []byte {
	return common.Concat(r.Partition, r.KeyBytes(k))
}

func (r *Record[K, V]) Insert(w common.KVWriter, k K, v V) {
	w.Set(r.dbKey(k), r.Encode(v))
}

// Fetch returns found == false if record is absent
func (r *Record[K, V]) Fetch(rdr common.KVReader, k K) (ret V, found bool, err error) {
	data := rdr.Get(r.dbKey(k))
	if len(data) == 0 {
		return ret, false, nil
	}
	ret, err = r.Decode(data)
	return ret, err == nil, err
}

func (r *Record[K, V]) Exist(rdr common.KVReader, k K) bool {
	return rdr.Has(r.dbKey(k))
}

// Delete setting nil value deletes the key
func (r *Record[K, V]) Delete(w common.KVWriter, k K) {
	w.Set(r.dbKey(k), nil)
}

// Iterate all records of the partition. Stops on first decoding error
func (r *Record[K, V]) Iterate(t common.Traversable, fun func(k K, v V) bool) error {
	var err error
	t.Iterator([]byte{r.Partition}).Iterate(func(key, data []byte) bool {
		var k K
		var v V
		if k, err = r.KeyFrom(key[1:]); err != nil {
			return false
		}
		if v, err = r.Decode(data); err != nil {
			return false
		}
		return fun(k, v)
	})
	return err
}
