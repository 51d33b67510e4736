package store

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/lunfardo314/unitrie/adaptors/badger_adaptor"
)

func OpenBadgerDB(dir string) *badger_adaptor.DB {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithSyncWrites(true)
	return badger_adaptor.New(badger_adaptor.MustCreateOrOpenBadgerDB(dir, opts))
}

// RunBadgerGC runs value log GC until there is nothing to rewrite. Returns number of rewrites
func RunBadgerGC(db *badger_adaptor.DB, discardRatio float64, maxDuration time.Duration) (int, error) {
	deadline := time.Now().Add(maxDuration)
	count := 0
	for time.Now().Before(deadline) {
		err := db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
