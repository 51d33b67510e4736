package glb

import (
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/store"
	"github.com/spf13/viper"
)

// OpenStore opens the node database configured by 'db.type' and 'db.dir'.
// The returned function closes it
func OpenStore(mustExist bool) (*store.Store, func()) {
	dir := viper.GetString(global.ConfigKeyDBDir)
	switch dbType := viper.GetString(global.ConfigKeyDBType); dbType {
	case global.DBTypeBadger:
		if mustExist {
			FileMustExist(dir)
		}
		Verbosef("badger database: %s", dir)
		db := store.OpenBadgerDB(dir)
		return store.New(db), func() { _ = db.Close() }
	case global.DBTypeLevelDB:
		if mustExist {
			FileMustExist(dir)
		}
		Verbosef("leveldb database: %s", dir)
		db, err := store.OpenLevelDB(dir)
		AssertNoError(err)
		return store.New(db), func() { _ = db.Close() }
	default:
		Fatalf("database type '%s' can't be opened by tanglectl", dbType)
	}
	return nil, nil
}
