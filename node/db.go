package node

import (
	"bytes"
	"fmt"
	"time"

	"github.com/lunfardo314/tangle/genesis"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util"
	"github.com/spf13/viper"
)

const (
	badgerGCDiscardRatio = 0.5
	badgerGCMaxDuration  = 30 * time.Second
	forcedCloseTimeout   = 10 * time.Second
)

// initDB opens the database of the configured type
func (p *TangleNode) initDB() {
	dir := viper.GetString(global.ConfigKeyDBDir)

	switch dbType := viper.GetString(global.ConfigKeyDBType); dbType {
	case global.DBTypeBadger:
		p.badgerDB = store.OpenBadgerDB(dir)
		p.store = store.New(p.badgerDB)
		p.Log().Infof("opened badger DB '%s'", dir)
		p.closeDBOnStop("badger DB", p.badgerDB.Close)

		if period := viper.GetDuration(global.ConfigKeyDBGCPeriod); period > 0 {
			p.RepeatInBackground("badger_GC_loop", period, func() bool {
				p.databaseGC()
				return true
			}, true)
		}

	case global.DBTypeLevelDB:
		ldb, err := store.OpenLevelDB(dir)
		p.AssertNoError(err, "can't open leveldb")
		p.store = store.New(ldb)
		p.Log().Infof("opened leveldb '%s'", dir)
		p.closeDBOnStop("leveldb", ldb.Close)

	case global.DBTypeMemory:
		p.store = store.NewInMemory()
		p.Log().Warnf("using in-memory database. Ledger state will not survive restart")

	default:
		p.Log().Fatalf("unknown database type '%s'", dbType)
	}
}

// closeDBOnStop closes the database when the node context is done and all work processes stopped,
// or after timeout
func (p *TangleNode) closeDBOnStop(name string, closeFun func() error) {
	p.dbClosedWG.Add(1)
	go func() {
		<-p.Ctx().Done()
		select {
		case <-p.workProcessesStopped:
		case <-time.After(forcedCloseTimeout):
			p.Log().Warnf("forced close of %s", name)
		}
		if err := closeFun(); err != nil {
			p.Log().Errorf("error while closing %s: %v", name, err)
		} else {
			p.Log().Infof("%s has been closed", name)
		}
		p.dbClosedWG.Done()
	}()
}

func (p *TangleNode) databaseGC() {
	start := time.Now()
	n, err := store.RunBadgerGC(p.badgerDB, badgerGCDiscardRatio, badgerGCMaxDuration)
	if err != nil {
		p.Log().Errorf("badger DB GC: %v", err)
		return
	}
	p.Log().Infof("badger DB GC: %d value log file(s) rewritten in %v", n, time.Since(start))
}

// initLedgerIfEmpty initializes ledger state from the genesis file if the database has no ledger identity.
// Otherwise checks if configured coordinator key is consistent with the ledger identity
func (p *TangleNode) initLedgerIfEmpty() {
	coordKey, err := coordinatorKeyFromConfig()
	p.AssertNoError(err)

	identity, found, err := p.store.Identity()
	p.AssertNoError(err)

	if !found {
		fname := viper.GetString(global.ConfigKeyGenesisFile)
		if fname == "" {
			p.Log().Fatalf("database is empty and '%s' is not specified", global.ConfigKeyGenesisFile)
		}
		g, err := genesis.ReadFile(fname)
		p.AssertNoError(err, "can't read genesis file")
		if coordKey != nil && !bytes.Equal(coordKey, g.CoordinatorPublicKey) {
			p.Log().Fatalf("coordinator key in '%s' is different from the one in genesis '%s'", global.ConfigKeyCoordinatorPublicKey, fname)
		}
		err = genesis.InitLedgerState(p.store, g)
		p.AssertNoError(err, "can't initialize ledger state")
		p.Log().Infof("ledger state has been initialized from genesis '%s':\n%s", fname, g.Lines("       ").String())
		return
	}

	if coordKey != nil && !bytes.Equal(coordKey, identity.CoordinatorKey) {
		p.Log().Fatalf("coordinator key in '%s' is different from the one in the ledger identity", global.ConfigKeyCoordinatorPublicKey)
	}
	ledgerIndex, _, err := p.store.LedgerIndex()
	p.AssertNoError(err)
	p.Log().Infof("ledger identity: total supply %s, snapshot index %d, ledger index %d",
		util.Th(identity.TotalSupply), identity.SnapshotIndex, ledgerIndex)
}

func (p *TangleNode) dbDescription() string {
	return fmt.Sprintf("%s at '%s'", viper.GetString(global.ConfigKeyDBType), viper.GetString(global.ConfigKeyDBDir))
}
