package db_cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/tanglectl/glb"
	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/tangle/util/lines"
	"github.com/spf13/cobra"
)

func initDBInfoCmd() *cobra.Command {
	dbInfoCmd := &cobra.Command{
		Use:   "info",
		Short: "displays ledger identity, ledger index and number of stored vertices",
		Args:  cobra.NoArgs,
		Run:   runDBInfoCmd,
	}
	dbInfoCmd.InitDefaultHelpCmd()
	return dbInfoCmd
}

func runDBInfoCmd(_ *cobra.Command, _ []string) {
	displayNames()

	st, closeDB := glb.OpenStore(true)
	defer closeDB()

	ln, err := dbInfoLines(st)
	glb.AssertNoError(err)
	glb.Infof("%s", ln.String())
}

func dbInfoLines(st *store.Store) (*lines.Lines, error) {
	identity, found, err := st.Identity()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: ledger identity. Database is not initialized", ledger.ErrNotFound)
	}
	ledgerIndex, _, err := st.LedgerIndex()
	if err != nil {
		return nil, err
	}
	numVertices := 0
	err = st.IterateVertices(func(_ ledger.Hash, _ []byte) bool {
		numVertices++
		return true
	})
	if err != nil {
		return nil, err
	}
	seps, err := st.SolidEntryPoints()
	if err != nil {
		return nil, err
	}

	ret := lines.New().
		Add("total supply: %s", util.Th(identity.TotalSupply)).
		Add("snapshot index: %d", identity.SnapshotIndex).
		Add("coordinator public key: %s", hex.EncodeToString(identity.CoordinatorKey)).
		Add("ledger index: %d", ledgerIndex).
		Add("solid entry points: %d", len(seps)).
		Add("stored vertices: %d", numVertices)

	if ledgerIndex > identity.SnapshotIndex {
		rec, found, err := st.Milestone(ledgerIndex)
		if err != nil {
			return nil, err
		}
		if found {
			ret.Add("latest applied milestone:").Append(rec.Lines("    "))
		}
	}
	return ret, nil
}
