package db_cmd

import (
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/tanglectl/glb"
	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/tangle/util/lines"
	"github.com/spf13/cobra"
)

func initBalancesCmd() *cobra.Command {
	balancesCmd := &cobra.Command{
		Use:     "balances",
		Aliases: []string{"bal"},
		Short:   "displays all non-zero balances of the confirmed ledger state",
		Args:    cobra.NoArgs,
		Run:     runBalancesCmd,
	}
	balancesCmd.InitDefaultHelpCmd()
	return balancesCmd
}

func runBalancesCmd(_ *cobra.Command, _ []string) {
	st, closeDB := glb.OpenStore(true)
	defer closeDB()

	ln, err := balancesLines(st)
	glb.AssertNoError(err)
	glb.Infof("%s", ln.String())
}

func balancesLines(st *store.Store) (*lines.Lines, error) {
	balances, err := st.Balances()
	if err != nil {
		return nil, err
	}
	ledgerIndex, _, err := st.LedgerIndex()
	if err != nil {
		return nil, err
	}
	ret := lines.New()
	var total uint64
	for _, addr := range util.SortKeys(balances, ledger.LessAddress) {
		if balances[addr] == 0 {
			continue
		}
		ret.Add("%s: %s", addr.String(), util.Th(balances[addr]))
		total += balances[addr]
	}
	ret.Add("ledger index: %d, addresses: %d, total: %s", ledgerIndex, len(balances), util.Th(total))
	return ret, nil
}
