package db_cmd

import (
	"strconv"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/tanglectl/glb"
	"github.com/spf13/cobra"
)

func initMilestoneCmd() *cobra.Command {
	msCmd := &cobra.Command{
		Use:     "milestone <index>",
		Aliases: []string{"ms"},
		Short:   "displays applied milestone record and its ledger diff",
		Args:    cobra.ExactArgs(1),
		Run:     runMilestoneCmd,
	}
	msCmd.InitDefaultHelpCmd()
	return msCmd
}

func runMilestoneCmd(_ *cobra.Command, args []string) {
	idx, err := strconv.ParseUint(args[0], 10, 32)
	glb.AssertNoError(err)

	st, closeDB := glb.OpenStore(true)
	defer closeDB()

	rec, found, err := st.Milestone(ledger.MilestoneIndex(idx))
	glb.AssertNoError(err)
	glb.Assertf(found, "milestone #%d has not been applied", idx)
	glb.Infof("%s", rec.Lines().String())

	diff, _, err := st.Diff(ledger.MilestoneIndex(idx))
	glb.AssertNoError(err)
	glb.Infof("diff:\n%s", diff.Lines("    ").String())
}
