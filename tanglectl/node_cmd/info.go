package node_cmd

import (
	"strconv"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/tanglectl/glb"
	"github.com/lunfardo314/tangle/util"
	"github.com/spf13/cobra"
)

func initNodeInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "retrieves node info",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			info, err := glb.GetClient().GetNodeInfo()
			glb.AssertNoError(err)

			health := "healthy"
			if info.Degraded {
				health = "DEGRADED: ledger writes halted"
			}
			glb.Infof("%s %s, %s", info.Name, info.Version, health)
			glb.Infof("latest solid milestone: %d, latest known milestone: %d", info.LatestSolidMilestoneIndex, info.LatestKnownMilestoneIndex)
			glb.Infof("ledger index: %d, snapshot index: %d", info.LedgerIndex, info.SnapshotIndex)
			glb.Infof("vertices: %d, pending: %d, pulling: %d", info.NumVertices, info.NumPending, info.NumPulling)
			glb.Infof("tips: non-lazy %d, semi-lazy %d", info.NumTipsNonLazy, info.NumTipsSemiLazy)
			glb.Infof("total supply: %s on %d addresses", util.Th(info.TotalSupply), info.NumAddresses)
		},
	}
}

func initBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "balance <address>",
		Aliases: []string{"bal"},
		Short:   "retrieves confirmed balance of the address",
		Args:    cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			addr, err := ledger.AddressFromHexString(args[0])
			glb.AssertNoError(err)

			bal, idx, err := glb.GetClient().GetBalance(addr)
			glb.AssertNoError(err)
			glb.Infof("%s: %s (ledger index %d)", addr.String(), util.Th(bal), idx)
		},
	}
}

func initTipsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tips",
		Short: "lists current tips of the node",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			tips, err := glb.GetClient().GetTips()
			glb.AssertNoError(err)
			for _, h := range tips {
				glb.Infof("%s", h.String())
			}
			glb.Infof("total %d tips", len(tips))
		},
	}
}

func initMilestoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "milestone <index>",
		Aliases: []string{"ms"},
		Short:   "retrieves record of the applied milestone",
		Args:    cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			idx, err := strconv.ParseUint(args[0], 10, 32)
			glb.AssertNoError(err)

			ms, err := glb.GetClient().GetMilestone(ledger.MilestoneIndex(idx))
			glb.AssertNoError(err)
			glb.Infof("milestone #%d %s", ms.Index, ms.ID)
			glb.Infof("timestamp: %s", ms.Timestamp)
			glb.Infof("confirmed merkle root: %s", ms.ConfirmedMerkleRoot)
			glb.Infof("applied merkle root: %s", ms.AppliedMerkleRoot)
			glb.Infof("referenced: %d, applied: %d, conflicting: %d", ms.NumReferenced, ms.NumApplied, ms.NumConflicting)
		},
	}
}

func initVertexCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "vertex <transaction id>",
		Aliases: []string{"tx"},
		Short:   "retrieves vertex metadata",
		Args:    cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			h, err := ledger.HashFromHexString(args[0])
			glb.AssertNoError(err)

			v, err := glb.GetClient().GetVertex(h)
			glb.AssertNoError(err)
			glb.Infof("%s (%s), status: %s", v.ID, v.PayloadType, v.Status)
			glb.Infof("trunk: %s", v.Trunk)
			glb.Infof("branch: %s", v.Branch)
			if v.Milestone {
				glb.Infof("milestone #%d", v.MilestoneIndex)
			}
			if v.ConfirmedBy > 0 {
				glb.Infof("confirmed by milestone #%d, conflicting: %v", v.ConfirmedBy, v.Conflicting)
			}
			glb.Verbosef("bytes: %s", v.TxBytes)
		},
	}
}
