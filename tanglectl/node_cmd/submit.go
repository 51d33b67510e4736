package node_cmd

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/tanglectl/glb"
	"github.com/spf13/cobra"
)

func initSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <file with hex-encoded transaction bytes>",
		Short: "submits transaction to the node and waits until it is processed",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			glb.AssertNoError(err)
			txBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
			glb.AssertNoError(err)
			tx, err := ledger.TransactionFromBytes(txBytes)
			glb.AssertNoError(err)
			glb.Verbosef("%s", tx.Lines().String())

			status, err := glb.GetClient().SubmitTransaction(txBytes)
			glb.AssertNoError(err)
			glb.Infof("transaction %s submitted, status: %s", tx.ID().String(), status)
		},
	}
}
