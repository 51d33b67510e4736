package node_cmd

import (
	"os"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/tanglectl/glb"
	"github.com/spf13/cobra"
)

var (
	dotMaxVertices int
	dotOutput      string
)

// InitDotCmd past cone of the vertex in Graphviz DOT format
func InitDotCmd() *cobra.Command {
	dotCmd := &cobra.Command{
		Use:   "dot <transaction id> [--max <vertices>] [-o <file>]",
		Short: "saves past cone of the vertex as Graphviz DOT file",
		Args:  cobra.ExactArgs(1),
		Run:   runDotCmd,
	}
	dotCmd.Flags().IntVar(&dotMaxVertices, "max", 500, "maximum number of vertices")
	dotCmd.Flags().StringVarP(&dotOutput, "output", "o", "", "output file. Default is <id prefix>.gv")
	return dotCmd
}

func runDotCmd(_ *cobra.Command, args []string) {
	h, err := ledger.HashFromHexString(args[0])
	glb.AssertNoError(err)

	data, err := glb.GetClient().GetDOT(h, dotMaxVertices)
	glb.AssertNoError(err)

	fname := dotOutput
	if fname == "" {
		fname = h.StringShort() + ".gv"
	}
	glb.AssertNoError(os.WriteFile(fname, data, 0644))
	glb.Infof("past cone of %s has been saved to '%s'. Render with: dot -Tpng %s -o %s.png", h.StringShort(), fname, fname, h.StringShort())
}
