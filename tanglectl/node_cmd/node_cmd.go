package node_cmd

import (
	"github.com/spf13/cobra"
)

func Init() *cobra.Command {
	nodeCmd := &cobra.Command{
		Use:   "node [<subcommand>]",
		Short: "specifies node API subcommand",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	nodeCmd.InitDefaultHelpCmd()
	nodeCmd.AddCommand(
		initNodeInfoCmd(),
		initBalanceCmd(),
		initTipsCmd(),
		initMilestoneCmd(),
		initVertexCmd(),
		initSubmitCmd(),
	)
	return nodeCmd
}
