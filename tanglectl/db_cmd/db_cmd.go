package db_cmd

import (
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/tanglectl/glb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Init() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db [<subcommand>]",
		Short: "specifies subcommand on the node database",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			displayNames()
		},
	}

	dbCmd.InitDefaultHelpCmd()
	dbCmd.AddCommand(
		initDBInfoCmd(),
		initBalancesCmd(),
		initMilestoneCmd(),
	)
	return dbCmd
}

func displayNames() {
	glb.Infof("database type: '%s'", viper.GetString(global.ConfigKeyDBType))
	glb.Infof("database directory: '%s'", viper.GetString(global.ConfigKeyDBDir))
}
