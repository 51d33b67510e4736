package main

import (
	"fmt"
	"os"

	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/tanglectl/db_cmd"
	"github.com/lunfardo314/tangle/tanglectl/genesis_cmd"
	"github.com/lunfardo314/tangle/tanglectl/glb"
	"github.com/lunfardo314/tangle/tanglectl/node_cmd"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

func initRoot() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tanglectl",
		Short: "a simple CLI for the tangle node",
		Long: `tanglectl is a CLI tool for the tangle node.
It provides:
      - genesis file creation and genesis ledger state initialization
      - database level access to the ledger state for admin purposes
      - access to the node via its API
`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			initConfig()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is tangle.yaml in the working directory)")
	bindPersistentFlag(rootCmd, "api.endpoint", "http://localhost:14100", "node API endpoint")
	bindPersistentFlag(rootCmd, global.ConfigKeyDBType, global.DBTypeBadger, "database type: badger | leveldb")
	bindPersistentFlag(rootCmd, global.ConfigKeyDBDir, global.DefaultDBDir, "database directory")

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	glb.AssertNoError(viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")))
	rootCmd.PersistentFlags().BoolP("force", "f", false, "do not prompt for confirmation")
	glb.AssertNoError(viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force")))

	rootCmd.InitDefaultHelpCmd()
	rootCmd.AddCommand(
		genesis_cmd.Init(),
		db_cmd.Init(),
		node_cmd.Init(),
		node_cmd.InitDotCmd(),
	)
	return rootCmd
}

func bindPersistentFlag(cmd *cobra.Command, key, def, usage string) {
	cmd.PersistentFlags().String(key, def, usage)
	glb.AssertNoError(viper.BindPFlag(key, cmd.PersistentFlags().Lookup(key)))
}

// initConfig node config file is shared with the CLI, so database and API settings are consistent
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("tangle")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		glb.Verbosef("using config file: %s", viper.ConfigFileUsed())
	} else if configFile != "" {
		_, _ = fmt.Fprintf(os.Stderr, "config file not read: %v\n", err)
	}
}

func main() {
	if err := initRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
