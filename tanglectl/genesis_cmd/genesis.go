package genesis_cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/lunfardo314/tangle/genesis"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/tanglectl/glb"
	"github.com/lunfardo314/tangle/util"
	"github.com/spf13/cobra"
)

const DefaultSupply = 2_779_530_283_277_761

var (
	supply         uint64
	description    string
	coordinatorHex string
	addressHex     string
)

func Init() *cobra.Command {
	genesisCmd := &cobra.Command{
		Use:   "genesis [<subcommand>]",
		Short: "genesis file and genesis ledger state",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	genesisCmd.InitDefaultHelpCmd()
	genesisCmd.AddCommand(initGenesisInitCmd(), initGenesisDBCmd(), initGenesisShowCmd())
	return genesisCmd
}

func initGenesisInitCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init <genesis file> [--supply <supply>] [--desc 'description'] [--coordinator <public key>] [--address <address>]",
		Short: "creates genesis file with the whole supply on one address",
		Args:  cobra.ExactArgs(1),
		Run:   runGenesisInit,
	}
	defaultDesc := fmt.Sprintf("genesis has been created at %s", time.Now().Format(time.RFC3339))
	initCmd.Flags().Uint64Var(&supply, "supply", DefaultSupply, fmt.Sprintf("initial supply (default is %s)", util.Th(uint64(DefaultSupply))))
	initCmd.Flags().StringVar(&description, "desc", defaultDesc, "description")
	initCmd.Flags().StringVar(&coordinatorHex, "coordinator", "", "hex-encoded coordinator public key. New key pair is generated if not specified")
	initCmd.Flags().StringVar(&addressHex, "address", "", "hex-encoded genesis address. Derived from coordinator key if not specified")
	return initCmd
}

func runGenesisInit(_ *cobra.Command, args []string) {
	fname := args[0]
	glb.FileMustNotExist(fname)

	var coordKey ed25519.PublicKey
	if coordinatorHex == "" {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		glb.AssertNoError(err)
		coordKey = pub
		glb.Infof("new coordinator key pair has been generated. Keep the private key safe:")
		glb.Infof("    private key: %s", hex.EncodeToString(priv))
		glb.Infof("    public key:  %s", hex.EncodeToString(pub))
	} else {
		data, err := hex.DecodeString(coordinatorHex)
		glb.AssertNoError(err)
		glb.Assertf(len(data) == ed25519.PublicKeySize, "wrong coordinator public key size %d", len(data))
		coordKey = data
	}

	addr := ledger.AddressFromPublicKey(coordKey)
	if addressHex != "" {
		var err error
		addr, err = ledger.AddressFromHexString(addressHex)
		glb.AssertNoError(err)
	}

	g := genesis.New(description, coordKey, supply, addr)
	glb.AssertNoError(g.Validate())
	glb.AssertNoError(g.WriteFile(fname))
	glb.Infof("genesis file '%s' has been created:\n%s", fname, g.Lines("    ").String())
}

func initGenesisDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db <genesis file>",
		Short: "initializes empty database with the genesis ledger state",
		Args:  cobra.ExactArgs(1),
		Run:   runGenesisDB,
	}
	return dbCmd
}

func runGenesisDB(_ *cobra.Command, args []string) {
	g, err := genesis.ReadFile(args[0])
	glb.AssertNoError(err)
	glb.Infof("genesis:\n%s", g.Lines("    ").String())

	if !glb.YesNoPrompt("Initialize the database with the genesis ledger state?", true) {
		glb.Fatalf("database wasn't initialized")
	}
	st, closeDB := glb.OpenStore(false)
	defer closeDB()

	glb.AssertNoError(genesis.InitLedgerState(st, g))
	glb.Infof("genesis ledger state has been created successfully")
}

func initGenesisShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <genesis file>",
		Short: "validates and displays genesis file",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			g, err := genesis.ReadFile(args[0])
			glb.AssertNoError(err)
			glb.Infof("%s", g.Lines().String())
		},
	}
}
