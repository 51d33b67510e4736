package genesis

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/tangle/util/lines"
	"gopkg.in/yaml.v2"
)

type (
	// Genesis describes initial ledger state: supply distribution, solid entry points and the coordinator
	Genesis struct {
		Description          string
		TotalSupply          uint64
		SnapshotIndex        ledger.MilestoneIndex
		CoordinatorPublicKey ed25519.PublicKey
		Balances             map[ledger.Address]uint64
		// solid entry points with the milestone index they belong to. Null hash is always included
		SolidEntryPoints map[ledger.Hash]ledger.MilestoneIndex
	}

	// genesisYAMLAble structure for canonical yamlAble marshaling
	genesisYAMLAble struct {
		Description          string            `yaml:"description"`
		TotalSupply          uint64            `yaml:"total_supply"`
		SnapshotIndex        uint32            `yaml:"snapshot_index"`
		CoordinatorPublicKey string            `yaml:"coordinator_public_key"`
		Balances             []balanceYAMLAble `yaml:"balances"`
		SolidEntryPoints     []string          `yaml:"solid_entry_points"`
	}

	balanceYAMLAble struct {
		Address string `yaml:"address"`
		Balance uint64 `yaml:"balance"`
	}
)

// New genesis with the whole supply on one address
func New(description string, coordinatorPublicKey ed25519.PublicKey, supply uint64, addr ledger.Address) *Genesis {
	return &Genesis{
		Description:          description,
		TotalSupply:          supply,
		CoordinatorPublicKey: coordinatorPublicKey,
		Balances:             map[ledger.Address]uint64{addr: supply},
		SolidEntryPoints:     map[ledger.Hash]ledger.MilestoneIndex{ledger.NullHash: 0},
	}
}

// Validate checks the supply distribution
func (g *Genesis) Validate() error {
	if len(g.CoordinatorPublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("genesis: wrong coordinator public key")
	}
	if g.TotalSupply == 0 {
		return fmt.Errorf("genesis: total supply must be positive")
	}
	var sum uint64
	for addr, bal := range g.Balances {
		if bal == 0 {
			return fmt.Errorf("genesis: zero balance of %s", addr.StringShort())
		}
		if sum+bal < sum {
			return fmt.Errorf("genesis: balances overflow")
		}
		sum += bal
	}
	if sum != g.TotalSupply {
		return fmt.Errorf("%w: genesis balances sum up to %s, total supply is %s",
			ledger.ErrSupplyMismatch, util.Th(sum), util.Th(g.TotalSupply))
	}
	return nil
}

// InitLedgerState writes genesis ledger state into the empty store in one atomic batch
func InitLedgerState(st *store.Store, g *Genesis) error {
	if err := g.Validate(); err != nil {
		return err
	}
	_, found, err := st.LedgerIndex()
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("genesis: ledger state is already initialized")
	}
	batch := st.NewBatch()
	batch.PutIdentity(&store.Identity{
		TotalSupply:    g.TotalSupply,
		SnapshotIndex:  g.SnapshotIndex,
		CoordinatorKey: g.CoordinatorPublicKey,
	})
	for addr, bal := range g.Balances {
		batch.SetBalance(addr, bal)
	}
	batch.PutSolidEntryPoint(ledger.NullHash, g.SnapshotIndex)
	for h, idx := range g.SolidEntryPoints {
		batch.PutSolidEntryPoint(h, idx)
	}
	batch.SetLedgerIndex(g.SnapshotIndex)
	return batch.Commit()
}

func (g *Genesis) String() string {
	return g.Lines().String()
}

func (g *Genesis) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...).
		Add("Description: '%s'", g.Description).
		Add("Total supply: %s", util.Th(g.TotalSupply)).
		Add("Snapshot index: %d", g.SnapshotIndex).
		Add("Coordinator public key: %s", hex.EncodeToString(g.CoordinatorPublicKey)).
		Add("Balances: %d", len(g.Balances))
	for _, addr := range util.SortKeys(g.Balances, ledger.LessAddress) {
		ret.Add("    %s: %s", addr.String(), util.Th(g.Balances[addr]))
	}
	ret.Add("Solid entry points: %d", len(g.SolidEntryPoints))
	return ret
}

func (g *Genesis) yamlAble() *genesisYAMLAble {
	ret := &genesisYAMLAble{
		Description:          g.Description,
		TotalSupply:          g.TotalSupply,
		SnapshotIndex:        uint32(g.SnapshotIndex),
		CoordinatorPublicKey: hex.EncodeToString(g.CoordinatorPublicKey),
		Balances:             make([]balanceYAMLAble, 0, len(g.Balances)),
		SolidEntryPoints:     make([]string, 0, len(g.SolidEntryPoints)),
	}
	for _, addr := range util.SortKeys(g.Balances, ledger.LessAddress) {
		ret.Balances = append(ret.Balances, balanceYAMLAble{
			Address: addr.String(),
			Balance: g.Balances[addr],
		})
	}
	for _, h := range util.SortKeys(g.SolidEntryPoints, ledger.LessHash) {
		if h == ledger.NullHash {
			continue
		}
		ret.SolidEntryPoints = append(ret.SolidEntryPoints, h.String())
	}
	return ret
}

const genesisComment = `# This file contains tangle genesis data.
# It is used to create genesis ledger state of the network.
# The genesis file does not contain secrets, it is public.
# Once used to create genesis, the data should never be modified.
`

func (g *Genesis) YAML() []byte {
	var buf bytes.Buffer
	data, err := yaml.Marshal(g.yamlAble())
	util.AssertNoError(err)
	buf.WriteString(genesisComment)
	buf.Write(data)
	return buf.Bytes()
}

func (y *genesisYAMLAble) genesis() (*Genesis, error) {
	ret := &Genesis{
		Description:      y.Description,
		TotalSupply:      y.TotalSupply,
		SnapshotIndex:    ledger.MilestoneIndex(y.SnapshotIndex),
		Balances:         make(map[ledger.Address]uint64),
		SolidEntryPoints: map[ledger.Hash]ledger.MilestoneIndex{ledger.NullHash: ledger.MilestoneIndex(y.SnapshotIndex)},
	}
	var err error
	if ret.CoordinatorPublicKey, err = hex.DecodeString(y.CoordinatorPublicKey); err != nil {
		return nil, fmt.Errorf("genesis: wrong coordinator public key: %w", err)
	}
	for _, b := range y.Balances {
		addr, err := ledger.AddressFromHexString(b.Address)
		if err != nil {
			return nil, err
		}
		if _, already := ret.Balances[addr]; already {
			return nil, fmt.Errorf("genesis: repeating address %s", addr.StringShort())
		}
		ret.Balances[addr] = b.Balance
	}
	for _, s := range y.SolidEntryPoints {
		h, err := ledger.HashFromHexString(s)
		if err != nil {
			return nil, err
		}
		ret.SolidEntryPoints[h] = ret.SnapshotIndex
	}
	if err = ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

func FromYAML(data []byte) (*Genesis, error) {
	var y genesisYAMLAble
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, err
	}
	return y.genesis()
}

func ReadFile(fname string) (*Genesis, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func (g *Genesis) WriteFile(fname string) error {
	return os.WriteFile(fname, g.YAML(), 0644)
}
