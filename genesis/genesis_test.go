package genesis

import (
	"crypto/ed25519"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util/testutil"
	"github.com/stretchr/testify/require"
)

const supply = 1_000_000_000

func testGenesis() *Genesis {
	coordKey := testutil.GetTestingPrivateKey(100).Public().(ed25519.PublicKey)
	keys := testutil.GetTestingPrivateKeys(2)
	g := New("test genesis", coordKey, supply, ledger.AddressFromPublicKey(keys[0].Public().(ed25519.PublicKey)))
	g.Balances[ledger.AddressFromPublicKey(keys[0].Public().(ed25519.PublicKey))] = supply - 1000
	g.Balances[ledger.AddressFromPublicKey(keys[1].Public().(ed25519.PublicKey))] = 1000
	g.SolidEntryPoints[ledger.HashData([]byte("sep"))] = 0
	return g
}

func TestYAML(t *testing.T) {
	g := testGenesis()
	require.NoError(t, g.Validate())
	data := g.YAML()
	t.Logf("\n%s", string(data))

	back, err := FromYAML(data)
	require.NoError(t, err)
	require.EqualValues(t, g.TotalSupply, back.TotalSupply)
	require.EqualValues(t, g.Balances, back.Balances)
	require.EqualValues(t, g.SolidEntryPoints, back.SolidEntryPoints)
	require.True(t, g.CoordinatorPublicKey.Equal(back.CoordinatorPublicKey))

	t.Run("file", func(t *testing.T) {
		fname := filepath.Join(t.TempDir(), "genesis.yaml")
		require.NoError(t, g.WriteFile(fname))
		back, err := ReadFile(fname)
		require.NoError(t, err)
		require.EqualValues(t, g.String(), back.String())
	})
}

func TestValidate(t *testing.T) {
	g := testGenesis()
	g.TotalSupply++
	err := g.Validate()
	require.True(t, errors.Is(err, ledger.ErrSupplyMismatch))

	_, err = FromYAML(g.YAML())
	require.Error(t, err)
}

func TestInitLedgerState(t *testing.T) {
	g := testGenesis()
	st := store.NewInMemory()
	require.NoError(t, InitLedgerState(st, g))

	idx, found, err := st.LedgerIndex()
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 0, idx)

	balances, err := st.Balances()
	require.NoError(t, err)
	require.EqualValues(t, g.Balances, balances)

	id, found, err := st.Identity()
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, supply, id.TotalSupply)

	seps, err := st.SolidEntryPoints()
	require.NoError(t, err)
	require.EqualValues(t, 2, len(seps))

	err = InitLedgerState(st, g)
	require.Error(t, err)
}
