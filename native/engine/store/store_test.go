package store

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"stablecore/crypto"
	"stablecore/native/engine"
	"stablecore/storage"
)

func testAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.MustNewAddress(crypto.StablePrefix, raw)
}

func TestGetPositionUnknownAccount(t *testing.T) {
	store := New(storage.NewMemDB())
	position, err := store.GetPosition(testAddress(0x01))
	require.NoError(t, err)
	require.Nil(t, position)
}

func TestPutGetRoundTrip(t *testing.T) {
	store := New(storage.NewMemDB())
	addr := testAddress(0x01)
	original := &engine.Position{
		Address: addr,
		Collateral: map[string]*big.Int{
			"WETH": big.NewInt(1_000_000),
			"WBTC": big.NewInt(42),
		},
		DebtMinted: big.NewInt(777),
	}

	require.NoError(t, store.PutPosition(original))

	loaded, err := store.GetPosition(addr)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.True(t, loaded.Address.Equal(addr))
	require.Equal(t, 0, loaded.DebtMinted.Cmp(big.NewInt(777)))
	require.Len(t, loaded.Collateral, 2)
	require.Equal(t, 0, loaded.Collateral["WETH"].Cmp(big.NewInt(1_000_000)))
	require.Equal(t, 0, loaded.Collateral["WBTC"].Cmp(big.NewInt(42)))
}

func TestPutPositionOverwrites(t *testing.T) {
	store := New(storage.NewMemDB())
	addr := testAddress(0x01)

	require.NoError(t, store.PutPosition(&engine.Position{
		Address:    addr,
		Collateral: map[string]*big.Int{"WETH": big.NewInt(10)},
		DebtMinted: big.NewInt(5),
	}))
	require.NoError(t, store.PutPosition(&engine.Position{
		Address:    addr,
		Collateral: map[string]*big.Int{"WETH": big.NewInt(3)},
		DebtMinted: big.NewInt(0),
	}))

	loaded, err := store.GetPosition(addr)
	require.NoError(t, err)
	require.Equal(t, 0, loaded.Collateral["WETH"].Cmp(big.NewInt(3)))
	require.Equal(t, 0, loaded.DebtMinted.Sign())
}

func TestPutPositionNilFieldsNormalized(t *testing.T) {
	store := New(storage.NewMemDB())
	addr := testAddress(0x01)

	require.NoError(t, store.PutPosition(&engine.Position{
		Address:    addr,
		Collateral: map[string]*big.Int{"WETH": nil},
	}))

	loaded, err := store.GetPosition(addr)
	require.NoError(t, err)
	require.Equal(t, 0, loaded.DebtMinted.Sign())
	require.Equal(t, 0, loaded.Collateral["WETH"].Sign())
}

func TestPutPositionNilRejected(t *testing.T) {
	store := New(storage.NewMemDB())
	require.Error(t, store.PutPosition(nil))
}

func TestEncodingIsDeterministic(t *testing.T) {
	db := storage.NewMemDB()
	store := New(db)
	addr := testAddress(0x01)
	position := &engine.Position{
		Address: addr,
		Collateral: map[string]*big.Int{
			"WETH": big.NewInt(1),
			"WBTC": big.NewInt(2),
			"LINK": big.NewInt(3),
		},
		DebtMinted: big.NewInt(4),
	}

	require.NoError(t, store.PutPosition(position))
	first, err := db.Get(positionKey(addr))
	require.NoError(t, err)

	// Re-encoding the same logical position must produce identical bytes
	// regardless of map iteration order.
	for i := 0; i < 16; i++ {
		require.NoError(t, store.PutPosition(position))
		again, err := db.Get(positionKey(addr))
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestPositionsIsolatedPerAccount(t *testing.T) {
	store := New(storage.NewMemDB())
	first, second := testAddress(0x01), testAddress(0x02)

	require.NoError(t, store.PutPosition(&engine.Position{
		Address:    first,
		Collateral: map[string]*big.Int{"WETH": big.NewInt(9)},
		DebtMinted: big.NewInt(1),
	}))

	loaded, err := store.GetPosition(second)
	require.NoError(t, err)
	require.Nil(t, loaded)
}
