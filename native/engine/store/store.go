// Package store persists engine positions in a key-value backend using RLP
// encoded records.
package store

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"stablecore/crypto"
	"stablecore/native/engine"
	"stablecore/storage"
)

var positionPrefix = []byte("engine/position/")

// Store implements engine.EngineState over a storage.Database.
type Store struct {
	db storage.Database
}

// New binds a position store to the provided database.
func New(db storage.Database) *Store {
	return &Store{db: db}
}

type storedCollateral struct {
	Asset   string
	Balance *big.Int
}

type storedPosition struct {
	Address    [crypto.AddressLength]byte
	Collateral []storedCollateral
	DebtMinted *big.Int
}

func positionKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), positionPrefix...), addr.Bytes()...)
}

// GetPosition loads the stored position for the address, returning (nil, nil)
// when the account has never been persisted.
func (s *Store) GetPosition(addr crypto.Address) (*engine.Position, error) {
	raw, err := s.db.Get(positionKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load position: %w", err)
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("store: decode position: %w", err)
	}
	position := &engine.Position{
		Address:    crypto.MustNewAddress(crypto.StablePrefix, stored.Address[:]),
		Collateral: make(map[string]*big.Int, len(stored.Collateral)),
		DebtMinted: stored.DebtMinted,
	}
	for _, entry := range stored.Collateral {
		position.Collateral[entry.Asset] = entry.Balance
	}
	if position.DebtMinted == nil {
		position.DebtMinted = big.NewInt(0)
	}
	return position, nil
}

// PutPosition writes the position record. Collateral entries are sorted by
// asset so the encoding stays deterministic.
func (s *Store) PutPosition(position *engine.Position) error {
	if position == nil {
		return fmt.Errorf("store: position must not be nil")
	}
	var stored storedPosition
	copy(stored.Address[:], position.Address.Bytes())
	stored.DebtMinted = position.DebtMinted
	if stored.DebtMinted == nil {
		stored.DebtMinted = big.NewInt(0)
	}
	assets := make([]string, 0, len(position.Collateral))
	for asset := range position.Collateral {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		balance := position.Collateral[asset]
		if balance == nil {
			balance = big.NewInt(0)
		}
		stored.Collateral = append(stored.Collateral, storedCollateral{Asset: asset, Balance: balance})
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return fmt.Errorf("store: encode position: %w", err)
	}
	return s.db.Put(positionKey(position.Address), raw)
}
