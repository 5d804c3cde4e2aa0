// Package token provides state-backed balance ledgers implementing the
// engine's debt-token and collateral-token collaborator interfaces. Each
// ledger acts on behalf of the engine's custody account, mirroring a token
// contract whose operator is the issuance engine.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"stablecore/crypto"
	"stablecore/storage"
)

var (
	// ErrInsufficientBalance is returned when a transfer or burn exceeds the
	// holder's balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInvalidAmount is returned for nil, zero or negative amounts.
	ErrInvalidAmount = errors.New("token: amount must be positive")
)

// Token is a persistent balance ledger for one asset symbol. Transfer and
// Burn act from the custody account, matching the calls the engine issues as
// the token's operator.
type Token struct {
	mu      sync.Mutex
	db      storage.Database
	symbol  string
	custody crypto.Address
}

// New binds a token ledger for symbol to the database, acting for custody.
func New(db storage.Database, symbol string, custody crypto.Address) *Token {
	return &Token{db: db, symbol: symbol, custody: custody}
}

// Symbol returns the asset symbol this ledger tracks.
func (t *Token) Symbol() string { return t.symbol }

func (t *Token) balanceKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("token/%s/balance/%x", t.symbol, addr.Bytes()))
}

func (t *Token) supplyKey() []byte {
	return []byte(fmt.Sprintf("token/%s/supply", t.symbol))
}

func (t *Token) load(key []byte) (*big.Int, error) {
	raw, err := t.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(raw, value); err != nil {
		return nil, fmt.Errorf("token: decode balance: %w", err)
	}
	return value, nil
}

func (t *Token) persist(key []byte, value *big.Int) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("token: encode balance: %w", err)
	}
	return t.db.Put(key, raw)
}

func validatePositive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// BalanceOf returns the holder's current balance.
func (t *Token) BalanceOf(addr crypto.Address) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(t.balanceKey(addr))
}

// TotalSupply returns the outstanding token supply.
func (t *Token) TotalSupply() (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(t.supplyKey())
}

// Mint credits newly created tokens to the recipient.
func (t *Token) Mint(to crypto.Address, amount *big.Int) error {
	if err := validatePositive(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	balance, err := t.load(t.balanceKey(to))
	if err != nil {
		return err
	}
	supply, err := t.load(t.supplyKey())
	if err != nil {
		return err
	}
	if err := t.persist(t.balanceKey(to), new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	return t.persist(t.supplyKey(), new(big.Int).Add(supply, amount))
}

// Burn destroys tokens already held by the custody account.
func (t *Token) Burn(amount *big.Int) error {
	if err := validatePositive(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	balance, err := t.load(t.balanceKey(t.custody))
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: custody holds %s, burning %s", ErrInsufficientBalance, balance, amount)
	}
	supply, err := t.load(t.supplyKey())
	if err != nil {
		return err
	}
	if err := t.persist(t.balanceKey(t.custody), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return t.persist(t.supplyKey(), new(big.Int).Sub(supply, amount))
}

// Transfer moves tokens from the custody account to the recipient.
func (t *Token) Transfer(to crypto.Address, amount *big.Int) error {
	return t.TransferFrom(t.custody, to, amount)
}

// TransferFrom moves tokens between two holders.
func (t *Token) TransferFrom(from, to crypto.Address, amount *big.Int) error {
	if err := validatePositive(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fromBalance, err := t.load(t.balanceKey(from))
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, moving %s", ErrInsufficientBalance, from.String(), fromBalance, amount)
	}
	if from.Equal(to) {
		return nil
	}
	toBalance, err := t.load(t.balanceKey(to))
	if err != nil {
		return err
	}
	if err := t.persist(t.balanceKey(from), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return t.persist(t.balanceKey(to), new(big.Int).Add(toBalance, amount))
}
