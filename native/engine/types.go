package engine

import (
	"math/big"
	"time"

	"stablecore/crypto"
)

// RoundData is the answer returned by a price feed collaborator. Answer is the
// raw 8-decimal USD price.
type RoundData struct {
	RoundID         uint64
	Answer          *big.Int
	UpdatedAt       time.Time
	AnsweredInRound uint64
}

// PriceFeed is the consumed interface of an external price source. The engine
// only ever reads it through the staleness-checking oracle adapter.
type PriceFeed interface {
	LatestRoundData() (RoundData, error)
}

// DebtToken is the injected capability over the SUSD token. The engine holds
// mint and burn authority; the token itself is a separate collaborator.
type DebtToken interface {
	Mint(to crypto.Address, amount *big.Int) error
	TransferFrom(from, to crypto.Address, amount *big.Int) error
	Burn(amount *big.Int) error
}

// CollateralToken is the consumed interface of a registered collateral asset.
type CollateralToken interface {
	Transfer(to crypto.Address, amount *big.Int) error
	TransferFrom(from, to crypto.Address, amount *big.Int) error
}

// EngineState abstracts the persistence layer holding per-account positions.
// GetPosition returns (nil, nil) when the account has never been seen.
type EngineState interface {
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(position *Position) error
}

// Position tracks the engine-side ledger for one account: deposited collateral
// per asset and outstanding SUSD debt. Accounts are created implicitly on
// first deposit or mint and never destroyed.
type Position struct {
	Address    crypto.Address
	Collateral map[string]*big.Int
	DebtMinted *big.Int
}

// Clone returns a deep copy so staged mutations never leak into shared state.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Address: p.Address, Collateral: make(map[string]*big.Int, len(p.Collateral))}
	for asset, balance := range p.Collateral {
		if balance != nil {
			clone.Collateral[asset] = new(big.Int).Set(balance)
		}
	}
	if p.DebtMinted != nil {
		clone.DebtMinted = new(big.Int).Set(p.DebtMinted)
	}
	return clone
}

func (p *Position) ensureDefaults() {
	if p.Collateral == nil {
		p.Collateral = make(map[string]*big.Int)
	}
	if p.DebtMinted == nil {
		p.DebtMinted = big.NewInt(0)
	}
}

func (p *Position) collateralBalance(asset string) *big.Int {
	if p == nil || p.Collateral == nil {
		return big.NewInt(0)
	}
	balance, ok := p.Collateral[asset]
	if !ok || balance == nil {
		return big.NewInt(0)
	}
	return balance
}

func (p *Position) setCollateralBalance(asset string, balance *big.Int) {
	if p.Collateral == nil {
		p.Collateral = make(map[string]*big.Int)
	}
	p.Collateral[asset] = balance
}
