// Package engine implements the accounting, solvency-check and liquidation
// core of the stablecore synthetic dollar. Accounts deposit registered
// collateral assets and mint SUSD debt against them; every successful
// operation leaves each indebted position at or above the minimum health
// factor, and unhealthy positions may be partially liquidated by any third
// party for a bonus-weighted slice of collateral.
//
// Known limitation, preserved intentionally: the bonus mechanism assumes the
// system stays near 200% overcollateralized. If aggregate collateralization
// falls to or below 100% there is no fallback auction and liquidator
// incentives break down.
package engine

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"stablecore/core/events"
	"stablecore/crypto"
)

// Config carries the construction-time wiring for an Engine. AssetSymbols,
// PriceFeeds and CollateralTokens are ordered, equal-length registrations;
// the registry is immutable after construction.
type Config struct {
	AssetSymbols     []string
	PriceFeeds       []PriceFeed
	CollateralTokens []CollateralToken
	DebtToken        DebtToken
	State            EngineState
	Emitter          events.Emitter
	ModuleAddress    crypto.Address
	MaxPriceAge      time.Duration
	Clock            func() time.Time
}

// Engine orchestrates the collateral ledger, oracle adapter, mint/burn
// controller and liquidation protocol. Every mutating operation runs fully
// serialized under the engine lock; collaborator implementations must not
// call back into the engine while an operation is in flight.
type Engine struct {
	mu            sync.RWMutex
	state         EngineState
	oracle        *Oracle
	registry      []string
	tokens        map[string]CollateralToken
	debtToken     DebtToken
	emitter       events.Emitter
	moduleAddress crypto.Address
}

// New validates the registry and wires an engine. Mismatched registration
// lists, duplicate assets and missing collaborators all fail before any state
// exists.
func New(cfg Config) (*Engine, error) {
	if len(cfg.AssetSymbols) == 0 {
		return nil, fmt.Errorf("%w: at least one collateral asset required", ErrValidation)
	}
	if len(cfg.PriceFeeds) != len(cfg.AssetSymbols) {
		return nil, fmt.Errorf("%w: %d assets but %d price feeds", ErrValidation, len(cfg.AssetSymbols), len(cfg.PriceFeeds))
	}
	if len(cfg.CollateralTokens) != len(cfg.AssetSymbols) {
		return nil, fmt.Errorf("%w: %d assets but %d collateral tokens", ErrValidation, len(cfg.AssetSymbols), len(cfg.CollateralTokens))
	}
	if cfg.DebtToken == nil {
		return nil, fmt.Errorf("%w: debt token collaborator required", ErrValidation)
	}
	if cfg.State == nil {
		return nil, ErrNilState
	}
	if cfg.MaxPriceAge <= 0 {
		return nil, fmt.Errorf("%w: max price age must be positive", ErrValidation)
	}

	registry := make([]string, 0, len(cfg.AssetSymbols))
	feeds := make(map[string]PriceFeed, len(cfg.AssetSymbols))
	tokens := make(map[string]CollateralToken, len(cfg.AssetSymbols))
	for i, symbol := range cfg.AssetSymbols {
		if symbol == "" {
			return nil, fmt.Errorf("%w: empty asset symbol at index %d", ErrValidation, i)
		}
		if _, dup := feeds[symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate asset %q", ErrValidation, symbol)
		}
		if cfg.PriceFeeds[i] == nil {
			return nil, fmt.Errorf("%w: nil price feed for asset %q", ErrValidation, symbol)
		}
		if cfg.CollateralTokens[i] == nil {
			return nil, fmt.Errorf("%w: nil collateral token for asset %q", ErrValidation, symbol)
		}
		registry = append(registry, symbol)
		feeds[symbol] = cfg.PriceFeeds[i]
		tokens[symbol] = cfg.CollateralTokens[i]
	}

	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}

	return &Engine{
		state:         cfg.State,
		oracle:        NewOracle(feeds, cfg.MaxPriceAge, cfg.Clock),
		registry:      registry,
		tokens:        tokens,
		debtToken:     cfg.DebtToken,
		emitter:       emitter,
		moduleAddress: cfg.ModuleAddress,
	}, nil
}

// Oracle exposes the staleness-checking price adapter for read-only
// conversions.
func (e *Engine) Oracle() *Oracle { return e.oracle }

// CollateralAssets returns the registered asset symbols in registration order.
func (e *Engine) CollateralAssets() []string {
	return append([]string(nil), e.registry...)
}

func (e *Engine) assetRegistered(asset string) bool {
	_, ok := e.tokens[asset]
	return ok
}

// loadPosition returns a staged deep copy of the stored position, creating an
// empty one on first touch. Mutations to the copy become visible only through
// PutPosition.
func (e *Engine) loadPosition(addr crypto.Address) (*Position, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	stored, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	position := stored.Clone()
	if position == nil {
		position = &Position{Address: addr}
	}
	position.ensureDefaults()
	return position, nil
}

// collateralValue sums the USD value of the position's balance in every
// registered asset, in registration order.
func (e *Engine) collateralValue(position *Position) (*big.Int, error) {
	total := big.NewInt(0)
	for _, asset := range e.registry {
		balance := position.collateralBalance(asset)
		if balance.Sign() == 0 {
			continue
		}
		value, err := e.oracle.USDValue(asset, balance)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

func (e *Engine) healthFactorOf(position *Position) (*big.Int, error) {
	if position.DebtMinted.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor), nil
	}
	value, err := e.collateralValue(position)
	if err != nil {
		return nil, err
	}
	return HealthFactor(position.DebtMinted, value), nil
}

// requireHealthy enforces the core invariant on a staged position before it
// is committed.
func (e *Engine) requireHealthy(position *Position) error {
	healthFactor, err := e.healthFactorOf(position)
	if err != nil {
		return err
	}
	if belowMinimum(healthFactor) {
		return fmt.Errorf("%w: health factor %s", ErrSolvencyViolation, healthFactor)
	}
	return nil
}

// --- Read surface ---

// BalanceOf returns the deposited balance of one asset for the account.
func (e *Engine) BalanceOf(addr crypto.Address, asset string) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.assetRegistered(asset) {
		return nil, fmt.Errorf("%w: asset %q not registered", ErrValidation, asset)
	}
	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(position.collateralBalance(asset)), nil
}

// CollateralValue returns the account's total collateral value in USD at the
// 18-decimal scale.
func (e *Engine) CollateralValue(addr crypto.Address) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return e.collateralValue(position)
}

// AccountInformation returns the account's outstanding debt and collateral
// value snapshot.
func (e *Engine) AccountInformation(addr crypto.Address) (debt, collateralValueUSD *big.Int, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, nil, err
	}
	value, err := e.collateralValue(position)
	if err != nil {
		return nil, nil, err
	}
	return new(big.Int).Set(position.DebtMinted), value, nil
}

// AccountHealthFactor returns the account's current solvency ratio.
func (e *Engine) AccountHealthFactor(addr crypto.Address) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return e.healthFactorOf(position)
}

// USDValue converts an asset amount to USD at the current validated price.
func (e *Engine) USDValue(asset string, amount *big.Int) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.oracle.USDValue(asset, amount)
}

// AssetAmountFromUSD converts a USD amount to the equivalent asset amount.
func (e *Engine) AssetAmountFromUSD(asset string, usdAmount *big.Int) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.oracle.AssetAmountFromUSD(asset, usdAmount)
}

// --- Constant getters ---

// LiquidationThreshold returns the percentage of collateral value counted
// toward borrowing capacity.
func (e *Engine) LiquidationThreshold() int64 { return liquidationThreshold }

// LiquidationBonus returns the liquidator incentive percentage.
func (e *Engine) LiquidationBonus() int64 { return liquidationBonus }

// MinHealthFactor returns the minimum solvency ratio at the 18-decimal scale.
func (e *Engine) MinHealthFactor() *big.Int { return new(big.Int).Set(minHealthFactor) }

// Precision returns the 18-decimal internal scale factor.
func (e *Engine) Precision() *big.Int { return new(big.Int).Set(precision) }

// FeedPrecision returns the 8-decimal raw oracle scale factor.
func (e *Engine) FeedPrecision() *big.Int { return new(big.Int).Set(feedPrecision) }

// AdditionalFeedPrecision returns the multiplier rescaling raw oracle answers
// to the internal scale.
func (e *Engine) AdditionalFeedPrecision() *big.Int {
	return new(big.Int).Set(additionalFeedPrecision)
}
