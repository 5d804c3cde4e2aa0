package modules

import (
	"errors"
	"math/big"
	"net/http"
	"time"

	"stablecore/crypto"
	"stablecore/native/engine"
	"stablecore/native/feed"
	"stablecore/native/token"
	"stablecore/observability"
)

// EngineModule adapts the issuance engine for the JSON-RPC surface and
// records per-operation metrics.
type EngineModule struct {
	engine  *engine.Engine
	feeds   map[string]*feed.Manual
	tokens  map[string]*token.Token
	metrics *observability.EngineMetrics
	clock   func() time.Time
}

// NewEngineModule wires the module. feeds and tokens are optional lookups
// used by the price-admin and balance-query methods.
func NewEngineModule(eng *engine.Engine, feeds map[string]*feed.Manual, tokens map[string]*token.Token) *EngineModule {
	return &EngineModule{
		engine:  eng,
		feeds:   feeds,
		tokens:  tokens,
		metrics: observability.Metrics(),
		clock:   time.Now,
	}
}

func (m *EngineModule) moduleUnavailable() *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "engine module not available"}
}

func (m *EngineModule) wrapError(err error) *ModuleError {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, engine.ErrInsufficientFunds),
		errors.Is(err, engine.ErrSolvencyViolation),
		errors.Is(err, engine.ErrLiquidationNotEligible),
		errors.Is(err, engine.ErrLiquidationIneffective),
		errors.Is(err, engine.ErrStaleOracleData),
		errors.Is(err, engine.ErrExternalTransferFailed):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeServerError, Message: err.Error()}
	default:
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
	}
}

func (m *EngineModule) run(operation string, fn func() error) *ModuleError {
	if m == nil || m.engine == nil {
		return m.moduleUnavailable()
	}
	started := m.clock()
	err := fn()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.metrics.Observe(operation, outcome, m.clock().Sub(started))
	if err != nil {
		return m.wrapError(err)
	}
	return nil
}

func (m *EngineModule) DepositCollateral(account crypto.Address, asset string, amount *big.Int) *ModuleError {
	return m.run("deposit_collateral", func() error {
		return m.engine.DepositCollateral(account, asset, amount)
	})
}

func (m *EngineModule) MintSusd(account crypto.Address, amount *big.Int) *ModuleError {
	return m.run("mint_susd", func() error {
		return m.engine.MintSusd(account, amount)
	})
}

func (m *EngineModule) DepositAndMint(account crypto.Address, asset string, depositAmount, mintAmount *big.Int) *ModuleError {
	return m.run("deposit_and_mint", func() error {
		return m.engine.DepositAndMint(account, asset, depositAmount, mintAmount)
	})
}

func (m *EngineModule) RedeemCollateral(account crypto.Address, asset string, amount *big.Int) *ModuleError {
	return m.run("redeem_collateral", func() error {
		return m.engine.RedeemCollateral(account, asset, amount)
	})
}

func (m *EngineModule) BurnSusd(account crypto.Address, amount *big.Int) *ModuleError {
	return m.run("burn_susd", func() error {
		return m.engine.BurnSusd(account, amount)
	})
}

func (m *EngineModule) BurnAndRedeem(account crypto.Address, asset string, burnAmount, redeemAmount *big.Int) *ModuleError {
	return m.run("burn_and_redeem", func() error {
		return m.engine.BurnAndRedeem(account, asset, burnAmount, redeemAmount)
	})
}

func (m *EngineModule) Liquidate(asset string, target crypto.Address, debtToCover *big.Int, liquidator crypto.Address) (*big.Int, *ModuleError) {
	var seized *big.Int
	moduleErr := m.run("liquidate", func() error {
		var err error
		seized, err = m.engine.Liquidate(asset, target, debtToCover, liquidator)
		return err
	})
	if moduleErr != nil {
		return nil, moduleErr
	}
	return seized, nil
}

// AccountSnapshot bundles the read surface for one account.
type AccountSnapshot struct {
	Address            string              `json:"address"`
	DebtMinted         *big.Int            `json:"debtMinted"`
	CollateralValueUSD *big.Int            `json:"collateralValueUsd"`
	HealthFactor       *big.Int            `json:"healthFactor"`
	Collateral         map[string]*big.Int `json:"collateral"`
}

func (m *EngineModule) GetAccount(addr crypto.Address) (*AccountSnapshot, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	debt, value, err := m.engine.AccountInformation(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	healthFactor, err := m.engine.AccountHealthFactor(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	collateral := make(map[string]*big.Int)
	for _, asset := range m.engine.CollateralAssets() {
		balance, err := m.engine.BalanceOf(addr, asset)
		if err != nil {
			return nil, m.wrapError(err)
		}
		collateral[asset] = balance
	}
	return &AccountSnapshot{
		Address:            addr.String(),
		DebtMinted:         debt,
		CollateralValueUSD: value,
		HealthFactor:       healthFactor,
		Collateral:         collateral,
	}, nil
}

func (m *EngineModule) USDValue(asset string, amount *big.Int) (*big.Int, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	value, err := m.engine.USDValue(asset, amount)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return value, nil
}

func (m *EngineModule) AssetAmountFromUSD(asset string, usdAmount *big.Int) (*big.Int, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	amount, err := m.engine.AssetAmountFromUSD(asset, usdAmount)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return amount, nil
}

func (m *EngineModule) HealthFactor(addr crypto.Address) (*big.Int, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	healthFactor, err := m.engine.AccountHealthFactor(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return healthFactor, nil
}

func (m *EngineModule) CollateralAssets() ([]string, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	return m.engine.CollateralAssets(), nil
}

// Parameters reports the engine's global constants.
type Parameters struct {
	LiquidationThresholdPct int64    `json:"liquidationThresholdPct"`
	LiquidationBonusPct     int64    `json:"liquidationBonusPct"`
	MinHealthFactor         *big.Int `json:"minHealthFactor"`
	Precision               *big.Int `json:"precision"`
	FeedPrecision           *big.Int `json:"feedPrecision"`
	AdditionalFeedPrecision *big.Int `json:"additionalFeedPrecision"`
}

func (m *EngineModule) Parameters() (*Parameters, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	return &Parameters{
		LiquidationThresholdPct: m.engine.LiquidationThreshold(),
		LiquidationBonusPct:     m.engine.LiquidationBonus(),
		MinHealthFactor:         m.engine.MinHealthFactor(),
		Precision:               m.engine.Precision(),
		FeedPrecision:           m.engine.FeedPrecision(),
		AdditionalFeedPrecision: m.engine.AdditionalFeedPrecision(),
	}, nil
}

func (m *EngineModule) SetOraclePrice(asset string, price *big.Int) *ModuleError {
	if m == nil {
		return m.moduleUnavailable()
	}
	manual, ok := m.feeds[asset]
	if !ok {
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "no manual feed for asset " + asset}
	}
	if price == nil || price.Sign() <= 0 {
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "price must be positive"}
	}
	manual.SetAnswer(price)
	return nil
}

func (m *EngineModule) TokenBalance(symbol string, addr crypto.Address) (*big.Int, *ModuleError) {
	if m == nil {
		return nil, m.moduleUnavailable()
	}
	ledger, ok := m.tokens[symbol]
	if !ok {
		return nil, &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "unknown token " + symbol}
	}
	balance, err := ledger.BalanceOf(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return balance, nil
}
