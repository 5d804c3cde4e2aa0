package events

import (
	"math/big"

	"stablecore/core/types"
	"stablecore/crypto"
)

const (
	// TypeCollateralDeposited is emitted whenever collateral enters system
	// custody.
	TypeCollateralDeposited = "engine.collateral_deposited"
	// TypeCollateralRedeemed is emitted whenever collateral leaves system
	// custody, covering both voluntary redemption and liquidation seizure.
	TypeCollateralRedeemed = "engine.collateral_redeemed"
	// TypeDebtMinted is emitted whenever new SUSD debt is created.
	TypeDebtMinted = "engine.debt_minted"
	// TypeDebtBurned is emitted whenever SUSD debt is retired.
	TypeDebtBurned = "engine.debt_burned"
	// TypeLiquidation is emitted once per completed liquidation call.
	TypeLiquidation = "engine.liquidation"
)

type CollateralDeposited struct {
	Account crypto.Address
	Asset   string
	Amount  *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralDeposited,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"asset":   e.Asset,
			"amount":  formatAmount(e.Amount),
		},
	}
}

// CollateralRedeemed records a collateral movement out of custody. RedeemedFrom
// is the account whose ledger balance decreased; RedeemedTo is the receiver of
// the underlying asset. During liquidation the two differ.
type CollateralRedeemed struct {
	RedeemedFrom crypto.Address
	RedeemedTo   crypto.Address
	Asset        string
	Amount       *big.Int
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

func (e CollateralRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralRedeemed,
		Attributes: map[string]string{
			"redeemedFrom": e.RedeemedFrom.String(),
			"redeemedTo":   e.RedeemedTo.String(),
			"asset":        e.Asset,
			"amount":       formatAmount(e.Amount),
		},
	}
}

type DebtMinted struct {
	Account crypto.Address
	Amount  *big.Int
}

func (DebtMinted) EventType() string { return TypeDebtMinted }

func (e DebtMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeDebtMinted,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// DebtBurned records a debt reduction. Payer funded the burn; OnBehalfOf is the
// account whose debt decreased. They differ when a liquidator retires a
// target's debt.
type DebtBurned struct {
	Payer      crypto.Address
	OnBehalfOf crypto.Address
	Amount     *big.Int
}

func (DebtBurned) EventType() string { return TypeDebtBurned }

func (e DebtBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeDebtBurned,
		Attributes: map[string]string{
			"payer":      e.Payer.String(),
			"onBehalfOf": e.OnBehalfOf.String(),
			"amount":     formatAmount(e.Amount),
		},
	}
}

type Liquidation struct {
	Liquidator       crypto.Address
	Target           crypto.Address
	Asset            string
	DebtCovered      *big.Int
	CollateralSeized *big.Int
}

func (Liquidation) EventType() string { return TypeLiquidation }

func (e Liquidation) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidation,
		Attributes: map[string]string{
			"liquidator":       e.Liquidator.String(),
			"target":           e.Target.String(),
			"asset":            e.Asset,
			"debtCovered":      formatAmount(e.DebtCovered),
			"collateralSeized": formatAmount(e.CollateralSeized),
		},
	}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
