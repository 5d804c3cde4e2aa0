package engine

import (
	"fmt"
	"math/big"

	"stablecore/core/events"
	"stablecore/crypto"
)

// Liquidate lets a third party cover part of an unhealthy target's debt in
// exchange for a bonus-weighted slice of one of the target's collateral
// assets. The call is scoped to exactly the named asset; it never spans the
// target's wider collateral set. Partial liquidation is permitted as long as
// it strictly improves the target's health factor.
func (e *Engine) Liquidate(asset string, target crypto.Address, debtToCover *big.Int, liquidator crypto.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.assetRegistered(asset) {
		return nil, fmt.Errorf("%w: asset %q not registered", ErrValidation, asset)
	}
	if err := e.validateAmount(debtToCover); err != nil {
		return nil, err
	}

	targetPos, err := e.loadPosition(target)
	if err != nil {
		return nil, err
	}
	startValue, err := e.collateralValue(targetPos)
	if err != nil {
		return nil, err
	}
	startHF := HealthFactor(targetPos.DebtMinted, startValue)
	if !belowMinimum(startHF) {
		return nil, fmt.Errorf("%w: health factor %s", ErrLiquidationNotEligible, startHF)
	}

	seizedBase, err := e.oracle.AssetAmountFromUSD(asset, debtToCover)
	if err != nil {
		return nil, err
	}
	bonus := pctOf(seizedBase, liquidationBonus)
	totalSeized := new(big.Int).Add(seizedBase, bonus)

	if err := e.stageWithdraw(targetPos, asset, totalSeized); err != nil {
		return nil, err
	}
	if err := e.stageBurn(targetPos, debtToCover); err != nil {
		return nil, err
	}

	endValue, err := e.collateralValue(targetPos)
	if err != nil {
		return nil, err
	}
	endHF := HealthFactor(targetPos.DebtMinted, endValue)
	if endHF.Cmp(startHF) <= 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrLiquidationIneffective, startHF, endHF)
	}

	// The liquidator's own position must not be left undercollateralized.
	// When the liquidator liquidates itself the staged target copy already
	// reflects both mutations.
	liquidatorPos := targetPos
	if !liquidator.Equal(target) {
		liquidatorPos, err = e.loadPosition(liquidator)
		if err != nil {
			return nil, err
		}
	}
	if err := e.requireHealthy(liquidatorPos); err != nil {
		return nil, err
	}

	if err := e.settleBurn(liquidator, debtToCover); err != nil {
		return nil, err
	}
	if err := e.transferCollateralOut(asset, liquidator, totalSeized); err != nil {
		// The liquidator's SUSD was already pulled and destroyed; mint it
		// back since the target's debt decrease never commits.
		_ = e.debtToken.Mint(liquidator, debtToCover)
		return nil, err
	}
	if err := e.state.PutPosition(targetPos); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.CollateralRedeemed{
		RedeemedFrom: target,
		RedeemedTo:   liquidator,
		Asset:        asset,
		Amount:       new(big.Int).Set(totalSeized),
	})
	e.emitter.Emit(events.DebtBurned{Payer: liquidator, OnBehalfOf: target, Amount: new(big.Int).Set(debtToCover)})
	e.emitter.Emit(events.Liquidation{
		Liquidator:       liquidator,
		Target:           target,
		Asset:            asset,
		DebtCovered:      new(big.Int).Set(debtToCover),
		CollateralSeized: new(big.Int).Set(totalSeized),
	})
	return totalSeized, nil
}
