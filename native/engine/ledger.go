package engine

import (
	"fmt"
	"math/big"

	"stablecore/core/events"
	"stablecore/crypto"
)

// DepositCollateral moves amount of the registered asset from the account
// into system custody and credits the account's ledger balance. The balance
// increase and the collaborator transfer succeed or fail together.
func (e *Engine) DepositCollateral(account crypto.Address, asset string, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateAmount(amount); err != nil {
		return err
	}
	token, ok := e.tokens[asset]
	if !ok {
		return fmt.Errorf("%w: asset %q not registered", ErrValidation, asset)
	}

	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	e.stageDeposit(position, asset, amount)

	if err := token.TransferFrom(account, e.moduleAddress, amount); err != nil {
		return fmt.Errorf("%w: deposit %s: %v", ErrExternalTransferFailed, asset, err)
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emitter.Emit(events.CollateralDeposited{Account: account, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// RedeemCollateral releases amount of the asset from the account's ledger
// balance back to the account. The resulting position must remain at or above
// the minimum health factor.
func (e *Engine) RedeemCollateral(account crypto.Address, asset string, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateAmount(amount); err != nil {
		return err
	}
	if !e.assetRegistered(asset) {
		return fmt.Errorf("%w: asset %q not registered", ErrValidation, asset)
	}

	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if err := e.stageWithdraw(position, asset, amount); err != nil {
		return err
	}
	if err := e.requireHealthy(position); err != nil {
		return err
	}
	if err := e.transferCollateralOut(asset, account, amount); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emitter.Emit(events.CollateralRedeemed{
		RedeemedFrom: account,
		RedeemedTo:   account,
		Asset:        asset,
		Amount:       new(big.Int).Set(amount),
	})
	return nil
}

func (e *Engine) validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}

// stageDeposit credits the staged position's ledger balance.
func (e *Engine) stageDeposit(position *Position, asset string, amount *big.Int) {
	balance := position.collateralBalance(asset)
	position.setCollateralBalance(asset, new(big.Int).Add(balance, amount))
}

// stageWithdraw debits the staged position's ledger balance, failing when the
// balance in the named asset alone cannot cover the amount.
func (e *Engine) stageWithdraw(position *Position, asset string, amount *big.Int) error {
	balance := position.collateralBalance(asset)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s balance %s below %s", ErrInsufficientFunds, asset, balance, amount)
	}
	position.setCollateralBalance(asset, new(big.Int).Sub(balance, amount))
	return nil
}

func (e *Engine) transferCollateralOut(asset string, to crypto.Address, amount *big.Int) error {
	if err := e.tokens[asset].Transfer(to, amount); err != nil {
		return fmt.Errorf("%w: release %s: %v", ErrExternalTransferFailed, asset, err)
	}
	return nil
}
