package engine

import (
	"fmt"
	"math/big"

	"stablecore/core/events"
	"stablecore/crypto"
)

// MintSusd creates new SUSD debt for the account. The tentative debt increase
// is committed only when the resulting health factor stays at or above the
// minimum and the debt-token collaborator accepts the mint.
func (e *Engine) MintSusd(account crypto.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateAmount(amount); err != nil {
		return err
	}
	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	e.stageMint(position, amount)
	if err := e.requireHealthy(position); err != nil {
		return err
	}
	if err := e.debtToken.Mint(account, amount); err != nil {
		return fmt.Errorf("%w: mint susd: %v", ErrExternalTransferFailed, err)
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emitter.Emit(events.DebtMinted{Account: account, Amount: new(big.Int).Set(amount)})
	return nil
}

// BurnSusd retires amount of the account's own debt, pulling the tokens from
// the account into system custody and destroying them.
func (e *Engine) BurnSusd(account crypto.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateAmount(amount); err != nil {
		return err
	}
	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if err := e.stageBurn(position, amount); err != nil {
		return err
	}
	if err := e.settleBurn(account, amount); err != nil {
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emitter.Emit(events.DebtBurned{Payer: account, OnBehalfOf: account, Amount: new(big.Int).Set(amount)})
	return nil
}

// DepositAndMint chains a collateral deposit and a debt mint as one
// all-or-nothing operation.
func (e *Engine) DepositAndMint(account crypto.Address, asset string, depositAmount, mintAmount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateAmount(depositAmount); err != nil {
		return err
	}
	if err := e.validateAmount(mintAmount); err != nil {
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
	e.stageDeposit(position, asset, depositAmount)
	e.stageMint(position, mintAmount)
	if err := e.requireHealthy(position); err != nil {
		return err
	}

	if err := token.TransferFrom(account, e.moduleAddress, depositAmount); err != nil {
		return fmt.Errorf("%w: deposit %s: %v", ErrExternalTransferFailed, asset, err)
	}
	if err := e.debtToken.Mint(account, mintAmount); err != nil {
		// The deposit already reached custody; hand it back so the wallet
		// and the discarded staged position agree.
		_ = token.Transfer(account, depositAmount)
		return fmt.Errorf("%w: mint susd: %v", ErrExternalTransferFailed, err)
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emitter.Emit(events.CollateralDeposited{Account: account, Asset: asset, Amount: new(big.Int).Set(depositAmount)})
	e.emitter.Emit(events.DebtMinted{Account: account, Amount: new(big.Int).Set(mintAmount)})
	return nil
}

// BurnAndRedeem chains a debt burn and a collateral redemption as one
// all-or-nothing operation.
func (e *Engine) BurnAndRedeem(account crypto.Address, asset string, burnAmount, redeemAmount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateAmount(burnAmount); err != nil {
		return err
	}
	if err := e.validateAmount(redeemAmount); err != nil {
		return err
	}
	if !e.assetRegistered(asset) {
		return fmt.Errorf("%w: asset %q not registered", ErrValidation, asset)
	}

	position, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if err := e.stageBurn(position, burnAmount); err != nil {
		return err
	}
	if err := e.stageWithdraw(position, asset, redeemAmount); err != nil {
		return err
	}
	if err := e.requireHealthy(position); err != nil {
		return err
	}

	if err := e.settleBurn(account, burnAmount); err != nil {
		return err
	}
	if err := e.transferCollateralOut(asset, account, redeemAmount); err != nil {
		// The payer's SUSD was already pulled and destroyed; mint it back
		// since their debt decrease never commits.
		_ = e.debtToken.Mint(account, burnAmount)
		return err
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	e.emitter.Emit(events.DebtBurned{Payer: account, OnBehalfOf: account, Amount: new(big.Int).Set(burnAmount)})
	e.emitter.Emit(events.CollateralRedeemed{
		RedeemedFrom: account,
		RedeemedTo:   account,
		Asset:        asset,
		Amount:       new(big.Int).Set(redeemAmount),
	})
	return nil
}

// stageMint tentatively increases the staged position's debt.
func (e *Engine) stageMint(position *Position, amount *big.Int) {
	position.DebtMinted = new(big.Int).Add(position.DebtMinted, amount)
}

// stageBurn tentatively decreases the staged position's debt, failing when
// the amount exceeds the outstanding debt.
func (e *Engine) stageBurn(position *Position, amount *big.Int) error {
	if position.DebtMinted.Cmp(amount) < 0 {
		return fmt.Errorf("%w: debt %s below burn amount %s", ErrInsufficientFunds, position.DebtMinted, amount)
	}
	position.DebtMinted = new(big.Int).Sub(position.DebtMinted, amount)
	return nil
}

// settleBurn pulls amount of SUSD from the payer into system custody and
// destroys it.
func (e *Engine) settleBurn(payer crypto.Address, amount *big.Int) error {
	if err := e.debtToken.TransferFrom(payer, e.moduleAddress, amount); err != nil {
		return fmt.Errorf("%w: pull susd: %v", ErrExternalTransferFailed, err)
	}
	if err := e.debtToken.Burn(amount); err != nil {
		// The pull succeeded; return the tokens so the payer is made whole.
		_ = e.debtToken.TransferFrom(e.moduleAddress, payer, amount)
		return fmt.Errorf("%w: burn susd: %v", ErrExternalTransferFailed, err)
	}
	return nil
}
