package engine

import (
	"errors"
	"math/big"
	"testing"

	"stablecore/core/events"
)

func TestDepositCollateralCreditsLedgerAndPullsTokens(t *testing.T) {
	f := newTestFixture(t)
	account := makeAddress(0x01)

	if err := f.engine.DepositCollateral(account, "WETH", eth(10)); err != nil {
		t.Fatalf("DepositCollateral: %v", err)
	}

	stored := f.storedPosition(t, account)
	if stored.Collateral["WETH"].Cmp(eth(10)) != 0 {
		t.Fatalf("ledger balance = %s, want %s", stored.Collateral["WETH"], eth(10))
	}
	if len(f.weth.calls) != 1 {
		t.Fatalf("expected one token call, got %d", len(f.weth.calls))
	}
	call := f.weth.calls[0]
	if call.op != "transferFrom" || !call.from.Equal(account) || !call.to.Equal(f.module) || call.amount.Cmp(eth(10)) != 0 {
		t.Fatalf("unexpected token call %+v", call)
	}
	if len(f.emitter.emitted) != 1 {
		t.Fatalf("expected one event, got %d", len(f.emitter.emitted))
	}
	deposited, ok := f.emitter.emitted[0].(events.CollateralDeposited)
	if !ok {
		t.Fatalf("unexpected event %T", f.emitter.emitted[0])
	}
	if deposited.Asset != "WETH" || deposited.Amount.Cmp(eth(10)) != 0 {
		t.Fatalf("unexpected event payload %+v", deposited)
	}
}

func TestDepositCollateralRejectsZeroAmount(t *testing.T) {
	f := newTestFixture(t)
	account := makeAddress(0x01)

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		if err := f.engine.DepositCollateral(account, "WETH", amount); !errors.Is(err, ErrValidation) {
			t.Fatalf("amount %v: got %v, want ErrValidation", amount, err)
		}
	}
	if len(f.weth.calls) != 0 {
		t.Fatal("rejected deposit still touched the token")
	}
}

func TestDepositCollateralRejectsUnregisteredAsset(t *testing.T) {
	f := newTestFixture(t)
	if err := f.engine.DepositCollateral(makeAddress(0x01), "DOGE", eth(1)); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestDepositCollateralTransferFailureLeavesNoState(t *testing.T) {
	f := newTestFixture(t)
	account := makeAddress(0x01)
	f.weth.transferFromErr = errors.New("allowance exhausted")

	err := f.engine.DepositCollateral(account, "WETH", eth(10))
	if !errors.Is(err, ErrExternalTransferFailed) {
		t.Fatalf("got %v, want ErrExternalTransferFailed", err)
	}
	if _, ok := f.state.positions[f.state.key(account)]; ok {
		t.Fatal("failed deposit committed a position")
	}
	if len(f.emitter.emitted) != 0 {
		t.Fatal("failed deposit emitted events")
	}
}

func TestRedeemCollateralReleasesTokens(t *testing.T) {
	f := newTestFixture(t)
	account := makeAddress(0x01)
	f.seedPosition(account, "WETH", eth(10), nil)

	if err := f.engine.RedeemCollateral(account, "WETH", eth(4)); err != nil {
		t.Fatalf("RedeemCollateral: %v", err)
	}

	stored := f.storedPosition(t, account)
	if stored.Collateral["WETH"].Cmp(eth(6)) != 0 {
		t.Fatalf("ledger balance = %s, want %s", stored.Collateral["WETH"], eth(6))
	}
	call := f.weth.calls[0]
	if call.op != "transfer" || !call.to.Equal(account) || call.amount.Cmp(eth(4)) != 0 {
		t.Fatalf("unexpected token call %+v", call)
	}
	redeemed, ok := f.emitter.emitted[0].(events.CollateralRedeemed)
	if !ok {
		t.Fatalf("unexpected event %T", f.emitter.emitted[0])
	}
	if !redeemed.RedeemedFrom.Equal(account) || !redeemed.RedeemedTo.Equal(account) {
		t.Fatalf("unexpected event payload %+v", redeemed)
	}
}

func TestRedeemCollateralRejectsOverdraw(t *testing.T) {
	f := newTestFixture(t)
	account := makeAddress(0x01)
	f.seedPosition(account, "WETH", eth(3), nil)

	if err := f.engine.RedeemCollateral(account, "WETH", eth(4)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if f.storedPosition(t, account).Collateral["WETH"].Cmp(eth(3)) != 0 {
		t.Fatal("failed redeem mutated the stored balance")
	}
}

func TestRedeemCollateralScopedToNamedAsset(t *testing.T) {
	f := newTestFixture(t)
	account := makeAddress(0x01)
	f.seedPosition(account, "WETH", eth(1), nil)
	f.storedPosition(t, account).Collateral["WBTC"] = eth(5)

	// Plenty of WBTC cannot cover a WETH withdrawal.
	if err := f.engine.RedeemCollateral(account, "WETH", eth(2)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
}

func TestRedeemCollateralBlockedBySolvency(t *testing.T) {
	f := newTestFixture(t)
	account := makeAddress(0x01)
	// 10 WETH at $2000 backs $10000 of capacity; $9000 of debt leaves little slack.
	f.seedPosition(account, "WETH", eth(10), new(big.Int).Mul(big.NewInt(9000), precision))

	err := f.engine.RedeemCollateral(account, "WETH", eth(5))
	if !errors.Is(err, ErrSolvencyViolation) {
		t.Fatalf("got %v, want ErrSolvencyViolation", err)
	}
	if f.storedPosition(t, account).Collateral["WETH"].Cmp(eth(10)) != 0 {
		t.Fatal("blocked redeem mutated the stored balance")
	}
	if len(f.weth.calls) != 0 {
		t.Fatal("blocked redeem moved tokens")
	}
}

func TestRedeemCollateralTransferFailureLeavesNoState(t *testing.T) {
	f := newTestFixture(t)
	account := makeAddress(0x01)
	f.seedPosition(account, "WETH", eth(10), nil)
	f.weth.transferErr = errors.New("custody drained")

	if err := f.engine.RedeemCollateral(account, "WETH", eth(4)); !errors.Is(err, ErrExternalTransferFailed) {
		t.Fatalf("got %v, want ErrExternalTransferFailed", err)
	}
	if f.storedPosition(t, account).Collateral["WETH"].Cmp(eth(10)) != 0 {
		t.Fatal("failed redeem mutated the stored balance")
	}
}

func TestDepositThenRedeemRoundTrips(t *testing.T) {
	f := newTestFixture(t)
	account := makeAddress(0x01)

	if err := f.engine.DepositCollateral(account, "WETH", eth(7)); err != nil {
		t.Fatalf("DepositCollateral: %v", err)
	}
	if err := f.engine.RedeemCollateral(account, "WETH", eth(7)); err != nil {
		t.Fatalf("RedeemCollateral: %v", err)
	}
	if f.storedPosition(t, account).Collateral["WETH"].Sign() != 0 {
		t.Fatal("round trip left a residual balance")
	}
	value, err := f.engine.CollateralValue(account)
	if err != nil {
		t.Fatalf("CollateralValue: %v", err)
	}
	if value.Sign() != 0 {
		t.Fatalf("round trip left residual value %s", value)
	}
}
