package engine

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"stablecore/core/events"
	"stablecore/crypto"
)

// setupUnderwater seeds a target with 1 WETH of collateral and $1000 of debt,
// minted at $2000, then crashes the price to $1800 so the health factor falls
// to 0.9.
func setupUnderwater(t *testing.T) (*testFixture, crypto.Address) {
	t.Helper()
	f := newTestFixture(t)
	target := makeAddress(0x01)
	f.seedPosition(target, "WETH", eth(1), susd(1000))
	f.wethFeed.data = RoundData{RoundID: 2, Answer: rawPrice(1800), UpdatedAt: testClockTime, AnsweredInRound: 2}

	hf, err := f.engine.AccountHealthFactor(target)
	if err != nil {
		t.Fatalf("AccountHealthFactor: %v", err)
	}
	want := new(big.Int).Div(new(big.Int).Mul(big.NewInt(9), precision), big.NewInt(10))
	if hf.Cmp(want) != 0 {
		t.Fatalf("setup health factor = %s, want %s", hf, want)
	}
	return f, target
}

// expectedSeizure mirrors the seizure arithmetic: the covered debt converted
// to WETH at $1800, plus the 10% bonus, each leg floor-divided.
func expectedSeizure(debtToCover *big.Int) *big.Int {
	price := new(big.Int).Mul(rawPrice(1800), additionalFeedPrecision)
	base := new(big.Int).Div(new(big.Int).Mul(debtToCover, precision), price)
	bonus := new(big.Int).Div(new(big.Int).Mul(base, big.NewInt(10)), big.NewInt(100))
	return base.Add(base, bonus)
}

func TestLiquidatePartialCoverSeizesWithBonus(t *testing.T) {
	f, target := setupUnderwater(t)
	liquidator := makeAddress(0x02)
	cover := susd(500)
	wantSeized := expectedSeizure(cover)

	seized, err := f.engine.Liquidate("WETH", target, cover, liquidator)
	if err != nil {
		t.Fatalf("Liquidate: %v", err)
	}
	if seized.Cmp(wantSeized) != 0 {
		t.Fatalf("seized = %s, want %s", seized, wantSeized)
	}

	stored := f.storedPosition(t, target)
	wantBalance := new(big.Int).Sub(eth(1), wantSeized)
	if stored.Collateral["WETH"].Cmp(wantBalance) != 0 {
		t.Fatalf("target balance = %s, want %s", stored.Collateral["WETH"], wantBalance)
	}
	if stored.DebtMinted.Cmp(susd(500)) != 0 {
		t.Fatalf("target debt = %s, want %s", stored.DebtMinted, susd(500))
	}

	// The liquidator pays the debt; the tokens are pulled then destroyed.
	pull, burn := f.susd.calls[0], f.susd.calls[1]
	if pull.op != "transferFrom" || !pull.from.Equal(liquidator) || !pull.to.Equal(f.module) || pull.amount.Cmp(cover) != 0 {
		t.Fatalf("unexpected pull %+v", pull)
	}
	if burn.op != "burn" || burn.amount.Cmp(cover) != 0 {
		t.Fatalf("unexpected burn %+v", burn)
	}
	// The seized collateral leaves custody toward the liquidator.
	release := f.weth.calls[0]
	if release.op != "transfer" || !release.to.Equal(liquidator) || release.amount.Cmp(wantSeized) != 0 {
		t.Fatalf("unexpected release %+v", release)
	}

	hf, err := f.engine.AccountHealthFactor(target)
	if err != nil {
		t.Fatalf("AccountHealthFactor: %v", err)
	}
	if hf.Cmp(minHealthFactor) < 0 {
		t.Fatalf("partial liquidation left target unhealthy: %s", hf)
	}
}

func TestLiquidateEmitsRedeemBurnAndLiquidationEvents(t *testing.T) {
	f, target := setupUnderwater(t)
	liquidator := makeAddress(0x02)
	cover := susd(500)

	if _, err := f.engine.Liquidate("WETH", target, cover, liquidator); err != nil {
		t.Fatalf("Liquidate: %v", err)
	}
	if len(f.emitter.emitted) != 3 {
		t.Fatalf("expected 3 events, got %d", len(f.emitter.emitted))
	}
	redeemed, ok := f.emitter.emitted[0].(events.CollateralRedeemed)
	if !ok {
		t.Fatalf("first event %T", f.emitter.emitted[0])
	}
	if !redeemed.RedeemedFrom.Equal(target) || !redeemed.RedeemedTo.Equal(liquidator) {
		t.Fatalf("unexpected redeem payload %+v", redeemed)
	}
	burned, ok := f.emitter.emitted[1].(events.DebtBurned)
	if !ok {
		t.Fatalf("second event %T", f.emitter.emitted[1])
	}
	if !burned.Payer.Equal(liquidator) || !burned.OnBehalfOf.Equal(target) {
		t.Fatalf("unexpected burn payload %+v", burned)
	}
	liq, ok := f.emitter.emitted[2].(events.Liquidation)
	if !ok {
		t.Fatalf("third event %T", f.emitter.emitted[2])
	}
	if liq.DebtCovered.Cmp(cover) != 0 || liq.CollateralSeized.Cmp(expectedSeizure(cover)) != 0 {
		t.Fatalf("unexpected liquidation payload %+v", liq)
	}
}

func TestLiquidateFullCoverClearsDebt(t *testing.T) {
	f, target := setupUnderwater(t)
	liquidator := makeAddress(0x02)

	seized, err := f.engine.Liquidate("WETH", target, susd(1000), liquidator)
	if err != nil {
		t.Fatalf("Liquidate: %v", err)
	}
	if seized.Cmp(expectedSeizure(susd(1000))) != 0 {
		t.Fatalf("seized = %s, want %s", seized, expectedSeizure(susd(1000)))
	}
	stored := f.storedPosition(t, target)
	if stored.DebtMinted.Sign() != 0 {
		t.Fatalf("target debt = %s after full cover", stored.DebtMinted)
	}
	hf, err := f.engine.AccountHealthFactor(target)
	if err != nil {
		t.Fatalf("AccountHealthFactor: %v", err)
	}
	if hf.Cmp(maxHealthFactor) != 0 {
		t.Fatalf("debt-free target health factor = %s", hf)
	}

	// A second liquidation attempt finds a healthy target.
	if _, err := f.engine.Liquidate("WETH", target, susd(1), liquidator); !errors.Is(err, ErrLiquidationNotEligible) {
		t.Fatalf("got %v, want ErrLiquidationNotEligible", err)
	}
}

func TestLiquidateHealthyTargetRejected(t *testing.T) {
	f := newTestFixture(t)
	target := makeAddress(0x01)
	f.seedPosition(target, "WETH", eth(10), susd(1000))

	_, err := f.engine.Liquidate("WETH", target, susd(500), makeAddress(0x02))
	if !errors.Is(err, ErrLiquidationNotEligible) {
		t.Fatalf("got %v, want ErrLiquidationNotEligible", err)
	}
}

func TestLiquidateValidation(t *testing.T) {
	f, target := setupUnderwater(t)
	liquidator := makeAddress(0x02)

	if _, err := f.engine.Liquidate("DOGE", target, susd(1), liquidator); !errors.Is(err, ErrValidation) {
		t.Fatalf("unregistered asset: got %v, want ErrValidation", err)
	}
	if _, err := f.engine.Liquidate("WETH", target, big.NewInt(0), liquidator); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero cover: got %v, want ErrValidation", err)
	}
}

func TestLiquidateSeizureExceedingBalanceFails(t *testing.T) {
	f, target := setupUnderwater(t)

	// Covering the full debt at a far lower price needs more WETH than held.
	f.wethFeed.data = RoundData{RoundID: 3, Answer: rawPrice(900), UpdatedAt: testClockTime, AnsweredInRound: 3}
	_, err := f.engine.Liquidate("WETH", target, susd(1000), makeAddress(0x02))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	stored := f.storedPosition(t, target)
	if stored.Collateral["WETH"].Cmp(eth(1)) != 0 || stored.DebtMinted.Cmp(susd(1000)) != 0 {
		t.Fatal("failed liquidation mutated the target")
	}
}

func TestLiquidateMustImproveTargetHealth(t *testing.T) {
	f := newTestFixture(t)
	target := makeAddress(0x01)
	// Collateralization has fallen to ~106%; the 10% bonus now removes more
	// value per covered dollar than the burn removes debt, so any partial
	// liquidation pushes the health factor further down.
	f.seedPosition(target, "WETH", eth(1), susd(1700))
	f.wethFeed.data = RoundData{RoundID: 2, Answer: rawPrice(1800), UpdatedAt: testClockTime, AnsweredInRound: 2}

	_, err := f.engine.Liquidate("WETH", target, susd(100), makeAddress(0x02))
	if !errors.Is(err, ErrLiquidationIneffective) {
		t.Fatalf("got %v, want ErrLiquidationIneffective", err)
	}
	stored := f.storedPosition(t, target)
	if stored.Collateral["WETH"].Cmp(eth(1)) != 0 || stored.DebtMinted.Cmp(susd(1700)) != 0 {
		t.Fatal("ineffective liquidation mutated the target")
	}
}

func TestLiquidateIndebtedLiquidatorMustStayHealthy(t *testing.T) {
	f, target := setupUnderwater(t)
	liquidator := makeAddress(0x02)
	// The liquidator is itself underwater after the same price crash.
	f.seedPosition(liquidator, "WETH", eth(1), susd(1000))

	_, err := f.engine.Liquidate("WETH", target, susd(500), liquidator)
	if !errors.Is(err, ErrSolvencyViolation) {
		t.Fatalf("got %v, want ErrSolvencyViolation", err)
	}
	if len(f.susd.calls) != 0 || len(f.weth.calls) != 0 {
		t.Fatal("blocked liquidation moved tokens")
	}
}

func TestLiquidateDebtFreeLiquidatorAllowed(t *testing.T) {
	f, target := setupUnderwater(t)
	liquidator := makeAddress(0x02)
	// No debt means an infinite margin regardless of collateral.
	if _, err := f.engine.Liquidate("WETH", target, susd(500), liquidator); err != nil {
		t.Fatalf("Liquidate: %v", err)
	}
}

func TestLiquidateReleaseFailureRestoresSusd(t *testing.T) {
	f, target := setupUnderwater(t)
	liquidator := makeAddress(0x02)
	cover := susd(500)
	f.weth.transferErr = errors.New("custody drained")

	_, err := f.engine.Liquidate("WETH", target, cover, liquidator)
	if !errors.Is(err, ErrExternalTransferFailed) {
		t.Fatalf("got %v, want ErrExternalTransferFailed", err)
	}
	stored := f.storedPosition(t, target)
	if stored.Collateral["WETH"].Cmp(eth(1)) != 0 || stored.DebtMinted.Cmp(susd(1000)) != 0 {
		t.Fatal("failed liquidation mutated the target")
	}
	// The liquidator's burnt SUSD comes back since the target's debt
	// decrease never commits.
	if len(f.susd.calls) != 3 {
		t.Fatalf("expected pull+burn+restore, got %d calls", len(f.susd.calls))
	}
	restore := f.susd.calls[2]
	if restore.op != "mint" || !restore.to.Equal(liquidator) || restore.amount.Cmp(cover) != 0 {
		t.Fatalf("unexpected restore %+v", restore)
	}
	if len(f.emitter.emitted) != 0 {
		t.Fatal("failed liquidation emitted events")
	}
}

func TestLiquidateSettleFailureLeavesNoState(t *testing.T) {
	f, target := setupUnderwater(t)
	f.susd.transferFromErr = errors.New("balance too low")

	_, err := f.engine.Liquidate("WETH", target, susd(500), makeAddress(0x02))
	if !errors.Is(err, ErrExternalTransferFailed) {
		t.Fatalf("got %v, want ErrExternalTransferFailed", err)
	}
	stored := f.storedPosition(t, target)
	if stored.Collateral["WETH"].Cmp(eth(1)) != 0 || stored.DebtMinted.Cmp(susd(1000)) != 0 {
		t.Fatal("failed liquidation mutated the target")
	}
}

func TestLiquidateStaleOracleBlocksLiquidation(t *testing.T) {
	f, target := setupUnderwater(t)
	f.wethFeed.data.UpdatedAt = testClockTime.Add(-4 * time.Hour)

	_, err := f.engine.Liquidate("WETH", target, susd(500), makeAddress(0x02))
	if !errors.Is(err, ErrStaleOracleData) {
		t.Fatalf("got %v, want ErrStaleOracleData", err)
	}
}
