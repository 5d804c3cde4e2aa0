package engine

import (
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Oracle wraps the per-asset price feed collaborators, enforcing freshness
// before any answer is used for valuation. Raw 8-decimal answers are
// normalized to the 18-decimal internal scale.
type Oracle struct {
	mu        sync.Mutex
	feeds     map[string]PriceFeed
	maxAge    time.Duration
	clock     func() time.Time
	lastRound map[string]uint64
}

// NewOracle constructs an oracle over the supplied feeds. maxAge bounds how
// old an answer may be before it is rejected as stale.
func NewOracle(feeds map[string]PriceFeed, maxAge time.Duration, clock func() time.Time) *Oracle {
	if clock == nil {
		clock = time.Now
	}
	cloned := make(map[string]PriceFeed, len(feeds))
	for asset, feed := range feeds {
		cloned[asset] = feed
	}
	return &Oracle{
		feeds:     cloned,
		maxAge:    maxAge,
		clock:     clock,
		lastRound: make(map[string]uint64),
	}
}

// GetPrice returns the latest validated round for the asset. It fails with
// ErrStaleOracleData when the answer is older than the configured maximum age
// or when the reported round is inconsistent with the latest known round,
// which guards against a stuck upstream feed silently serving old data.
func (o *Oracle) GetPrice(asset string) (RoundData, error) {
	feed, ok := o.feeds[asset]
	if !ok {
		return RoundData{}, fmt.Errorf("%w: asset %q not registered", ErrValidation, asset)
	}
	data, err := feed.LatestRoundData()
	if err != nil {
		return RoundData{}, fmt.Errorf("%w: %s: %v", ErrStaleOracleData, asset, err)
	}
	if data.Answer == nil || data.Answer.Sign() <= 0 {
		return RoundData{}, fmt.Errorf("%w: %s reported non-positive answer", ErrStaleOracleData, asset)
	}
	if data.AnsweredInRound < data.RoundID {
		return RoundData{}, fmt.Errorf("%w: %s answered in round %d for round %d", ErrStaleOracleData, asset, data.AnsweredInRound, data.RoundID)
	}
	if age := o.clock().Sub(data.UpdatedAt); age > o.maxAge {
		return RoundData{}, fmt.Errorf("%w: %s answer is %s old (max %s)", ErrStaleOracleData, asset, age, o.maxAge)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if last, seen := o.lastRound[asset]; seen && data.RoundID < last {
		return RoundData{}, fmt.Errorf("%w: %s round regressed from %d to %d", ErrStaleOracleData, asset, last, data.RoundID)
	}
	o.lastRound[asset] = data.RoundID
	return data, nil
}

// USDValue converts an 18-decimal asset amount to its 18-decimal USD value at
// the current validated price.
func (o *Oracle) USDValue(asset string, amount *big.Int) (*big.Int, error) {
	if amount == nil {
		amount = big.NewInt(0)
	}
	price, err := o.GetPrice(asset)
	if err != nil {
		return nil, err
	}
	return mulDiv(amount, normalizePrice(price.Answer), precision), nil
}

// AssetAmountFromUSD converts an 18-decimal USD amount to the asset amount it
// buys at the current validated price. It is the exact multiplicative inverse
// of USDValue, subject to integer truncation.
func (o *Oracle) AssetAmountFromUSD(asset string, usdAmount *big.Int) (*big.Int, error) {
	if usdAmount == nil {
		usdAmount = big.NewInt(0)
	}
	price, err := o.GetPrice(asset)
	if err != nil {
		return nil, err
	}
	return mulDiv(usdAmount, precision, normalizePrice(price.Answer)), nil
}

func normalizePrice(raw *big.Int) *big.Int {
	return new(big.Int).Mul(raw, additionalFeedPrecision)
}
