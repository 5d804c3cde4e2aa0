package engine

import "math/big"

const (
	// liquidationThreshold is the percentage of raw collateral value counted
	// toward borrowing capacity. At 50 a position must be 200%
	// overcollateralized to sit exactly at a health factor of 1.0.
	liquidationThreshold = 50
	// liquidationBonus is the extra percentage of seized collateral awarded
	// to a liquidator.
	liquidationBonus = 10
	// liquidationPrecision is the denominator for the two percentages above.
	liquidationPrecision = 100
)

var (
	// precision is the 18-decimal scale shared by amounts, debt and health
	// factors.
	precision = mustBigInt("1000000000000000000")
	// feedPrecision is the 8-decimal scale used by raw oracle answers.
	feedPrecision = mustBigInt("100000000")
	// additionalFeedPrecision rescales a raw 8-decimal answer to 18 decimals.
	additionalFeedPrecision = mustBigInt("10000000000")
	// minHealthFactor is 1.0 at the 18-decimal scale.
	minHealthFactor = mustBigInt("1000000000000000000")
	// maxHealthFactor is the largest representable health factor, reported
	// for positions with no outstanding debt.
	maxHealthFactor = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)
