package engine

import "math/big"

// HealthFactor maps an account's debt and total collateral USD value to its
// solvency ratio at the 18-decimal scale. With no debt the margin is infinite
// and the maximum representable value is returned. Only the threshold share of
// raw collateral value counts toward borrowing capacity; multiplication
// precedes division so small values never truncate to zero early.
func HealthFactor(debtMinted, collateralValueUSD *big.Int) *big.Int {
	if debtMinted == nil || debtMinted.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor)
	}
	adjusted := pctOf(collateralValueUSD, liquidationThreshold)
	return mulDiv(adjusted, precision, debtMinted)
}

func belowMinimum(healthFactor *big.Int) bool {
	return healthFactor.Cmp(minHealthFactor) < 0
}
