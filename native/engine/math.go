package engine

import "math/big"

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// mulDiv computes a*b/den with the multiplication performed first so that
// intermediate values never truncate to zero prematurely. Division is floor
// (truncating) division.
func mulDiv(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// pctOf computes amount*pct/liquidationPrecision using the 2-decimal
// percentage scale.
func pctOf(amount *big.Int, pct int64) *big.Int {
	return mulDiv(amount, big.NewInt(pct), big.NewInt(liquidationPrecision))
}
