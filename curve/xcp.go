package curve

import (
	"math/big"

	"github.com/apollo-sturdy/pcl-go/fpmath"
)

// Xcp is the fair-value yardstick for LP shares: the constant-product value
// of a balanced pool holding invariant d at the given price scale,
// sqrt(d/2 * d*1e18/(2*priceScale)).
func Xcp(d, priceScale *big.Int) (*big.Int, error) {
	if priceScale == nil || priceScale.Sign() <= 0 {
		return nil, ErrInvalidReserves
	}
	half := new(big.Int).Div(d, two)
	other, err := fpmath.MulDiv(d, fpmath.Precision, new(big.Int).Mul(two, priceScale), fpmath.RoundDown)
	if err != nil {
		return nil, err
	}
	return fpmath.GeometricMean(half, other)
}
