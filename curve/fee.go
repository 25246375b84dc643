package curve

import (
	"math/big"

	"github.com/apollo-sturdy/pcl-go/fpmath"
)

// Imbalance measures how far the scaled reserves sit from the value-equal
// point, normalized to 1e18: zero at perfect balance, approaching 1e18 as
// one side empties. It is 1e18 - N^N*x0*x1/(x0+x1)^2 * 1e18.
func Imbalance(xp [NCoins]*big.Int) (*big.Int, error) {
	if xp[0].Sign() <= 0 || xp[1].Sign() <= 0 {
		return nil, ErrInvalidReserves
	}
	sum := new(big.Int).Add(xp[0], xp[1])
	sumSq, err := fpmath.Pow(sum, 2)
	if err != nil {
		return nil, err
	}
	prod, err := fpmath.Mul(xp[0], xp[1])
	if err != nil {
		return nil, err
	}
	prod.Mul(prod, big.NewInt(NCoins*NCoins))
	k, err := fpmath.MulDiv(fpmath.Precision, prod, sumSq, fpmath.RoundDown)
	if err != nil {
		return nil, err
	}
	if k.Cmp(fpmath.Precision) > 0 {
		// rounding artifact at perfect balance
		k.Set(fpmath.Precision)
	}
	return new(big.Int).Sub(fpmath.Precision, k), nil
}

// FeeRate interpolates between midFee at perfect balance and outFee far from
// balance:
//
//	fee = (midFee*feeGamma + outFee*imbalance) / (feeGamma + imbalance)
//
// The result is monotone non-decreasing in the imbalance and always within
// [midFee, outFee]. All fractions are 1e18 scaled.
func FeeRate(midFee, outFee, feeGamma *big.Int, xp [NCoins]*big.Int) (*big.Int, error) {
	imb, err := Imbalance(xp)
	if err != nil {
		return nil, err
	}
	denom := new(big.Int).Add(feeGamma, imb)
	if denom.Sign() == 0 {
		return new(big.Int).Set(midFee), nil
	}
	num := new(big.Int).Mul(midFee, feeGamma)
	num.Add(num, new(big.Int).Mul(outFee, imb))
	return fpmath.Div(num, denom, fpmath.RoundUp)
}
