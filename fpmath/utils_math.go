package fpmath

import (
	"errors"
	"math/big"
)

// ErrNotConverged reports that a bounded Newton or series iteration ran out
// of steps before stabilizing.
var ErrNotConverged = errors.New("fpmath: iteration did not converge")

// expPrecision terminates the HalfPow series once terms fall below 1e-8.
var expPrecision = big.NewInt(10_000_000_000)

// Sqrt returns the integer square root of value (Babylonian method).
func Sqrt(value *big.Int) *big.Int {
	if value.Sign() == 0 {
		return big.NewInt(0)
	}
	if value.Cmp(one) == 0 {
		return big.NewInt(1)
	}
	x := new(big.Int).Set(value)
	y := new(big.Int).Add(value, one)
	y.Div(y, two)

	for y.Cmp(x) < 0 {
		x.Set(y)
		y = new(big.Int).Add(x, new(big.Int).Div(value, x))
		y.Div(y, two)
	}
	return x
}

// GeometricMean returns sqrt(a*b), erroring on non-positive inputs.
func GeometricMean(a, b *big.Int) (*big.Int, error) {
	if a.Sign() <= 0 || b.Sign() <= 0 {
		return nil, ErrOverflow
	}
	prod, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return Sqrt(prod), nil
}

// HalfPow computes 1e18 * 0.5^(power/1e18) via the binomial series.
// Exponents of 59 or more underflow to zero.
func HalfPow(power *big.Int) (*big.Int, error) {
	intPow := new(big.Int).Div(power, Precision)
	otherPow := new(big.Int).Sub(power, new(big.Int).Mul(intPow, Precision))
	if intPow.Cmp(big.NewInt(59)) > 0 {
		return big.NewInt(0), nil
	}
	result := new(big.Int).Rsh(Precision, uint(intPow.Uint64()))
	if otherPow.Sign() == 0 {
		return result, nil
	}

	term := new(big.Int).Set(Precision)
	x := big.NewInt(500_000_000_000_000_000)
	sum := new(big.Int).Set(Precision)
	neg := false

	for i := int64(1); i < 256; i++ {
		k := new(big.Int).Mul(big.NewInt(i), Precision)
		c := new(big.Int).Sub(k, Precision)
		if otherPow.Cmp(c) > 0 {
			c.Sub(otherPow, c)
			neg = !neg
		} else {
			c.Sub(c, otherPow)
		}
		term.Mul(term, new(big.Int).Div(new(big.Int).Mul(c, x), Precision))
		term.Div(term, k)
		if neg {
			sum.Sub(sum, term)
		} else {
			sum.Add(sum, term)
		}
		if term.Cmp(expPrecision) < 0 {
			return MulDiv(result, sum, Precision, RoundDown)
		}
	}
	return nil, ErrNotConverged
}
