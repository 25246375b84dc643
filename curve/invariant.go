// Package curve implements the two-asset concentrated-liquidity invariant:
// Newton-Raphson solvers for the invariant D and for a single reserve, the
// imbalance-driven fee interpolation, and the xcp fair-value yardstick.
//
// All reserves passed in here are already precision- and price-scale
// adjusted to 1e18 fixed point.
package curve

import (
	"errors"
	"math/big"

	"github.com/apollo-sturdy/pcl-go/fpmath"
)

const (
	// NCoins is fixed: this is a two-asset curve.
	NCoins = 2

	// AMultiplier is the scaling of the amplification coefficient. The Amp
	// parameter carries NCoins^NCoins * AMultiplier, matching the bounds
	// below.
	AMultiplier = 10_000

	maxIterations = 255
)

var (
	ErrNotConverged    = errors.New("curve: solver did not converge")
	ErrInvalidReserves = errors.New("curve: reserves outside curve domain")

	// MinAmp..MaxGamma bound the parameter space in which the solvers are
	// known to behave.
	MinAmp   = big.NewInt(NCoins * NCoins * AMultiplier / 10)
	MaxAmp   = big.NewInt(NCoins * NCoins * AMultiplier * 100_000)
	MinGamma = big.NewInt(10_000_000_000)
	MaxGamma = big.NewInt(10_000_000_000_000_000)

	aMultiplier = big.NewInt(AMultiplier)
	nCoins      = big.NewInt(NCoins)
	twoE18      = new(big.Int).Mul(big.NewInt(2), fpmath.Precision)
)

// g1k0 returns |gamma + 1e18 - k0| + 1.
func g1k0(gamma, k0 *big.Int) *big.Int {
	g := new(big.Int).Add(gamma, fpmath.Precision)
	g.Sub(g, k0)
	g.Abs(g)
	return g.Add(g, big.NewInt(1))
}

// NewtonD computes the invariant D for amplification amp (A*N^N*AMultiplier
// format), curvature gamma (1e18) and scaled reserves xp. The initial guess
// is the constant-product invariant 2*sqrt(x0*x1); iteration stops once
// successive estimates differ by less than max(100, D/1e14) and fails with
// ErrNotConverged after 255 rounds.
func NewtonD(amp, gamma *big.Int, xp [NCoins]*big.Int) (*big.Int, error) {
	if xp[0] == nil || xp[1] == nil || xp[0].Sign() <= 0 || xp[1].Sign() <= 0 {
		return nil, ErrInvalidReserves
	}

	x0, x1 := xp[0], xp[1]
	if x0.Cmp(x1) < 0 {
		x0, x1 = x1, x0
	}
	// the smaller reserve must be within 14 orders of magnitude of the
	// larger one, else K0 underflows to zero and the iteration stalls
	ratio, err := fpmath.MulDiv(fpmath.Precision, x1, x0, fpmath.RoundDown)
	if err != nil {
		return nil, err
	}
	if ratio.Cmp(big.NewInt(100_000)) < 0 {
		return nil, ErrInvalidReserves
	}

	s := new(big.Int).Add(x0, x1)
	gm, err := fpmath.GeometricMean(x0, x1)
	if err != nil {
		return nil, ErrInvalidReserves
	}
	d := new(big.Int).Mul(nCoins, gm)

	for i := 0; i < maxIterations; i++ {
		dPrev := new(big.Int).Set(d)
		if d.Sign() <= 0 {
			return nil, ErrInvalidReserves
		}

		// K0 = 1e18 * N^N * x0 * x1 / D^2
		k0, err := fpmath.MulDiv(fpmath.Precision, new(big.Int).Mul(x0, nCoins), d, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}
		k0, err = fpmath.MulDiv(k0, new(big.Int).Mul(x1, nCoins), d, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}
		if k0.Sign() == 0 {
			return nil, ErrInvalidReserves
		}

		g := g1k0(gamma, k0)

		// mul1 = 1e18 * D / gamma * g / gamma * g * AMultiplier / amp
		mul1, err := fpmath.MulDiv(fpmath.Precision, d, gamma, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}
		mul1, err = fpmath.MulDiv(mul1, g, gamma, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}
		mul1, err = fpmath.MulDiv(mul1, new(big.Int).Mul(g, aMultiplier), amp, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}

		// mul2 = 2e18 * N * K0 / g
		mul2, err := fpmath.MulDiv(twoE18, new(big.Int).Mul(nCoins, k0), g, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}

		negFprime := new(big.Int).Add(s, new(big.Int).Div(new(big.Int).Mul(s, mul2), fpmath.Precision))
		negFprime.Add(negFprime, new(big.Int).Div(new(big.Int).Mul(mul1, nCoins), k0))
		negFprime.Sub(negFprime, new(big.Int).Div(new(big.Int).Mul(mul2, d), fpmath.Precision))
		if negFprime.Sign() <= 0 {
			return nil, ErrInvalidReserves
		}

		// D -= f / fprime
		dPlus, err := fpmath.MulDiv(d, new(big.Int).Add(negFprime, s), negFprime, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}
		dMinus, err := fpmath.MulDiv(d, d, negFprime, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}
		correction := new(big.Int).Div(new(big.Int).Mul(d, new(big.Int).Div(mul1, negFprime)), fpmath.Precision)
		if fpmath.Precision.Cmp(k0) > 0 {
			correction.Mul(correction, new(big.Int).Sub(fpmath.Precision, k0))
			correction.Div(correction, k0)
			dMinus.Add(dMinus, correction)
		} else {
			correction.Mul(correction, new(big.Int).Sub(k0, fpmath.Precision))
			correction.Div(correction, k0)
			dMinus.Sub(dMinus, correction)
		}

		if dPlus.Cmp(dMinus) > 0 {
			d = new(big.Int).Sub(dPlus, dMinus)
		} else {
			d = new(big.Int).Sub(dMinus, dPlus)
			d.Div(d, two)
		}

		diff := fpmath.AbsDiff(d, dPrev)
		// diff < max(100, D/1e14)
		if new(big.Int).Mul(diff, big.NewInt(100_000_000_000_000)).Cmp(fpmath.Max(convergenceFloor, d)) < 0 {
			return d, nil
		}
	}
	return nil, ErrNotConverged
}

// NewtonY solves the invariant for reserve i, holding the other reserve and
// D fixed. The initial guess is the constant-product solution D^2/(4*x_j).
func NewtonY(amp, gamma *big.Int, xp [NCoins]*big.Int, d *big.Int, i int) (*big.Int, error) {
	if i < 0 || i >= NCoins {
		return nil, ErrInvalidReserves
	}
	if d == nil || d.Sign() <= 0 {
		return nil, ErrInvalidReserves
	}
	xj := xp[1-i]
	if xj == nil || xj.Sign() <= 0 {
		return nil, ErrInvalidReserves
	}

	y := new(big.Int).Mul(d, d)
	y.Div(y, new(big.Int).Mul(xj, big.NewInt(NCoins*NCoins)))
	if y.Sign() == 0 {
		return nil, ErrInvalidReserves
	}

	k0i, err := fpmath.MulDiv(new(big.Int).Mul(fpmath.Precision, nCoins), xj, d, fpmath.RoundDown)
	if err != nil {
		return nil, err
	}

	convLimit := fpmath.Max(new(big.Int).Div(xj, big.NewInt(100_000_000_000_000)), new(big.Int).Div(d, big.NewInt(100_000_000_000_000)))
	convLimit = fpmath.Max(convLimit, big.NewInt(100))

	for n := 0; n < maxIterations; n++ {
		yPrev := new(big.Int).Set(y)

		k0 := new(big.Int).Mul(k0i, y)
		k0.Mul(k0, nCoins)
		k0.Div(k0, d)
		if k0.Sign() == 0 {
			return nil, ErrInvalidReserves
		}
		s := new(big.Int).Add(xj, y)

		g := g1k0(gamma, k0)

		mul1, err := fpmath.MulDiv(fpmath.Precision, d, gamma, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}
		mul1, err = fpmath.MulDiv(mul1, g, gamma, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}
		mul1, err = fpmath.MulDiv(mul1, new(big.Int).Mul(g, aMultiplier), amp, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}

		mul2 := new(big.Int).Add(fpmath.Precision, new(big.Int).Div(new(big.Int).Mul(twoE18, k0), g))

		yfprime := new(big.Int).Mul(fpmath.Precision, y)
		yfprime.Add(yfprime, new(big.Int).Mul(s, mul2))
		yfprime.Add(yfprime, mul1)
		dyfprime := new(big.Int).Mul(d, mul2)
		if yfprime.Cmp(dyfprime) < 0 {
			y = new(big.Int).Div(yPrev, two)
			continue
		}
		yfprime.Sub(yfprime, dyfprime)
		fprime := new(big.Int).Div(yfprime, y)
		if fprime.Sign() <= 0 {
			return nil, ErrInvalidReserves
		}

		yMinus := new(big.Int).Div(mul1, fprime)
		yPlus := new(big.Int).Add(yfprime, new(big.Int).Mul(fpmath.Precision, d))
		yPlus.Div(yPlus, fprime)
		yPlus.Add(yPlus, new(big.Int).Div(new(big.Int).Mul(yMinus, fpmath.Precision), k0))
		yMinus.Add(yMinus, new(big.Int).Div(new(big.Int).Mul(fpmath.Precision, s), fprime))

		if yPlus.Cmp(yMinus) < 0 {
			y = new(big.Int).Div(yPrev, two)
		} else {
			y = new(big.Int).Sub(yPlus, yMinus)
		}
		if y.Sign() == 0 {
			return nil, ErrInvalidReserves
		}

		diff := fpmath.AbsDiff(y, yPrev)
		if diff.Cmp(fpmath.Max(convLimit, new(big.Int).Div(y, big.NewInt(100_000_000_000_000)))) < 0 {
			return y, nil
		}
	}
	return nil, ErrNotConverged
}

var (
	two              = big.NewInt(2)
	convergenceFloor = big.NewInt(10_000_000_000_000_000)
)

// ValidateParams rejects amplification or curvature outside the solver-safe
// window.
func ValidateParams(amp, gamma *big.Int) error {
	if amp == nil || amp.Cmp(MinAmp) < 0 || amp.Cmp(MaxAmp) > 0 {
		return errors.New("curve: amplification out of range")
	}
	if gamma == nil || gamma.Cmp(MinGamma) < 0 || gamma.Cmp(MaxGamma) > 0 {
		return errors.New("curve: gamma out of range")
	}
	return nil
}
