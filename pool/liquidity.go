package pool

import (
	"fmt"
	"math/big"

	"github.com/apollo-sturdy/pcl-go/curve"
	"github.com/apollo-sturdy/pcl-go/fpmath"
)

// computeProvide applies a deposit of both assets to the working state and
// returns the shares to mint plus the post-deposit invariant.
//
// The first deposit establishes the share baseline: it mints the xcp value
// of the initial invariant and must clear MinInitialShares. Later deposits
// mint pro rata to invariant growth, rounding down so depositors can never
// mint more than their value added.
func computeProvide(cfg *Config, st *State, amounts [2]*big.Int) (*big.Int, *big.Int, error) {
	for i := 0; i < 2; i++ {
		if amounts[i] == nil || amounts[i].Sign() < 0 {
			return nil, nil, fmt.Errorf("%w: negative deposit", ErrInvalidInput)
		}
	}
	if amounts[0].Sign() == 0 && amounts[1].Sign() == 0 {
		return nil, nil, fmt.Errorf("%w: empty deposit", ErrInvalidInput)
	}

	if st.TotalShares.Sign() == 0 {
		if amounts[0].Sign() == 0 || amounts[1].Sign() == 0 {
			return nil, nil, fmt.Errorf("%w: initial deposit must fund both assets", ErrInvalidInput)
		}
		st.Balances[0] = new(big.Int).Set(amounts[0])
		st.Balances[1] = new(big.Int).Set(amounts[1])
		xp, err := st.scaledBalances(cfg)
		if err != nil {
			return nil, nil, err
		}
		d, err := curve.NewtonD(cfg.Amp, cfg.Gamma, xp)
		if err != nil {
			return nil, nil, err
		}
		shares, err := curve.Xcp(d, st.PriceScale)
		if err != nil {
			return nil, nil, err
		}
		if shares.Cmp(MinInitialShares) < 0 {
			return nil, nil, fmt.Errorf("%w: initial deposit below minimum", ErrInsufficientLiquidity)
		}
		st.TotalShares = shares
		st.D = d
		return new(big.Int).Set(shares), d, nil
	}

	d0 := st.D
	if d0 == nil || d0.Sign() <= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}
	newBalances := [2]*big.Int{
		new(big.Int).Add(st.Balances[0], amounts[0]),
		new(big.Int).Add(st.Balances[1], amounts[1]),
	}
	xp, err := scaleReserves(cfg, newBalances, st.PriceScale)
	if err != nil {
		return nil, nil, err
	}
	d1, err := curve.NewtonD(cfg.Amp, cfg.Gamma, xp)
	if err != nil {
		return nil, nil, err
	}
	growth, err := fpmath.Sub(d1, d0)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: deposit shrinks invariant", ErrInvalidInput)
	}
	shares, err := fpmath.MulDiv(st.TotalShares, growth, d0, fpmath.RoundDown)
	if err != nil {
		return nil, nil, err
	}
	if shares.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: deposit too small to mint shares", ErrInvalidInput)
	}

	st.Balances = newBalances
	st.TotalShares = new(big.Int).Add(st.TotalShares, shares)
	return shares, d1, nil
}

// computeWithdraw burns shares for a proportional slice of both reserves.
// Amounts round down; the invariant cache is reduced by the burned
// proportion so no repeg or solver run is needed.
func computeWithdraw(cfg *Config, st *State, shares *big.Int) ([2]*big.Int, error) {
	var out [2]*big.Int
	if shares == nil || shares.Sign() <= 0 {
		return out, fmt.Errorf("%w: non-positive share amount", ErrInvalidInput)
	}
	if st.TotalShares.Sign() == 0 {
		return out, ErrInsufficientLiquidity
	}
	if shares.Cmp(st.TotalShares) > 0 {
		return out, fmt.Errorf("%w: burn exceeds supply", ErrInvalidInput)
	}

	for i := 0; i < 2; i++ {
		amt, err := fpmath.MulDiv(st.Balances[i], shares, st.TotalShares, fpmath.RoundDown)
		if err != nil {
			return out, err
		}
		out[i] = amt
	}
	dBurn, err := fpmath.MulDiv(st.D, shares, st.TotalShares, fpmath.RoundDown)
	if err != nil {
		return out, err
	}

	st.Balances[0] = new(big.Int).Sub(st.Balances[0], out[0])
	st.Balances[1] = new(big.Int).Sub(st.Balances[1], out[1])
	st.D = new(big.Int).Sub(st.D, dBurn)
	st.TotalShares = new(big.Int).Sub(st.TotalShares, shares)
	if st.TotalShares.Sign() == 0 {
		st.D = big.NewInt(0)
	}
	return out, nil
}

// computeWithdrawOneSide burns shares and pays the whole proportional value
// out in asset j, solving the invariant for the reduced D and charging the
// fee curve on the resulting imbalance.
func computeWithdrawOneSide(cfg *Config, st *State, shares *big.Int, j int) (*big.Int, *big.Int, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: non-positive share amount", ErrInvalidInput)
	}
	if st.TotalShares.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidity
	}
	if shares.Cmp(st.TotalShares) >= 0 {
		return nil, nil, fmt.Errorf("%w: one-sided burn must leave liquidity behind", ErrInvalidInput)
	}

	xp, err := st.scaledBalances(cfg)
	if err != nil {
		return nil, nil, err
	}
	d0 := st.D
	if d0 == nil || d0.Sign() <= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	dBurn, err := fpmath.MulDiv(d0, shares, st.TotalShares, fpmath.RoundDown)
	if err != nil {
		return nil, nil, err
	}
	d1 := new(big.Int).Sub(d0, dBurn)

	y, err := curve.NewtonY(cfg.Amp, cfg.Gamma, xp, d1, j)
	if err != nil {
		return nil, nil, err
	}
	dyScaled, err := fpmath.Sub(xp[j], y)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: withdrawal outside curve domain", ErrInvalidInput)
	}
	dyScaled.Sub(dyScaled, big.NewInt(1))
	if dyScaled.Sign() < 0 {
		dyScaled.SetInt64(0)
	}

	xpPost := xp
	xpPost[j] = y
	feeRate, err := curve.FeeRate(cfg.MidFee, cfg.OutFee, cfg.FeeGamma, xpPost)
	if err != nil {
		return nil, nil, err
	}
	feeScaled, err := fpmath.MulDiv(dyScaled, feeRate, fpmath.Precision, fpmath.RoundUp)
	if err != nil {
		return nil, nil, err
	}
	dyNetScaled, err := fpmath.Sub(dyScaled, feeScaled)
	if err != nil {
		return nil, nil, err
	}
	dyNet, err := descaleAmount(cfg, j, dyNetScaled, st.PriceScale, fpmath.RoundDown)
	if err != nil {
		return nil, nil, err
	}
	feeNative, err := descaleAmount(cfg, j, feeScaled, st.PriceScale, fpmath.RoundDown)
	if err != nil {
		return nil, nil, err
	}
	if dyNet.Cmp(st.Balances[j]) >= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	st.Balances[j] = new(big.Int).Sub(st.Balances[j], dyNet)
	st.TotalShares = new(big.Int).Sub(st.TotalShares, shares)
	return dyNet, feeNative, nil
}
