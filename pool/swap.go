package pool

import (
	"fmt"
	"math/big"

	"github.com/apollo-sturdy/pcl-go/curve"
	"github.com/apollo-sturdy/pcl-go/fpmath"
)

// computeSwap prices dx native units of asset i against the working state,
// mutating its balances. The invariant cache and profit trackers are left
// for tweakPrice, which the caller runs on the post-trade reserves.
//
// The output side is solved at constant D; one unit is shaved off the raw
// output and every conversion back to native units rounds down, so rounding
// error always accrues to the pool.
func computeSwap(cfg *Config, st *State, i int, dx *big.Int) (*SwapQuote, error) {
	if dx == nil || dx.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive input amount", ErrInvalidInput)
	}
	if st.TotalShares.Sign() == 0 || st.Balances[0].Sign() == 0 || st.Balances[1].Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	j := 1 - i

	xp, err := st.scaledBalances(cfg)
	if err != nil {
		return nil, err
	}
	d := st.D
	if d == nil || d.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	dxScaled, err := scaleAmount(cfg, i, dx, st.PriceScale)
	if err != nil {
		return nil, err
	}
	xp[i], err = fpmath.Add(xp[i], dxScaled)
	if err != nil {
		return nil, err
	}

	yNew, err := curve.NewtonY(cfg.Amp, cfg.Gamma, xp, d, j)
	if err != nil {
		return nil, err
	}
	dyScaled := new(big.Int).Sub(xp[j], yNew)
	dyScaled.Sub(dyScaled, big.NewInt(1))
	if dyScaled.Sign() < 0 {
		dyScaled.SetInt64(0)
	}
	xp[j] = yNew

	feeRate, err := curve.FeeRate(cfg.MidFee, cfg.OutFee, cfg.FeeGamma, xp)
	if err != nil {
		return nil, err
	}
	feeScaled, err := fpmath.MulDiv(dyScaled, feeRate, fpmath.Precision, fpmath.RoundUp)
	if err != nil {
		return nil, err
	}
	dyNetScaled, err := fpmath.Sub(dyScaled, feeScaled)
	if err != nil {
		return nil, err
	}

	dyGross, err := descaleAmount(cfg, j, dyScaled, st.PriceScale, fpmath.RoundDown)
	if err != nil {
		return nil, err
	}
	dyNet, err := descaleAmount(cfg, j, dyNetScaled, st.PriceScale, fpmath.RoundDown)
	if err != nil {
		return nil, err
	}
	feeNative := new(big.Int).Sub(dyGross, dyNet)

	if dyNet.Cmp(st.Balances[j]) >= 0 {
		return nil, ErrInsufficientLiquidity
	}

	execPrice, err := tradePrice(cfg, st.PriceScale, i, dx, dxScaled, dyScaled)
	if err != nil {
		return nil, err
	}
	spot := new(big.Int).Set(st.LastPrice)
	var spread *big.Int
	if spot.Sign() > 0 {
		spread, err = fpmath.MulDiv(fpmath.AbsDiff(execPrice, spot), fpmath.Precision, spot, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}
	} else {
		spread = big.NewInt(0)
	}

	st.Balances[i] = new(big.Int).Add(st.Balances[i], dx)
	st.Balances[j] = new(big.Int).Sub(st.Balances[j], dyNet)

	return &SwapQuote{
		OfferAsset:         cfg.Assets[i],
		AskAsset:           cfg.Assets[j],
		AmountIn:           new(big.Int).Set(dx),
		AmountOutBeforeFee: dyGross,
		AmountOut:          dyNet,
		FeeAmount:          feeNative,
		SpotPrice:          spot,
		ExecutionPrice:     execPrice,
		Spread:             spread,
	}, nil
}

// tradePrice derives the execution price (1e18 asset 0 per asset 1) from
// the gross amounts of the trade.
func tradePrice(cfg *Config, priceScale *big.Int, i int, dx, dxScaled, dyScaled *big.Int) (*big.Int, error) {
	if dyScaled.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero output", ErrInvalidInput)
	}
	if i == 0 {
		// offered asset 0, received asset 1
		return fpmath.MulDiv(dxScaled, priceScale, dyScaled, fpmath.RoundDown)
	}
	dxPrec, err := fpmath.Mul(dx, cfg.PrecisionMul[1])
	if err != nil {
		return nil, err
	}
	return fpmath.MulDiv(dyScaled, fpmath.Precision, dxPrec, fpmath.RoundDown)
}

// computeSwapExactOut prices the input needed to receive exactly dyNet
// native units of asset j. The fee depends on the post-trade imbalance,
// which itself depends on the gross output, so the rate is refined by a
// short fixed-point loop before the input side is solved. Input amounts
// round up: the caller owes the pool.
func computeSwapExactOut(cfg *Config, st *State, j int, dyNet *big.Int) (*SwapQuote, error) {
	if dyNet == nil || dyNet.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive output amount", ErrInvalidInput)
	}
	if st.TotalShares.Sign() == 0 || st.Balances[0].Sign() == 0 || st.Balances[1].Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	if dyNet.Cmp(st.Balances[j]) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	i := 1 - j

	xp, err := st.scaledBalances(cfg)
	if err != nil {
		return nil, err
	}
	d := st.D
	if d == nil || d.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	dyNetScaled, err := scaleAmount(cfg, j, dyNet, st.PriceScale)
	if err != nil {
		return nil, err
	}

	feeRate := new(big.Int).Set(cfg.MidFee)
	var dyGrossScaled *big.Int
	var xpTry [curve.NCoins]*big.Int
	for iter := 0; iter < 8; iter++ {
		denom, err := fpmath.Sub(fpmath.Precision, feeRate)
		if err != nil || denom.Sign() == 0 {
			return nil, fmt.Errorf("%w: fee saturates output", ErrInvalidInput)
		}
		dyGrossScaled, err = fpmath.MulDiv(dyNetScaled, fpmath.Precision, denom, fpmath.RoundUp)
		if err != nil {
			return nil, err
		}
		if dyGrossScaled.Cmp(xp[j]) >= 0 {
			return nil, ErrInsufficientLiquidity
		}
		xpTry = xp
		xpTry[j] = new(big.Int).Sub(xp[j], dyGrossScaled)
		next, err := curve.FeeRate(cfg.MidFee, cfg.OutFee, cfg.FeeGamma, xpTry)
		if err != nil {
			return nil, err
		}
		if fpmath.AbsDiff(next, feeRate).Cmp(big.NewInt(1)) <= 0 {
			feeRate = next
			break
		}
		feeRate = next
	}

	xNew, err := curve.NewtonY(cfg.Amp, cfg.Gamma, xpTry, d, i)
	if err != nil {
		return nil, err
	}
	dxScaled, err := fpmath.Sub(xNew, xp[i])
	if err != nil {
		return nil, fmt.Errorf("%w: trade does not require input", ErrInvalidInput)
	}
	dx, err := descaleAmount(cfg, i, dxScaled, st.PriceScale, fpmath.RoundUp)
	if err != nil {
		return nil, err
	}

	dyGross, err := descaleAmount(cfg, j, dyGrossScaled, st.PriceScale, fpmath.RoundDown)
	if err != nil {
		return nil, err
	}
	feeNative := new(big.Int).Sub(dyGross, dyNet)
	if feeNative.Sign() < 0 {
		feeNative.SetInt64(0)
	}

	execPrice, err := tradePrice(cfg, st.PriceScale, i, dx, dxScaled, dyGrossScaled)
	if err != nil {
		return nil, err
	}
	spot := new(big.Int).Set(st.LastPrice)
	spread := big.NewInt(0)
	if spot.Sign() > 0 {
		spread, err = fpmath.MulDiv(fpmath.AbsDiff(execPrice, spot), fpmath.Precision, spot, fpmath.RoundDown)
		if err != nil {
			return nil, err
		}
	}

	return &SwapQuote{
		OfferAsset:         cfg.Assets[i],
		AskAsset:           cfg.Assets[j],
		AmountIn:           dx,
		AmountOutBeforeFee: dyGross,
		AmountOut:          new(big.Int).Set(dyNet),
		FeeAmount:          feeNative,
		SpotPrice:          spot,
		ExecutionPrice:     execPrice,
		Spread:             spread,
	}, nil
}
