package pool

import (
	"errors"
	"math/big"

	"github.com/apollo-sturdy/pcl-go/curve"
	"github.com/apollo-sturdy/pcl-go/fpmath"
)

// tweakPrice runs after every operation that changed reserves. It refreshes
// the price oracle, folds invariant growth into the profit trackers, and
// then decides whether to move the price scale toward the oracle price.
//
// The move is profit-gated: a candidate scale is only accepted when the
// pool has accumulated at least AllowedExtraProfit of invariant-per-share
// headroom beyond what has already been banked in XcpProfit, and when the
// repriced invariant still leaves the virtual price above the banked
// profit. A gate failure leaves PriceScale untouched for this call; it is
// never an error.
//
// lastPrice is the trade price observed by the caller (nil keeps the
// previous one); dUnadjusted is the invariant at the current scale after
// the operation.
func (s *State) tweakPrice(cfg *Config, lastPrice, dUnadjusted *big.Int, now uint64, allowRepeg bool) error {
	if err := s.updateOracle(cfg, now); err != nil {
		return err
	}
	if lastPrice != nil && lastPrice.Sign() > 0 {
		s.LastPrice = new(big.Int).Set(lastPrice)
	}

	if s.TotalShares.Sign() == 0 {
		s.D = new(big.Int).Set(dUnadjusted)
		return nil
	}

	xcp, err := curve.Xcp(dUnadjusted, s.PriceScale)
	if err != nil {
		return err
	}
	vp, err := fpmath.MulDiv(fpmath.Precision, xcp, s.TotalShares, fpmath.RoundDown)
	if err != nil {
		return err
	}
	if vp.Cmp(s.XcpProfitReal) < 0 {
		return ErrInvariantLoss
	}
	xcpProfit, err := fpmath.MulDiv(s.XcpProfit, vp, s.XcpProfitReal, fpmath.RoundDown)
	if err != nil {
		return err
	}

	s.XcpProfit = xcpProfit
	s.XcpProfitReal = vp
	s.D = new(big.Int).Set(dUnadjusted)

	if !allowRepeg {
		return nil
	}

	// headroom check: 2*vp - 1e18 must exceed banked profit by at least
	// twice the configured margin before any adjustment is considered
	headroom := new(big.Int).Mul(vp, two)
	headroom.Sub(headroom, fpmath.Precision)
	required := new(big.Int).Add(xcpProfit, new(big.Int).Mul(two, cfg.AllowedExtraProfit))
	if headroom.Cmp(required) <= 0 {
		return nil
	}

	ratio, err := fpmath.MulDiv(s.PriceOracle, fpmath.Precision, s.PriceScale, fpmath.RoundDown)
	if err != nil {
		return err
	}
	norm := fpmath.AbsDiff(ratio, fpmath.Precision)
	step := fpmath.Max(cfg.AdjustmentStep, new(big.Int).Div(norm, big.NewInt(10)))
	if norm.Cmp(step) <= 0 {
		return nil
	}

	// pNew = (scale*(norm-step) + step*oracle) / norm
	pNew := new(big.Int).Mul(s.PriceScale, new(big.Int).Sub(norm, step))
	pNew.Add(pNew, new(big.Int).Mul(step, s.PriceOracle))
	pNew.Div(pNew, norm)
	if pNew.Sign() <= 0 {
		return nil
	}

	xpNew, err := scaleReserves(cfg, s.Balances, pNew)
	if err != nil {
		return err
	}
	dNew, err := curve.NewtonD(cfg.Amp, cfg.Gamma, xpNew)
	if err != nil {
		if errors.Is(err, curve.ErrNotConverged) || errors.Is(err, curve.ErrInvalidReserves) {
			// candidate scale is unusable; keep the current one
			return nil
		}
		return err
	}
	xcpNew, err := curve.Xcp(dNew, pNew)
	if err != nil {
		return err
	}
	vpNew, err := fpmath.MulDiv(fpmath.Precision, xcpNew, s.TotalShares, fpmath.RoundDown)
	if err != nil {
		return err
	}

	// accept only while the repriced virtual price stays above the banked
	// profit; otherwise the move would be paid for by LPs
	gate := new(big.Int).Mul(vpNew, two)
	gate.Sub(gate, fpmath.Precision)
	if vpNew.Cmp(fpmath.Precision) > 0 && gate.Cmp(xcpProfit) > 0 {
		s.PriceScale = pNew
		s.D = dNew
		s.XcpProfitReal = vpNew
	}
	return nil
}

var two = big.NewInt(2)
