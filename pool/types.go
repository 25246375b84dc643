// Package pool is the state machine of a two-asset concentrated-liquidity
// pool: it sequences swaps, liquidity provision and withdrawal over a
// persisted State, repegs the internal price scale toward the oracle price,
// and accumulates the time-weighted price oracle. Every entry point is
// all-or-nothing: state is committed only after every fallible step has
// succeeded.
package pool

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/apollo-sturdy/pcl-go/curve"
	"github.com/apollo-sturdy/pcl-go/fpmath"
)

// MinInitialShares is the floor on the very first mint. Dust-sized initial
// deposits are rejected so a first depositor cannot establish a
// near-zero share baseline and dilute later entrants.
var MinInitialShares = big.NewInt(1_000_000)

// Config holds the immutable per-epoch curve parameters. Replacing it is a
// governance concern outside this package.
type Config struct {
	// Assets are the identifiers of the pair; index 0 is the quote side of
	// all prices in State.
	Assets [2]string

	// PrecisionMul converts each asset's native integer amounts to 1e18
	// fixed point (1e12 for a 6-decimals asset, 1 for 18 decimals).
	PrecisionMul [2]*big.Int

	// Amp carries A*N^N*AMultiplier, Gamma is 1e18 scaled.
	Amp   *big.Int
	Gamma *big.Int

	// MidFee applies at perfect balance, OutFee far from it, FeeGamma
	// controls how fast the fee climbs in between. 1e18 fractions.
	MidFee   *big.Int
	OutFee   *big.Int
	FeeGamma *big.Int

	// AllowedExtraProfit is the invariant-per-share headroom a repeg must
	// preserve; AdjustmentStep bounds how far one call may move the scale.
	AllowedExtraProfit *big.Int
	AdjustmentStep     *big.Int

	// MAHalfTime is the EMA half-life of the price oracle, in seconds.
	MAHalfTime uint64
}

// Validate checks the parameter space once at pool construction.
func (c *Config) Validate() error {
	if c.Assets[0] == "" || c.Assets[1] == "" || c.Assets[0] == c.Assets[1] {
		return fmt.Errorf("%w: asset pair", ErrInvalidInput)
	}
	for i := 0; i < 2; i++ {
		if c.PrecisionMul[i] == nil || c.PrecisionMul[i].Sign() <= 0 {
			return fmt.Errorf("%w: precision multiplier %d", ErrInvalidInput, i)
		}
	}
	if err := curve.ValidateParams(c.Amp, c.Gamma); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for _, f := range []*big.Int{c.MidFee, c.OutFee, c.FeeGamma, c.AllowedExtraProfit, c.AdjustmentStep} {
		if f == nil || f.Sign() < 0 || f.Cmp(fpmath.Precision) > 0 {
			return fmt.Errorf("%w: fee fraction out of [0, 1]", ErrInvalidInput)
		}
	}
	if c.MidFee.Cmp(c.OutFee) > 0 {
		return fmt.Errorf("%w: mid_fee above out_fee", ErrInvalidInput)
	}
	if c.FeeGamma.Sign() == 0 {
		return fmt.Errorf("%w: fee_gamma must be positive", ErrInvalidInput)
	}
	if c.MAHalfTime == 0 {
		return fmt.Errorf("%w: ma_half_time must be positive", ErrInvalidInput)
	}
	return nil
}

func (c *Config) assetIndex(asset string) (int, error) {
	switch asset {
	case c.Assets[0]:
		return 0, nil
	case c.Assets[1]:
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAsset, asset)
}

// Observation is one point of the cumulative-price series consumed by TWAP
// queries. PriceCumulative is the integral of LastPrice over time, 1e18
// price units times seconds.
type Observation struct {
	Timestamp       uint64
	PriceCumulative *big.Int
}

// State is the full persisted condition of one pool. All prices
// (PriceScale, LastPrice, PriceOracle) are 1e18-scaled units of asset 0 per
// unit of asset 1.
type State struct {
	Balances    [2]*big.Int
	TotalShares *big.Int

	PriceScale  *big.Int
	LastPrice   *big.Int
	PriceOracle *big.Int

	// XcpProfit tracks cumulative invariant growth per share since
	// inception; XcpProfitReal is the current virtual price. Both start at
	// 1e18 and never decrease except when an accepted repeg spends profit
	// to move the scale.
	XcpProfit     *big.Int
	XcpProfitReal *big.Int

	// D caches the invariant at the current PriceScale.
	D *big.Int

	LastPriceTimestamp uint64
	Observations       []Observation
}

// NewState returns the state of a freshly instantiated pool: empty reserves
// and all prices pinned at the initial scale.
func NewState(initialPrice *big.Int, now uint64) *State {
	return &State{
		Balances:           [2]*big.Int{big.NewInt(0), big.NewInt(0)},
		TotalShares:        big.NewInt(0),
		PriceScale:         new(big.Int).Set(initialPrice),
		LastPrice:          new(big.Int).Set(initialPrice),
		PriceOracle:        new(big.Int).Set(initialPrice),
		XcpProfit:          new(big.Int).Set(fpmath.Precision),
		XcpProfitReal:      new(big.Int).Set(fpmath.Precision),
		D:                  big.NewInt(0),
		LastPriceTimestamp: now,
	}
}

// Clone deep-copies the state so a failed call can discard its working copy.
func (s *State) Clone() *State {
	cp := &State{
		Balances:           [2]*big.Int{new(big.Int).Set(s.Balances[0]), new(big.Int).Set(s.Balances[1])},
		TotalShares:        new(big.Int).Set(s.TotalShares),
		PriceScale:         new(big.Int).Set(s.PriceScale),
		LastPrice:          new(big.Int).Set(s.LastPrice),
		PriceOracle:        new(big.Int).Set(s.PriceOracle),
		XcpProfit:          new(big.Int).Set(s.XcpProfit),
		XcpProfitReal:      new(big.Int).Set(s.XcpProfitReal),
		D:                  new(big.Int).Set(s.D),
		LastPriceTimestamp: s.LastPriceTimestamp,
	}
	cp.Observations = make([]Observation, len(s.Observations))
	for i, o := range s.Observations {
		cp.Observations[i] = Observation{Timestamp: o.Timestamp, PriceCumulative: new(big.Int).Set(o.PriceCumulative)}
	}
	return cp
}

// scaledBalances returns the reserves in invariant space: precision-adjusted
// and with asset 1 rescaled by the price scale.
func (s *State) scaledBalances(cfg *Config) ([curve.NCoins]*big.Int, error) {
	return scaleReserves(cfg, s.Balances, s.PriceScale)
}

func scaleReserves(cfg *Config, balances [2]*big.Int, priceScale *big.Int) ([curve.NCoins]*big.Int, error) {
	var xp [curve.NCoins]*big.Int
	x0, err := fpmath.Mul(balances[0], cfg.PrecisionMul[0])
	if err != nil {
		return xp, err
	}
	x1, err := fpmath.Mul(balances[1], cfg.PrecisionMul[1])
	if err != nil {
		return xp, err
	}
	x1, err = fpmath.MulDiv(x1, priceScale, fpmath.Precision, fpmath.RoundDown)
	if err != nil {
		return xp, err
	}
	xp[0], xp[1] = x0, x1
	return xp, nil
}

// scaleAmount converts a native input amount of asset i into invariant
// space, rounding down so the pool never credits more than it received.
func scaleAmount(cfg *Config, i int, amount, priceScale *big.Int) (*big.Int, error) {
	scaled, err := fpmath.Mul(amount, cfg.PrecisionMul[i])
	if err != nil {
		return nil, err
	}
	if i == 1 {
		return fpmath.MulDiv(scaled, priceScale, fpmath.Precision, fpmath.RoundDown)
	}
	return scaled, nil
}

// descaleAmount converts an invariant-space amount of asset i back to
// native units. Outputs owed to the caller round down.
func descaleAmount(cfg *Config, i int, scaled, priceScale *big.Int, rounding fpmath.Rounding) (*big.Int, error) {
	v := new(big.Int).Set(scaled)
	var err error
	if i == 1 {
		v, err = fpmath.MulDiv(v, fpmath.Precision, priceScale, rounding)
		if err != nil {
			return nil, err
		}
	}
	return fpmath.Div(v, cfg.PrecisionMul[i], rounding)
}

// SwapQuote is the ephemeral result of pricing one swap. Amounts are native
// units of the respective asset; prices are 1e18 asset-0-per-asset-1.
type SwapQuote struct {
	OfferAsset string
	AskAsset   string

	AmountIn           *big.Int
	AmountOutBeforeFee *big.Int
	AmountOut          *big.Int
	FeeAmount          *big.Int

	// SpotPrice is the pool's last trade price before this swap,
	// ExecutionPrice the price this swap achieves, Spread the relative
	// distance between the two (1e18 fraction).
	SpotPrice      *big.Int
	ExecutionPrice *big.Int
	Spread         *big.Int
}

// EffectivePrice renders the execution price as a decimal for display.
func (q *SwapQuote) EffectivePrice() decimal.Decimal {
	return decimal.NewFromBigInt(q.ExecutionPrice, -18)
}

// LiquidityDelta is the ephemeral result of a provide or withdraw
// computation.
type LiquidityDelta struct {
	Amounts [2]*big.Int
	Shares  *big.Int
	Bound   *big.Int
}
