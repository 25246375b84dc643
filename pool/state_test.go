package pool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apollo-sturdy/pcl-go/curve"
	"github.com/apollo-sturdy/pcl-go/fpmath"
)

func testConfig() Config {
	return Config{
		Assets:             [2]string{"usd", "atom"},
		PrecisionMul:       [2]*big.Int{big.NewInt(1), big.NewInt(1)},
		Amp:                big.NewInt(400_000),
		Gamma:              big.NewInt(145_000_000_000_000),
		MidFee:             big.NewInt(300_000_000_000_000),
		OutFee:             big.NewInt(4_500_000_000_000_000),
		FeeGamma:           big.NewInt(230_000_000_000_000),
		AllowedExtraProfit: big.NewInt(100_000_000_000_000),
		AdjustmentStep:     big.NewInt(1_000_000_000_000),
		MAHalfTime:         600,
	}
}

func e18(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), fpmath.Precision)
}

func relDiff(a, b *big.Int) *big.Int {
	diff := fpmath.AbsDiff(a, b)
	out, err := fpmath.MulDiv(diff, fpmath.Precision, b, fpmath.RoundDown)
	if err != nil {
		panic(err)
	}
	return out
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	bad := testConfig()
	bad.Assets[1] = bad.Assets[0]
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = testConfig()
	bad.MidFee = new(big.Int).Add(bad.OutFee, big.NewInt(1))
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = testConfig()
	bad.FeeGamma = big.NewInt(0)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = testConfig()
	bad.Amp = big.NewInt(1)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = testConfig()
	bad.MAHalfTime = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)
}

// the scenario from the invariant's constant-sum limit: a modest swap on a
// balanced fee-free pool pays out slightly less than it takes in, and the
// post-trade point stays on the same curve
func TestSwapBalancedPoolNoFee(t *testing.T) {
	cfg := testConfig()
	cfg.MidFee = big.NewInt(0)
	cfg.OutFee = big.NewInt(0)
	require.NoError(t, cfg.Validate())

	st := NewState(fpmath.Precision, 0)
	_, _, err := computeProvide(&cfg, st, [2]*big.Int{e18(1_000_000), e18(1_000_000)})
	require.NoError(t, err)
	d0 := new(big.Int).Set(st.D)

	in := e18(1000)
	quote, err := computeSwap(&cfg, st, 0, in)
	require.NoError(t, err)

	assert.True(t, quote.AmountOut.Sign() > 0, "no output")
	assert.True(t, quote.AmountOut.Cmp(in) < 0, "out %s not below in %s", quote.AmountOut, in)
	assert.Zero(t, quote.FeeAmount.Sign())

	// reserves moved by exactly the quoted amounts
	assert.Zero(t, st.Balances[0].Cmp(new(big.Int).Add(e18(1_000_000), in)))
	assert.Zero(t, st.Balances[1].Cmp(new(big.Int).Sub(e18(1_000_000), quote.AmountOut)))

	// the post-trade reserves still satisfy the invariant
	xp, err := st.scaledBalances(&cfg)
	require.NoError(t, err)
	d1, err := curve.NewtonD(cfg.Amp, cfg.Gamma, xp)
	require.NoError(t, err)
	assert.True(t, relDiff(d1, d0).Cmp(big.NewInt(10_000_000)) < 0, "d0=%s d1=%s", d0, d1)
}

func TestSwapChargesFeeCurve(t *testing.T) {
	cfg := testConfig()
	st := NewState(fpmath.Precision, 0)
	_, _, err := computeProvide(&cfg, st, [2]*big.Int{e18(1_000_000), e18(1_000_000)})
	require.NoError(t, err)

	quote, err := computeSwap(&cfg, st, 0, e18(10_000))
	require.NoError(t, err)

	assert.True(t, quote.FeeAmount.Sign() > 0)
	assert.Zero(t, quote.AmountOut.Cmp(new(big.Int).Sub(quote.AmountOutBeforeFee, quote.FeeAmount)))

	// the rate charged stays inside the configured fee window
	rate, err := fpmath.MulDiv(quote.FeeAmount, fpmath.Precision, quote.AmountOutBeforeFee, fpmath.RoundDown)
	require.NoError(t, err)
	assert.True(t, rate.Cmp(cfg.MidFee) >= 0, "rate %s below mid fee", rate)
	assert.True(t, rate.Cmp(cfg.OutFee) <= 0, "rate %s above out fee", rate)
}

func TestSwapOnEmptyPool(t *testing.T) {
	cfg := testConfig()
	st := NewState(fpmath.Precision, 0)
	_, err := computeSwap(&cfg, st, 0, e18(1))
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = computeSwap(&cfg, st, 0, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInitialProvideFloor(t *testing.T) {
	cfg := testConfig()

	st := NewState(fpmath.Precision, 0)
	_, _, err := computeProvide(&cfg, st, [2]*big.Int{big.NewInt(0), big.NewInt(0)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	st = NewState(fpmath.Precision, 0)
	_, _, err = computeProvide(&cfg, st, [2]*big.Int{e18(10), big.NewInt(0)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// a dust deposit cannot establish the share baseline
	st = NewState(fpmath.Precision, 0)
	_, _, err = computeProvide(&cfg, st, [2]*big.Int{big.NewInt(500), big.NewInt(500)})
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	// a balanced deposit at price scale 1 mints roughly its asset-0 value
	st = NewState(fpmath.Precision, 0)
	shares, _, err := computeProvide(&cfg, st, [2]*big.Int{e18(1_000_000), e18(1_000_000)})
	require.NoError(t, err)
	assert.True(t, relDiff(shares, e18(1_000_000)).Cmp(big.NewInt(1_000_000)) < 0,
		"shares=%s", shares)
	assert.Zero(t, st.TotalShares.Cmp(shares))
}

func TestProvideThenWithdrawReturnsNoMore(t *testing.T) {
	cfg := testConfig()
	st := NewState(fpmath.Precision, 0)
	_, _, err := computeProvide(&cfg, st, [2]*big.Int{e18(1_000_000), e18(1_000_000)})
	require.NoError(t, err)

	deposit := [2]*big.Int{e18(50_000), e18(50_000)}
	shares, _, err := computeProvide(&cfg, st, deposit)
	require.NoError(t, err)
	require.True(t, shares.Sign() > 0)

	out, err := computeWithdraw(&cfg, st, shares)
	require.NoError(t, err)
	for k := 0; k < 2; k++ {
		assert.True(t, out[k].Cmp(deposit[k]) <= 0,
			"asset %d withdrew %s for deposit %s", k, out[k], deposit[k])
	}
}

func TestWithdrawEdges(t *testing.T) {
	cfg := testConfig()
	st := NewState(fpmath.Precision, 0)

	_, err := computeWithdraw(&cfg, st, e18(1))
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	shares, _, err := computeProvide(&cfg, st, [2]*big.Int{e18(1000), e18(1000)})
	require.NoError(t, err)

	_, err = computeWithdraw(&cfg, st, new(big.Int).Add(shares, big.NewInt(1)))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = computeWithdraw(&cfg, st, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidInput)

	// burning the whole supply drains the pool and resets the invariant
	out, err := computeWithdraw(&cfg, st, shares)
	require.NoError(t, err)
	assert.Zero(t, st.TotalShares.Sign())
	assert.Zero(t, st.D.Sign())
	assert.True(t, out[0].Sign() > 0)
	assert.True(t, out[1].Sign() > 0)
}

func TestWithdrawOneSideKeepsValue(t *testing.T) {
	cfg := testConfig()
	st := NewState(fpmath.Precision, 0)
	_, _, err := computeProvide(&cfg, st, [2]*big.Int{e18(1_000_000), e18(1_000_000)})
	require.NoError(t, err)
	supply := new(big.Int).Set(st.TotalShares)

	// burn a tenth of the pool for asset 0 only; the payout is near the
	// proportional value of both legs but strictly below it
	burn := new(big.Int).Div(supply, big.NewInt(10))
	amount, fee, err := computeWithdrawOneSide(&cfg, st, burn, 0)
	require.NoError(t, err)

	assert.True(t, amount.Cmp(e18(200_000)) < 0, "amount=%s", amount)
	assert.True(t, amount.Cmp(e18(150_000)) > 0, "amount=%s", amount)
	assert.True(t, fee.Sign() > 0)
	assert.Zero(t, st.TotalShares.Cmp(new(big.Int).Sub(supply, burn)))

	// the whole supply cannot leave through one side
	_, _, err = computeWithdrawOneSide(&cfg, st, st.TotalShares, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestExactOutMatchesForwardSwap(t *testing.T) {
	cfg := testConfig()
	st := NewState(fpmath.Precision, 0)
	_, _, err := computeProvide(&cfg, st, [2]*big.Int{e18(1_000_000), e18(1_000_000)})
	require.NoError(t, err)

	want := e18(5000)
	back, err := computeSwapExactOut(&cfg, st.Clone(), 1, want)
	require.NoError(t, err)
	assert.Equal(t, cfg.Assets[0], back.OfferAsset)
	assert.True(t, back.AmountIn.Cmp(want) > 0, "input %s not above output %s", back.AmountIn, want)

	// paying the quoted input forward recovers the requested output
	fwd, err := computeSwap(&cfg, st.Clone(), 0, back.AmountIn)
	require.NoError(t, err)
	assert.True(t, relDiff(fwd.AmountOut, want).Cmp(big.NewInt(100_000_000)) < 0,
		"forward out %s for requested %s", fwd.AmountOut, want)

	_, err = computeSwapExactOut(&cfg, st.Clone(), 1, e18(2_000_000))
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestOracleUpdateOncePerTimestamp(t *testing.T) {
	cfg := testConfig()
	st := NewState(e18(2), 1000)
	st.LastPrice = e18(3)

	// one half-life moves the oracle halfway to the last price
	require.NoError(t, st.updateOracle(&cfg, 1600))
	assert.Zero(t, st.PriceOracle.Cmp(big.NewInt(2_500_000_000_000_000_000)))
	require.Len(t, st.Observations, 1)
	assert.Equal(t, uint64(1600), st.Observations[0].Timestamp)

	// a second call within the same second changes nothing
	before := new(big.Int).Set(st.PriceOracle)
	require.NoError(t, st.updateOracle(&cfg, 1600))
	assert.Zero(t, st.PriceOracle.Cmp(before))
	assert.Len(t, st.Observations, 1)
}

func TestTWAPFromObservations(t *testing.T) {
	cfg := testConfig()
	st := NewState(e18(2), 1000)

	st.LastPrice = e18(3)
	require.NoError(t, st.updateOracle(&cfg, 1600))
	st.LastPrice = e18(1)
	require.NoError(t, st.updateOracle(&cfg, 2200))

	// the window spans only the second segment
	twap, err := st.TWAP(1600, 2200)
	require.NoError(t, err)
	assert.Zero(t, twap.Cmp(e18(1)))

	_, err = st.TWAP(2200, 2200)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = st.TWAP(100, 500)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTweakPriceHoldsScaleWithoutHeadroom(t *testing.T) {
	cfg := testConfig()
	st := NewState(fpmath.Precision, 0)
	_, d, err := computeProvide(&cfg, st, [2]*big.Int{e18(1_000_000), e18(1_000_000)})
	require.NoError(t, err)

	// oracle far from scale but no banked profit: the gate must hold
	st.PriceOracle = e18(2)
	scale := new(big.Int).Set(st.PriceScale)
	require.NoError(t, st.tweakPrice(&cfg, nil, d, 60, true))
	assert.Zero(t, st.PriceScale.Cmp(scale))
	assert.Zero(t, st.XcpProfitReal.Cmp(fpmath.Precision))
}

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := testConfig()
	st := NewState(e18(3), 500)
	_, _, err := computeProvide(&cfg, st, [2]*big.Int{e18(300_000), e18(100_000)})
	require.NoError(t, err)
	st.LastPrice = e18(3)
	require.NoError(t, st.updateOracle(&cfg, 1100))

	blob, err := st.MarshalBinary()
	require.NoError(t, err)

	got := new(State)
	require.NoError(t, got.UnmarshalBinary(blob))
	assert.Zero(t, got.Balances[0].Cmp(st.Balances[0]))
	assert.Zero(t, got.Balances[1].Cmp(st.Balances[1]))
	assert.Zero(t, got.TotalShares.Cmp(st.TotalShares))
	assert.Zero(t, got.PriceScale.Cmp(st.PriceScale))
	assert.Zero(t, got.PriceOracle.Cmp(st.PriceOracle))
	assert.Zero(t, got.D.Cmp(st.D))
	assert.Equal(t, st.LastPriceTimestamp, got.LastPriceTimestamp)
	require.Len(t, got.Observations, len(st.Observations))
	assert.Zero(t, got.Observations[0].PriceCumulative.Cmp(st.Observations[0].PriceCumulative))

	bad := append([]byte{}, blob...)
	bad[0] = 99
	assert.Error(t, new(State).UnmarshalBinary(bad))
}
