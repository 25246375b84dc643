package main

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/apollo-sturdy/pcl-go/oraclefeed"
	"github.com/apollo-sturdy/pcl-go/pool"
	"github.com/apollo-sturdy/pcl-go/store"
	"github.com/apollo-sturdy/pcl-go/store/postgres"
	"github.com/apollo-sturdy/pcl-go/transfer"
)

func main() {
	root := &cobra.Command{
		Use:          "poolsim",
		Short:        "Concentrated-liquidity pool simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a random swap scenario against a fresh pool",
		RunE:  runSim,
	}

	runCmd.Flags().String("asset0", "usdc", "quote asset identifier")
	runCmd.Flags().String("asset1", "weth", "base asset identifier")
	runCmd.Flags().Uint64("amp", 400_000, "amplification (A*N^N*10000)")
	runCmd.Flags().String("gamma", "0.000145", "curvature gamma")
	runCmd.Flags().String("mid-fee", "0.0003", "fee at perfect balance")
	runCmd.Flags().String("out-fee", "0.0045", "fee far from balance")
	runCmd.Flags().String("fee-gamma", "0.00023", "fee interpolation gamma")
	runCmd.Flags().String("allowed-extra-profit", "0.000002", "repeg profit margin")
	runCmd.Flags().String("adjustment-step", "0.000146", "repeg step bound")
	runCmd.Flags().Uint64("ma-half-time", 600, "oracle EMA half life (seconds)")
	runCmd.Flags().String("initial-price", "3000", "initial price scale (asset0 per asset1)")
	runCmd.Flags().String("deposit0", "3000000000000000000000000", "initial deposit of asset 0 (native units)")
	runCmd.Flags().String("deposit1", "1000000000000000000000", "initial deposit of asset 1 (native units)")
	runCmd.Flags().Int("swaps", 200, "number of random swaps")
	runCmd.Flags().String("max-swap-frac", "0.01", "max swap size as fraction of reserve")
	runCmd.Flags().String("volatility", "0.002", "per-step oracle price volatility")
	runCmd.Flags().Int64("seed", 1, "random seed")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN (empty uses in-memory store)")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func parseScaled(name, s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return d.Shift(18).BigInt(), nil
}

func parseAmount(name, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("parse %s: %q is not a valid amount", name, s)
	}
	return v, nil
}

func runSim(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	gamma, err := parseScaled("gamma", cfg.Gamma)
	if err != nil {
		return err
	}
	midFee, err := parseScaled("mid-fee", cfg.MidFee)
	if err != nil {
		return err
	}
	outFee, err := parseScaled("out-fee", cfg.OutFee)
	if err != nil {
		return err
	}
	feeGamma, err := parseScaled("fee-gamma", cfg.FeeGamma)
	if err != nil {
		return err
	}
	extraProfit, err := parseScaled("allowed-extra-profit", cfg.AllowedExtraProfit)
	if err != nil {
		return err
	}
	adjStep, err := parseScaled("adjustment-step", cfg.AdjustmentStep)
	if err != nil {
		return err
	}
	initialPrice, err := parseScaled("initial-price", cfg.InitialPrice)
	if err != nil {
		return err
	}
	deposit0, err := parseAmount("deposit0", cfg.Deposit0)
	if err != nil {
		return err
	}
	deposit1, err := parseAmount("deposit1", cfg.Deposit1)
	if err != nil {
		return err
	}
	maxSwapFrac, err := decimal.NewFromString(cfg.MaxSwapFrac)
	if err != nil {
		return fmt.Errorf("parse max-swap-frac: %w", err)
	}
	volatility, err := decimal.NewFromString(cfg.Volatility)
	if err != nil {
		return fmt.Errorf("parse volatility: %w", err)
	}

	poolCfg := pool.Config{
		Assets:             [2]string{cfg.Asset0, cfg.Asset1},
		PrecisionMul:       [2]*big.Int{big.NewInt(1), big.NewInt(1)},
		Amp:                new(big.Int).SetUint64(cfg.Amp),
		Gamma:              gamma,
		MidFee:             midFee,
		OutFee:             outFee,
		FeeGamma:           feeGamma,
		AllowedExtraProfit: extraProfit,
		AdjustmentStep:     adjStep,
		MAHalfTime:         cfg.MAHalfTime,
	}

	var st pool.Store
	if cfg.PGDSN != "" {
		pgStore, err := postgres.New(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		st = pgStore
	} else {
		st = store.NewMemory()
	}

	feed := oraclefeed.NewStatic(initialPrice)
	ledger := transfer.NewLedger()

	simTime := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return simTime }

	p, err := pool.New("poolsim", poolCfg, st,
		pool.WithFeed(feed),
		pool.WithTransferService(ledger),
		pool.WithLogger(log),
		pool.WithClock(clock),
	)
	if err != nil {
		return err
	}

	ledger.Mint("lp", cfg.Asset0, deposit0)
	ledger.Mint("lp", cfg.Asset1, deposit1)

	if err := p.Create(ctx, initialPrice); err != nil {
		return err
	}
	shares, err := p.ProvideLiquidity(ctx, "lp", [2]*big.Int{deposit0, deposit1}, nil)
	if err != nil {
		return fmt.Errorf("seed liquidity: %w", err)
	}
	log.Info("pool seeded", zap.String("shares", shares.String()))

	rng := rand.New(rand.NewSource(cfg.Seed))
	oraclePrice := decimal.NewFromBigInt(initialPrice, -18)
	twapStart := uint64(simTime.Unix())

	for n := 0; n < cfg.Swaps; n++ {
		simTime = simTime.Add(time.Duration(5+rng.Intn(30)) * time.Second)

		// random walk on the external reference price
		shock := volatility.Mul(decimal.NewFromFloat(rng.Float64()*2 - 1))
		oraclePrice = oraclePrice.Mul(decimal.NewFromInt(1).Add(shock))
		feed.SetPrice(oraclePrice.Shift(18).BigInt())

		snap, err := p.Snapshot(ctx)
		if err != nil {
			return err
		}
		dir := rng.Intn(2)
		offer := poolCfg.Assets[dir]
		size := decimal.NewFromBigInt(snap.Balances[dir], 0).
			Mul(maxSwapFrac).
			Mul(decimal.NewFromFloat(rng.Float64())).
			BigInt()
		if size.Sign() == 0 {
			continue
		}
		ledger.Mint("trader", offer, size)

		quote, err := p.ExecuteSwap(ctx, "trader", offer, size, nil)
		if err != nil {
			log.Warn("swap rejected", zap.Int("step", n), zap.Error(err))
			continue
		}
		if n%50 == 0 {
			log.Info("swap",
				zap.Int("step", n),
				zap.String("offer", offer),
				zap.String("in", quote.AmountIn.String()),
				zap.String("out", quote.AmountOut.String()),
				zap.String("price", quote.EffectivePrice().StringFixed(6)),
			)
		}
	}

	final, err := p.Snapshot(ctx)
	if err != nil {
		return err
	}
	oracle, err := p.CurrentOraclePrice(ctx)
	if err != nil {
		return err
	}
	report := []zap.Field{
		zap.String("balance0", final.Balances[0].String()),
		zap.String("balance1", final.Balances[1].String()),
		zap.String("price_scale", decimal.NewFromBigInt(final.PriceScale, -18).StringFixed(6)),
		zap.String("price_oracle", decimal.NewFromBigInt(oracle, -18).StringFixed(6)),
		zap.String("xcp_profit", decimal.NewFromBigInt(final.XcpProfit, -18).StringFixed(12)),
		zap.String("virtual_price", decimal.NewFromBigInt(final.XcpProfitReal, -18).StringFixed(12)),
	}
	if twap, err := p.TWAPPrice(ctx, twapStart, uint64(simTime.Unix())); err == nil {
		report = append(report, zap.String("twap", decimal.NewFromBigInt(twap, -18).StringFixed(6)))
	}
	log.Info("simulation finished", report...)
	return nil
}
