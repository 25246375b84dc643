package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds simulator settings loaded from flags, env, or config file.
type Config struct {
	Asset0 string
	Asset1 string

	Amp                uint64
	Gamma              string
	MidFee             string
	OutFee             string
	FeeGamma           string
	AllowedExtraProfit string
	AdjustmentStep     string
	MAHalfTime         uint64

	InitialPrice string
	Deposit0     string
	Deposit1     string

	Swaps       int
	MaxSwapFrac string
	Volatility  string
	Seed        int64

	PGDSN    string
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("asset0", "usdc")
	v.SetDefault("asset1", "weth")
	v.SetDefault("amp", uint64(400_000))
	v.SetDefault("gamma", "0.000145")
	v.SetDefault("mid-fee", "0.0003")
	v.SetDefault("out-fee", "0.0045")
	v.SetDefault("fee-gamma", "0.00023")
	v.SetDefault("allowed-extra-profit", "0.000002")
	v.SetDefault("adjustment-step", "0.000146")
	v.SetDefault("ma-half-time", uint64(600))
	v.SetDefault("initial-price", "3000")
	v.SetDefault("deposit0", "3000000000000000000000000")
	v.SetDefault("deposit1", "1000000000000000000000")
	v.SetDefault("swaps", 200)
	v.SetDefault("max-swap-frac", "0.01")
	v.SetDefault("volatility", "0.002")
	v.SetDefault("seed", int64(1))
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("poolsim")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return Config{
		Asset0:             v.GetString("asset0"),
		Asset1:             v.GetString("asset1"),
		Amp:                v.GetUint64("amp"),
		Gamma:              v.GetString("gamma"),
		MidFee:             v.GetString("mid-fee"),
		OutFee:             v.GetString("out-fee"),
		FeeGamma:           v.GetString("fee-gamma"),
		AllowedExtraProfit: v.GetString("allowed-extra-profit"),
		AdjustmentStep:     v.GetString("adjustment-step"),
		MAHalfTime:         v.GetUint64("ma-half-time"),
		InitialPrice:       v.GetString("initial-price"),
		Deposit0:           v.GetString("deposit0"),
		Deposit1:           v.GetString("deposit1"),
		Swaps:              v.GetInt("swaps"),
		MaxSwapFrac:        v.GetString("max-swap-frac"),
		Volatility:         v.GetString("volatility"),
		Seed:               v.GetInt64("seed"),
		PGDSN:              v.GetString("pg-dsn"),
		LogLevel:           v.GetString("log-level"),
	}, nil
}
