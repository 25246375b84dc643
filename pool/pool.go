package pool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/apollo-sturdy/pcl-go/curve"
	"github.com/apollo-sturdy/pcl-go/oraclefeed"
	"github.com/apollo-sturdy/pcl-go/transfer"
)

// Store is the persistent key-value home of pool state. Implementations
// must return ErrNotFound for unknown pool ids. Serializability across
// concurrent calls on the same pool is the hosting environment's concern;
// the engine's own guarantee is that it never saves a partially updated
// state.
type Store interface {
	Load(ctx context.Context, poolID string) (*State, error)
	Save(ctx context.Context, poolID string, st *State) error
}

// Pool sequences all external operations against one pool's state. Every
// entry point loads state, computes on a private copy, and commits the copy
// only after every fallible step, including transfer confirmation, has
// succeeded.
type Pool struct {
	id        string
	cfg       Config
	store     Store
	feed      oraclefeed.Feed
	transfers transfer.Service
	log       *zap.Logger
	now       func() time.Time
}

// Option configures optional collaborators on a Pool.
type Option func(*Pool)

// WithFeed attaches the external price feed consumed by the repeg
// controller. Without a feed (or while the feed is unavailable) the engine
// skips repegging but otherwise operates normally.
func WithFeed(f oraclefeed.Feed) Option {
	return func(p *Pool) { p.feed = f }
}

// WithTransferService attaches the token-transfer service whose
// confirmations gate state commits.
func WithTransferService(s transfer.Service) Option {
	return func(p *Pool) { p.transfers = s }
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Pool) { p.log = log }
}

// WithClock overrides the time source; tests drive oracle timestamps
// through this.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// New validates the configuration and builds an engine around the store.
func New(id string, cfg Config, st Store, opts ...Option) (*Pool, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty pool id", ErrInvalidInput)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		id:    id,
		cfg:   cfg,
		store: st,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ID returns the pool's store key.
func (p *Pool) ID() string { return p.id }

// Account is the transfer-service account holding the pool's reserves.
func (p *Pool) Account() string { return "pool/" + p.id }

// Create persists the initial empty state at the given starting price
// scale. It fails if the pool already exists.
func (p *Pool) Create(ctx context.Context, initialPrice *big.Int) error {
	if initialPrice == nil || initialPrice.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive initial price", ErrInvalidInput)
	}
	if _, err := p.store.Load(ctx, p.id); err == nil {
		return fmt.Errorf("%w: pool %q already exists", ErrInvalidInput, p.id)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	st := NewState(initialPrice, p.timestamp())
	if err := p.store.Save(ctx, p.id, st); err != nil {
		return err
	}
	p.log.Info("pool created",
		zap.String("pool", p.id),
		zap.String("initial_price", initialPrice.String()),
	)
	return nil
}

func (p *Pool) timestamp() uint64 {
	return uint64(p.now().Unix())
}

// oracleSample fetches the external reference price. The second return
// reports whether repegging is permitted this call: an unavailable feed
// disables it without failing the operation.
func (p *Pool) oracleSample(ctx context.Context) (*big.Int, bool) {
	if p.feed == nil {
		return nil, false
	}
	price, err := p.feed.CurrentPrice(ctx, p.cfg.Assets[1], p.cfg.Assets[0])
	if err != nil {
		p.log.Warn("price feed unavailable, skipping repeg", zap.String("pool", p.id), zap.Error(err))
		return nil, false
	}
	return price, true
}

// QuoteSwap simulates swapping amountIn of offerAsset and returns the
// resulting quote. No state is committed.
func (p *Pool) QuoteSwap(ctx context.Context, offerAsset string, amountIn *big.Int) (*SwapQuote, error) {
	i, err := p.cfg.assetIndex(offerAsset)
	if err != nil {
		return nil, err
	}
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	return computeSwap(&p.cfg, st.Clone(), i, amountIn)
}

// QuoteSwapExactOut simulates the swap needed to receive exactly amountOut
// of askAsset. No state is committed.
func (p *Pool) QuoteSwapExactOut(ctx context.Context, askAsset string, amountOut *big.Int) (*SwapQuote, error) {
	j, err := p.cfg.assetIndex(askAsset)
	if err != nil {
		return nil, err
	}
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	return computeSwapExactOut(&p.cfg, st.Clone(), j, amountOut)
}

// ExecuteSwap swaps amountIn of offerAsset for the other asset, enforcing
// the caller's minimum output. On success the committed state reflects the
// trade, the fee credit, the oracle sample, and any accepted repeg; on any
// error the stored state is untouched.
func (p *Pool) ExecuteSwap(ctx context.Context, trader, offerAsset string, amountIn, minOut *big.Int) (*SwapQuote, error) {
	i, err := p.cfg.assetIndex(offerAsset)
	if err != nil {
		return nil, err
	}
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	work := st.Clone()
	dBefore := new(big.Int).Set(work.D)

	quote, err := computeSwap(&p.cfg, work, i, amountIn)
	if err != nil {
		return nil, err
	}
	if minOut != nil && quote.AmountOut.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("%w: computed %v, minimum %v", ErrInsufficientOutput, quote.AmountOut, minOut)
	}

	// the retained fee must not shrink the invariant
	xp, err := work.scaledBalances(&p.cfg)
	if err != nil {
		return nil, err
	}
	dAfter, err := curve.NewtonD(p.cfg.Amp, p.cfg.Gamma, xp)
	if err != nil {
		return nil, err
	}
	if dAfter.Cmp(dBefore) < 0 {
		return nil, ErrInvariantLoss
	}

	sample, allowRepeg := p.oracleSample(ctx)
	if sample != nil {
		// fold the external sample into the smoothed oracle before the
		// trade price replaces it
		work.LastPrice = sample
	}
	if err := work.tweakPrice(&p.cfg, quote.ExecutionPrice, dAfter, p.timestamp(), allowRepeg); err != nil {
		return nil, err
	}

	if p.transfers != nil {
		if err := p.transfers.Transfer(ctx, quote.OfferAsset, trader, p.Account(), quote.AmountIn); err != nil {
			return nil, fmt.Errorf("%w: receive %s: %v", ErrTransferFailed, quote.OfferAsset, err)
		}
		if err := p.transfers.Transfer(ctx, quote.AskAsset, p.Account(), trader, quote.AmountOut); err != nil {
			// the hosting transaction unwinds the first leg; nothing was
			// committed here
			return nil, fmt.Errorf("%w: pay out %s: %v", ErrTransferFailed, quote.AskAsset, err)
		}
	}

	if err := p.store.Save(ctx, p.id, work); err != nil {
		return nil, err
	}
	p.log.Debug("swap executed",
		zap.String("pool", p.id),
		zap.String("offer", quote.OfferAsset),
		zap.String("amount_in", quote.AmountIn.String()),
		zap.String("amount_out", quote.AmountOut.String()),
		zap.String("fee", quote.FeeAmount.String()),
		zap.String("price_scale", work.PriceScale.String()),
	)
	return quote, nil
}

// ProvideLiquidity deposits both assets and mints LP shares, enforcing the
// caller's minimum share count.
func (p *Pool) ProvideLiquidity(ctx context.Context, provider string, amounts [2]*big.Int, minShares *big.Int) (*big.Int, error) {
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	work := st.Clone()

	shares, dAfter, err := computeProvide(&p.cfg, work, amounts)
	if err != nil {
		return nil, err
	}
	if minShares != nil && shares.Cmp(minShares) < 0 {
		return nil, fmt.Errorf("%w: minted %v, minimum %v", ErrSlippageExceeded, shares, minShares)
	}

	sample, allowRepeg := p.oracleSample(ctx)
	if sample != nil {
		work.LastPrice = sample
	}
	if err := work.tweakPrice(&p.cfg, nil, dAfter, p.timestamp(), allowRepeg); err != nil {
		return nil, err
	}

	if p.transfers != nil {
		for k := 0; k < 2; k++ {
			if amounts[k].Sign() == 0 {
				continue
			}
			if err := p.transfers.Transfer(ctx, p.cfg.Assets[k], provider, p.Account(), amounts[k]); err != nil {
				return nil, fmt.Errorf("%w: receive %s: %v", ErrTransferFailed, p.cfg.Assets[k], err)
			}
		}
	}

	if err := p.store.Save(ctx, p.id, work); err != nil {
		return nil, err
	}
	p.log.Debug("liquidity provided",
		zap.String("pool", p.id),
		zap.String("amount0", amounts[0].String()),
		zap.String("amount1", amounts[1].String()),
		zap.String("shares", shares.String()),
	)
	return shares, nil
}

// WithdrawLiquidity burns shares for a proportional slice of both
// reserves, enforcing the caller's per-asset minimums.
func (p *Pool) WithdrawLiquidity(ctx context.Context, provider string, shares *big.Int, minOut [2]*big.Int) ([2]*big.Int, error) {
	var out [2]*big.Int
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return out, err
	}
	work := st.Clone()

	out, err = computeWithdraw(&p.cfg, work, shares)
	if err != nil {
		return out, err
	}
	for k := 0; k < 2; k++ {
		if minOut[k] != nil && out[k].Cmp(minOut[k]) < 0 {
			return out, fmt.Errorf("%w: asset %s pays %v, minimum %v", ErrSlippageExceeded, p.cfg.Assets[k], out[k], minOut[k])
		}
	}

	if p.transfers != nil {
		for k := 0; k < 2; k++ {
			if out[k].Sign() == 0 {
				continue
			}
			if err := p.transfers.Transfer(ctx, p.cfg.Assets[k], p.Account(), provider, out[k]); err != nil {
				return out, fmt.Errorf("%w: pay out %s: %v", ErrTransferFailed, p.cfg.Assets[k], err)
			}
		}
	}

	if err := p.store.Save(ctx, p.id, work); err != nil {
		return out, err
	}
	p.log.Debug("liquidity withdrawn",
		zap.String("pool", p.id),
		zap.String("shares", shares.String()),
		zap.String("amount0", out[0].String()),
		zap.String("amount1", out[1].String()),
	)
	return out, nil
}

// WithdrawOneSide burns shares and pays the proceeds out entirely in
// askAsset, pricing the imbalance through the invariant solver and fee
// curve.
func (p *Pool) WithdrawOneSide(ctx context.Context, provider string, shares *big.Int, askAsset string, minOut *big.Int) (*big.Int, error) {
	j, err := p.cfg.assetIndex(askAsset)
	if err != nil {
		return nil, err
	}
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	work := st.Clone()

	amount, fee, err := computeWithdrawOneSide(&p.cfg, work, shares, j)
	if err != nil {
		return nil, err
	}
	if minOut != nil && amount.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("%w: pays %v, minimum %v", ErrSlippageExceeded, amount, minOut)
	}

	xp, err := work.scaledBalances(&p.cfg)
	if err != nil {
		return nil, err
	}
	dAfter, err := curve.NewtonD(p.cfg.Amp, p.cfg.Gamma, xp)
	if err != nil {
		return nil, err
	}

	sample, allowRepeg := p.oracleSample(ctx)
	if sample != nil {
		work.LastPrice = sample
	}
	if err := work.tweakPrice(&p.cfg, nil, dAfter, p.timestamp(), allowRepeg); err != nil {
		return nil, err
	}

	if p.transfers != nil {
		if err := p.transfers.Transfer(ctx, askAsset, p.Account(), provider, amount); err != nil {
			return nil, fmt.Errorf("%w: pay out %s: %v", ErrTransferFailed, askAsset, err)
		}
	}

	if err := p.store.Save(ctx, p.id, work); err != nil {
		return nil, err
	}
	p.log.Debug("one-sided withdrawal",
		zap.String("pool", p.id),
		zap.String("shares", shares.String()),
		zap.String("asset", askAsset),
		zap.String("amount", amount.String()),
		zap.String("fee", fee.String()),
	)
	return amount, nil
}

// SimulateProvide computes the shares a deposit would mint without
// committing anything.
func (p *Pool) SimulateProvide(ctx context.Context, amounts [2]*big.Int) (*LiquidityDelta, error) {
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	work := st.Clone()
	shares, _, err := computeProvide(&p.cfg, work, amounts)
	if err != nil {
		return nil, err
	}
	return &LiquidityDelta{Amounts: amounts, Shares: shares}, nil
}

// SimulateWithdraw computes the amounts a proportional burn would return
// without committing anything.
func (p *Pool) SimulateWithdraw(ctx context.Context, shares *big.Int) (*LiquidityDelta, error) {
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	work := st.Clone()
	out, err := computeWithdraw(&p.cfg, work, shares)
	if err != nil {
		return nil, err
	}
	return &LiquidityDelta{Amounts: out, Shares: shares}, nil
}

// CurrentOraclePrice returns the smoothed internal price oracle.
func (p *Pool) CurrentOraclePrice(ctx context.Context) (*big.Int, error) {
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(st.PriceOracle), nil
}

// TWAPPrice returns the time-weighted average trade price over
// [start, end] from the stored observations.
func (p *Pool) TWAPPrice(ctx context.Context, start, end uint64) (*big.Int, error) {
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	return st.TWAP(start, end)
}

// Snapshot returns a copy of the current persisted state for inspection.
func (p *Pool) Snapshot(ctx context.Context) (*State, error) {
	st, err := p.store.Load(ctx, p.id)
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}
