// Package pcl wires together the concentrated-liquidity pool engine: the
// curve solvers, the fee and repeg controllers, and the pluggable store,
// price-feed and transfer collaborators.
//
// Example:
//
//	st := store.NewMemory()
//	p, _ := pcl.NewPool("weth-usdc", cfg, st,
//		pcl.WithFeed(oraclefeed.NewStatic(price)),
//		pcl.WithTransferService(transfer.NewLedger()),
//	)
//	p.Create(ctx, price)
//	p.ProvideLiquidity(ctx, "alice", amounts, nil)
//	p.ExecuteSwap(ctx, "bob", "usdc", amountIn, minOut)
package pcl

import (
	"github.com/apollo-sturdy/pcl-go/pool"
	"github.com/apollo-sturdy/pcl-go/store"
)

// NewPool builds a pool engine around a store; see pool.New.
var NewPool = pool.New

// NewMemoryStore returns the in-memory state store.
var NewMemoryStore = store.NewMemory

// Options re-exported for callers configuring the engine.
var (
	WithFeed            = pool.WithFeed
	WithTransferService = pool.WithTransferService
	WithLogger          = pool.WithLogger
	WithClock           = pool.WithClock
)
