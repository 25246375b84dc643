// Package oraclefeed supplies external reference price samples to the pool
// engine. A feed being unavailable is an expected condition: the engine
// skips its repeg step for the call instead of failing the operation.
package oraclefeed

import (
	"context"
	"errors"
	"math/big"
	"sync"
)

// ErrUnavailable signals that no fresh price sample could be produced.
var ErrUnavailable = errors.New("oraclefeed: price unavailable")

// Feed produces the current reference price of the base asset quoted in
// the quote asset, scaled by 1e18.
type Feed interface {
	CurrentPrice(ctx context.Context, base, quote string) (*big.Int, error)
}

// Static is a fixed-price feed, settable at runtime. Used in tests and by
// the simulator's synthetic price walk.
type Static struct {
	mu    sync.RWMutex
	price *big.Int
}

func NewStatic(price *big.Int) *Static {
	s := &Static{}
	if price != nil {
		s.price = new(big.Int).Set(price)
	}
	return s
}

// SetPrice replaces the published price; nil makes the feed unavailable.
func (s *Static) SetPrice(price *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if price == nil {
		s.price = nil
		return
	}
	s.price = new(big.Int).Set(price)
}

func (s *Static) CurrentPrice(context.Context, string, string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.price == nil {
		return nil, ErrUnavailable
	}
	return new(big.Int).Set(s.price), nil
}
