// Package transfer abstracts the token-transfer service the pool engine
// confirms balances against. The engine only commits state after every
// transfer a call depends on has reported success.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	ErrInsufficientFunds = errors.New("transfer: insufficient funds")
	ErrInvalidAmount     = errors.New("transfer: invalid amount")
)

// Service moves amount of asset from one account to another atomically and
// reports success or failure.
type Service interface {
	Transfer(ctx context.Context, asset, from, to string, amount *big.Int) error
}

// Ledger is an in-memory Service used by tests and the simulator.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[string]*big.Int // account -> asset -> amount
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]map[string]*big.Int)}
}

// Mint credits an account out of thin air.
func (l *Ledger) Mint(account, asset string, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, asset, amount)
}

// Balance reports an account's holding of asset.
func (l *Ledger) Balance(account, asset string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[account][asset]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (l *Ledger) Transfer(_ context.Context, asset, from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	have, ok := l.balances[from][asset]
	if !ok || have.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %v %s, needs %v", ErrInsufficientFunds, from, have, asset, amount)
	}
	have.Sub(have, amount)
	l.credit(to, asset, amount)
	return nil
}

func (l *Ledger) credit(account, asset string, amount *big.Int) {
	accts, ok := l.balances[account]
	if !ok {
		accts = make(map[string]*big.Int)
		l.balances[account] = accts
	}
	if b, ok := accts[asset]; ok {
		b.Add(b, amount)
	} else {
		accts[asset] = new(big.Int).Set(amount)
	}
}
