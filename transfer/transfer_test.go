package transfer

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerTransfer(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.Mint("alice", "usd", big.NewInt(100))

	require.NoError(t, l.Transfer(ctx, "usd", "alice", "bob", big.NewInt(40)))
	assert.Equal(t, int64(60), l.Balance("alice", "usd").Int64())
	assert.Equal(t, int64(40), l.Balance("bob", "usd").Int64())

	err := l.Transfer(ctx, "usd", "alice", "bob", big.NewInt(61))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// unknown account has nothing to send
	err = l.Transfer(ctx, "usd", "carol", "bob", big.NewInt(1))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestLedgerAmountChecks(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.Mint("alice", "usd", big.NewInt(10))

	assert.ErrorIs(t, l.Transfer(ctx, "usd", "alice", "bob", nil), ErrInvalidAmount)
	assert.ErrorIs(t, l.Transfer(ctx, "usd", "alice", "bob", big.NewInt(-1)), ErrInvalidAmount)

	// zero moves nothing and is not an error
	require.NoError(t, l.Transfer(ctx, "usd", "alice", "bob", big.NewInt(0)))
	assert.Equal(t, int64(10), l.Balance("alice", "usd").Int64())
	assert.Zero(t, l.Balance("bob", "usd").Int64())
}
