package store

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apollo-sturdy/pcl-go/fpmath"
	"github.com/apollo-sturdy/pcl-go/pool"
)

func TestMemoryLoadMissing(t *testing.T) {
	m := NewMemory()
	_, err := m.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, pool.ErrNotFound)
}

func TestMemorySaveLoad(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	st := pool.NewState(new(big.Int).Set(fpmath.Precision), 42)
	st.Balances[0] = big.NewInt(1234)
	st.Balances[1] = big.NewInt(5678)
	st.TotalShares = big.NewInt(999)
	require.NoError(t, m.Save(ctx, "p1", st))

	got, err := m.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, got.Balances[0].Cmp(st.Balances[0]))
	assert.Zero(t, got.Balances[1].Cmp(st.Balances[1]))
	assert.Zero(t, got.TotalShares.Cmp(st.TotalShares))
	assert.Equal(t, uint64(42), got.LastPriceTimestamp)

	// loads hand out independent copies
	got.Balances[0].SetInt64(0)
	again, err := m.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, again.Balances[0].Cmp(big.NewInt(1234)))
}
