// Package store provides pool.Store implementations: an in-memory map for
// tests and embedded use, and a Postgres store under store/postgres.
package store

import (
	"context"
	"sync"

	"github.com/apollo-sturdy/pcl-go/pool"
)

// Memory keeps serialized state snapshots in a map. Snapshots go through
// the same binary codec as the Postgres store so both paths exercise
// identical persistence semantics.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, poolID string) (*pool.State, error) {
	m.mu.RLock()
	blob, ok := m.blobs[poolID]
	m.mu.RUnlock()
	if !ok {
		return nil, pool.ErrNotFound
	}
	st := new(pool.State)
	if err := st.UnmarshalBinary(blob); err != nil {
		return nil, err
	}
	return st, nil
}

func (m *Memory) Save(_ context.Context, poolID string, st *pool.State) error {
	blob, err := st.MarshalBinary()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blobs[poolID] = blob
	m.mu.Unlock()
	return nil
}
