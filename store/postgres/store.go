// Package postgres persists pool state snapshots in a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apollo-sturdy/pcl-go/pool"
)

// Store holds one row per pool: the borsh-encoded state blob plus an
// update timestamp. Writes are upserts, so Save is idempotent.
type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// EnsureSchema creates the backing table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pool_states (
			pool_id    text PRIMARY KEY,
			state      bytea NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (s *Store) Load(ctx context.Context, poolID string) (*pool.State, error) {
	var blob []byte
	err := s.db.QueryRow(ctx, `SELECT state FROM pool_states WHERE pool_id = $1`, poolID).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pool.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	st := new(pool.State)
	if err := st.UnmarshalBinary(blob); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) Save(ctx context.Context, poolID string, st *pool.State) error {
	blob, err := st.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO pool_states (pool_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (pool_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = now()
	`, poolID, blob)
	return err
}
