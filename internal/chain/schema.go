package chain

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Store is the C2 block store. createMu serializes create_block and
// append_block: spec.md requires at most one concurrent invocation of
// either per node, since both read-then-write the current head.
type Store struct {
	db       *sql.DB
	createMu sync.Mutex
}

// NewStore wraps an already-opened database handle shared with the
// ledger store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the blocks table if it does not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS blocks (
			block_id           TEXT PRIMARY KEY,
			previous_block_id  TEXT NOT NULL,
			height             INTEGER NOT NULL,
			created_at_utc     TEXT NOT NULL,
			fact_ids           TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("chain: ensure schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_blocks_height ON blocks(height)`)
	if err != nil {
		return fmt.Errorf("chain: ensure schema: %w", err)
	}
	return nil
}
