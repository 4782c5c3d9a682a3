package chain

import (
	"context"
	"errors"
	"fmt"
)

// InitializeChain inserts the fixed genesis block if the blocks table
// is empty. Idempotent: calling it again once genesis exists is a
// no-op.
func (s *Store) InitializeChain(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&count); err != nil {
		return fmt.Errorf("chain: initialize: count blocks: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocks (block_id, previous_block_id, height, created_at_utc, fact_ids)
		VALUES (?, '', 0, '', '[]')
		ON CONFLICT (block_id) DO NOTHING
	`, GenesisBlockID)
	if err != nil {
		return fmt.Errorf("chain: initialize: insert genesis: %w", err)
	}
	return nil
}

// errEmptyChain is returned internally when a head lookup finds no
// rows; this should never surface once InitializeChain has run, since
// genesis guarantees a non-empty table.
var errEmptyChain = errors.New("chain: no blocks present, chain not initialized")
