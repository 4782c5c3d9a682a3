package chain

import (
	"context"
	"fmt"
)

// BlockCount returns the total number of blocks (including genesis),
// used by the scheduler's idle-suite health snapshot.
func (s *Store) BlockCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("chain: block count: %w", err)
	}
	return n, nil
}
