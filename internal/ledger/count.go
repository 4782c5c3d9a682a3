package ledger

import (
	"context"
	"fmt"
)

// FactCount returns the total number of facts in the store, used by
// the scheduler's idle-suite health snapshot.
func (s *Store) FactCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger: fact count: %w", err)
	}
	return n, nil
}
