package chain

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// queryRower is satisfied by both *sql.DB and *sql.Conn, letting head
// lookups run either standalone or inside an already-open transaction
// on a dedicated connection.
type queryRower interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// GetChainHead returns the block with the maximum height. Ties are
// impossible under the append invariants; if one is observed anyway
// (a corruption), the lexicographically smallest block_id at that
// height is treated as head and a warning is logged, per spec.md §4.2.
func (s *Store) GetChainHead(ctx context.Context, log *slog.Logger) (Head, error) {
	candidates, err := headCandidates(ctx, s.db)
	if err != nil {
		return Head{}, err
	}
	if len(candidates) > 1 {
		log.Warn("chain corruption: multiple blocks at max height, using lexicographically smallest block_id",
			"height", candidates[0].Height, "candidate_count", len(candidates))
	}
	return candidates[0], nil
}

func headCandidates(ctx context.Context, q queryRower) ([]Head, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT block_id, height FROM blocks
		WHERE height = (SELECT MAX(height) FROM blocks)
		ORDER BY block_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("chain: get head: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var heads []Head
	for rows.Next() {
		var h Head
		if err := rows.Scan(&h.BlockID, &h.Height); err != nil {
			return nil, fmt.Errorf("chain: get head: scan: %w", err)
		}
		heads = append(heads, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chain: get head: iterate: %w", err)
	}
	if len(heads) == 0 {
		return nil, fmt.Errorf("chain: get head: %w", errEmptyChain)
	}
	return heads, nil
}

func headFromQuerier(ctx context.Context, q queryRower) (Head, error) {
	candidates, err := headCandidates(ctx, q)
	if err != nil {
		return Head{}, err
	}
	return candidates[0], nil
}
