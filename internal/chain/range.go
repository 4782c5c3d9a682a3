package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GetBlocksAfter returns every block with height > n, ascending by
// height. A height at or beyond the current head returns an empty
// slice, not an error.
func (s *Store) GetBlocksAfter(ctx context.Context, n int64) ([]Block, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT block_id, previous_block_id, height, created_at_utc, fact_ids
		FROM blocks WHERE height > ? ORDER BY height ASC
	`, n)
	if err != nil {
		return nil, fmt.Errorf("chain: get blocks after: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var blocks []Block
	for rows.Next() {
		var b Block
		var createdRaw, factIDsRaw string
		if err := rows.Scan(&b.BlockID, &b.PreviousBlockID, &b.Height, &createdRaw, &factIDsRaw); err != nil {
			return nil, fmt.Errorf("chain: get blocks after: scan: %w", err)
		}
		if createdRaw != "" {
			if t, perr := time.Parse(time.RFC3339Nano, createdRaw); perr == nil {
				b.CreatedAtUTC = t
			}
		}
		var ids []string
		if err := json.Unmarshal([]byte(factIDsRaw), &ids); err != nil {
			return nil, fmt.Errorf("chain: get blocks after: decode fact ids: %w", err)
		}
		b.FactIDs = ids
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
