package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/axiom-network/axiomd/internal/dbutil"
)

// DeletePruneCandidates removes every fact meeting all of spec.md
// §4.4's deletion conditions as of now, plus its fact_relationships
// rows. Blocks that committed a deleted fact_id are untouched: chain
// commitments are historical record, not a live reference.
func (s *Store) DeletePruneCandidates(ctx context.Context, now time.Time) ([]string, error) {
	cutoff := now.Add(-90 * 24 * time.Hour).Format(time.RFC3339Nano)

	var ids []string
	err := dbutil.WithImmediateTx(ctx, s.db, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT fact_id FROM facts
			WHERE ingest_timestamp_utc < ?
			  AND trust_score <= 2
			  AND (fragment_state = ? OR length(adl_summary) < 10)
		`, cutoff, FragmentConfirmed)
		if err != nil {
			return fmt.Errorf("ledger: prune: select candidates: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return fmt.Errorf("ledger: prune: scan candidate: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return fmt.Errorf("ledger: prune: iterate candidates: %w", err)
		}
		_ = rows.Close()

		for _, id := range ids {
			if _, err := conn.ExecContext(ctx, `DELETE FROM fact_relationships WHERE fact_a = ? OR fact_b = ?`, id, id); err != nil {
				return fmt.Errorf("ledger: prune: delete relationships for %s: %w", id, err)
			}
			if _, err := conn.ExecContext(ctx, `DELETE FROM fact_sources WHERE fact_id = ?`, id); err != nil {
				return fmt.Errorf("ledger: prune: delete sources for %s: %w", id, err)
			}
			if _, err := conn.ExecContext(ctx, `DELETE FROM facts WHERE fact_id = ?`, id); err != nil {
				return fmt.Errorf("ledger: prune: delete fact %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
