package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/axiom-network/axiomd/internal/dbutil"
)

// Corroborate records newSourceURL against fact_id if it is not
// already one of its recorded sources, incrementing trust_score. At
// trust_score >= 2 the status is upgraded from uncorroborated to
// trusted; a disputed fact is never un-disputed by corroboration.
func (s *Store) Corroborate(ctx context.Context, factID, newSourceURL string) error {
	return dbutil.WithImmediateTx(ctx, s.db, func(conn *sql.Conn) error {
		var status Status
		var trustScore int
		err := conn.QueryRowContext(ctx, `SELECT status, trust_score FROM facts WHERE fact_id = ?`, factID).
			Scan(&status, &trustScore)
		if err != nil {
			return dbutil.WrapDBError("ledger: corroborate: lookup fact", err)
		}

		var alreadySeen int
		err = conn.QueryRowContext(ctx, `SELECT 1 FROM fact_sources WHERE fact_id = ? AND source_url = ?`,
			factID, newSourceURL).Scan(&alreadySeen)
		if err == nil {
			return nil // source already recorded, no-op
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("ledger: corroborate: check source: %w", err)
		}

		trustScore++
		newStatus := status
		if status == StatusUncorroborated && trustScore >= 2 {
			newStatus = StatusTrusted
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE facts SET trust_score = ?, status = ? WHERE fact_id = ?
		`, trustScore, newStatus, factID); err != nil {
			return fmt.Errorf("ledger: corroborate: update fact: %w", err)
		}

		if newSourceURL != "" {
			if _, err := conn.ExecContext(ctx, `
				INSERT INTO fact_sources (fact_id, source_url) VALUES (?, ?)
				ON CONFLICT (fact_id, source_url) DO NOTHING
			`, factID, newSourceURL); err != nil {
				return fmt.Errorf("ledger: corroborate: record source: %w", err)
			}
		}
		return nil
	})
}

// MarkDisputed sets both facts to status=disputed and records the pair
// in fact_relationships as kind=contradicts.
func (s *Store) MarkDisputed(ctx context.Context, factA, factB string) error {
	return dbutil.WithImmediateTx(ctx, s.db, func(conn *sql.Conn) error {
		for _, id := range []string{factA, factB} {
			res, err := conn.ExecContext(ctx, `UPDATE facts SET status = ? WHERE fact_id = ?`, StatusDisputed, id)
			if err != nil {
				return fmt.Errorf("ledger: mark disputed: update %s: %w", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("ledger: mark disputed: rows affected: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("ledger: mark disputed: fact %s: %w", id, dbutil.ErrNotFound)
			}
		}

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO fact_relationships (fact_a, fact_b, kind) VALUES (?, ?, ?)
			ON CONFLICT (fact_a, fact_b, kind) DO NOTHING
		`, factA, factB, RelationshipContradicts); err != nil {
			return fmt.Errorf("ledger: mark disputed: record relationship: %w", err)
		}
		return nil
	})
}
