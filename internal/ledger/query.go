package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// GetFactIDs returns every fact_id in the store, the full set a peer
// advertises during a fact sync round.
func (s *Store) GetFactIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fact_id FROM facts`)
	if err != nil {
		return nil, fmt.Errorf("ledger: get fact ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ledger: scan fact id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetFactsByID returns the full records for the requested ids,
// decompressing content. Unknown ids are omitted silently, matching
// the HTTP surface's documented behavior.
func (s *Store) GetFactsByID(ctx context.Context, ids []string) ([]Fact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT fact_id, content, adl_summary, source_url, ingest_timestamp_utc,
			status, trust_score, fragment_state, fragment_score, fragment_reason
		FROM facts WHERE fact_id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: get facts by id: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var blob []byte
		var ingestRaw string
		var reason sql.NullString
		if err := rows.Scan(&f.FactID, &blob, &f.AdlSummary, &f.SourceURL, &ingestRaw,
			&f.Status, &f.TrustScore, &f.FragmentState, &f.FragmentScore, &reason); err != nil {
			return nil, fmt.Errorf("ledger: scan fact: %w", err)
		}
		if reason.Valid {
			f.FragmentReason = reason.String
		}
		if ts, err := time.Parse(time.RFC3339Nano, ingestRaw); err == nil {
			f.IngestTimestampUTC = ts
		}
		if plaintext, ok := decompressContent(blob); ok {
			f.Content = plaintext
		} else {
			f.Content = string(blob) // legacy plaintext row not yet migrated
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// UpdateFragment mutates only state, score, and reason on an existing
// fact; all other fields are untouched.
func (s *Store) UpdateFragment(ctx context.Context, factID string, state FragmentState, score float64, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE facts SET fragment_state = ?, fragment_score = ?, fragment_reason = ?
		WHERE fact_id = ?
	`, state, score, nullableReason(reason), factID)
	if err != nil {
		return fmt.Errorf("ledger: update fragment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: update fragment: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("ledger: update fragment: fact %s: not found", factID)
	}
	return nil
}
