package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SampleNonDisputedFacts returns up to limit facts with status !=
// disputed, chosen uniformly at random. The fragment auditor uses this
// to pick its per-run sample without biasing toward any insertion
// order.
func (s *Store) SampleNonDisputedFacts(ctx context.Context, limit int) ([]Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fact_id, content, adl_summary, source_url, ingest_timestamp_utc,
			status, trust_score, fragment_state, fragment_score, fragment_reason
		FROM facts
		WHERE status != ?
		ORDER BY RANDOM()
		LIMIT ?
	`, StatusDisputed, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: sample non-disputed facts: %w", err)
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
			return nil, fmt.Errorf("ledger: sample non-disputed facts: scan: %w", err)
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
			f.Content = string(blob)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
