package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ComputeFactID returns the content address of plaintext: the
// lowercase hex SHA-256 digest of its exact UTF-8 bytes.
func ComputeFactID(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// InsertUncorroboratedFact computes the fact_id from content and
// inserts a new uncorroborated fact. Reinsertion of identical content
// is idempotent: the existing fact_id is returned unchanged and no row
// is modified. Compression failure is logged and the insert is
// skipped, never falling back to storing plaintext.
func (s *Store) InsertUncorroboratedFact(ctx context.Context, log *slog.Logger, content, sourceURL, adlSummary string, fragState FragmentState, fragScore float64, fragReason string) (string, error) {
	factID := ComputeFactID(content)

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM facts WHERE fact_id = ?`, factID).Scan(&exists)
	if err == nil {
		return factID, nil // idempotent: row already present
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("ledger: check existing fact: %w", err)
	}

	compressed, cerr := compressContent(content)
	if cerr != nil {
		log.Warn("fact compression failed, skipping insert", "fact_id", factID, "error", cerr)
		return "", fmt.Errorf("ledger: compress fact content: %w", cerr)
	}

	if fragState == "" {
		fragState = FragmentUnknown
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO facts (fact_id, content, adl_summary, source_url, ingest_timestamp_utc,
			status, trust_score, fragment_state, fragment_score, fragment_reason)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (fact_id) DO NOTHING
	`, factID, compressed, adlSummary, sourceURL, time.Now().UTC().Format(time.RFC3339Nano),
		StatusUncorroborated, fragState, fragScore, nullableReason(fragReason))
	if err != nil {
		// A duplicate-key race from a concurrent idempotent insert of the
		// same content is swallowed as success, not surfaced as an error.
		var existsAgain int
		if qerr := s.db.QueryRowContext(ctx, `SELECT 1 FROM facts WHERE fact_id = ?`, factID).Scan(&existsAgain); qerr == nil {
			return factID, nil
		}
		return "", fmt.Errorf("ledger: insert fact: %w", err)
	}

	if sourceURL != "" {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO fact_sources (fact_id, source_url) VALUES (?, ?)
			ON CONFLICT (fact_id, source_url) DO NOTHING
		`, factID, sourceURL); err != nil {
			return "", fmt.Errorf("ledger: record fact source: %w", err)
		}
	}

	return factID, nil
}

func nullableReason(reason string) interface{} {
	if reason == "" {
		return nil
	}
	return reason
}
