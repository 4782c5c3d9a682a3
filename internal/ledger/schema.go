package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// Store is the C1 fact ledger: a single-file sqlite-backed store of
// content-addressed facts, their recorded sources, and the
// relationships discovered between them.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-opened database handle. Callers share one
// *sql.DB across the ledger and chain stores since both live in the
// same single-file database per spec.md's persisted-state layout.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the facts, fact_sources, and fact_relationships
// tables if they do not already exist. It is safe to call on every
// startup: table and index creation is idempotent. It does not add
// columns: a pre-existing facts table that lacks one of the columns
// below is left as it is.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS facts (
			fact_id              TEXT PRIMARY KEY,
			content              BLOB NOT NULL,
			adl_summary          TEXT NOT NULL DEFAULT '',
			source_url           TEXT NOT NULL DEFAULT '',
			ingest_timestamp_utc TEXT NOT NULL,
			status               TEXT NOT NULL DEFAULT 'uncorroborated',
			trust_score          INTEGER NOT NULL DEFAULT 1,
			fragment_state       TEXT NOT NULL DEFAULT 'unknown',
			fragment_score       REAL NOT NULL DEFAULT 0,
			fragment_reason      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_fragment_state ON facts(fragment_state)`,
		`CREATE TABLE IF NOT EXISTS fact_sources (
			fact_id    TEXT NOT NULL,
			source_url TEXT NOT NULL,
			PRIMARY KEY (fact_id, source_url)
		)`,
		`CREATE TABLE IF NOT EXISTS fact_relationships (
			fact_a TEXT NOT NULL,
			fact_b TEXT NOT NULL,
			kind   TEXT NOT NULL,
			PRIMARY KEY (fact_a, fact_b, kind)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ledger: ensure schema: %w", err)
		}
	}
	return nil
}
