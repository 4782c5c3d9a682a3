package ledger

import (
	"context"
	"fmt"
	"log/slog"
)

// MigrateFactContentToCompressed scans for rows whose content column
// does not decompress as zlib — legacy plaintext rows predating the
// compression invariant — and compresses them in place. It logs the
// number of rows migrated and is safe to run on every startup: a
// fully-migrated store does no work.
func (s *Store) MigrateFactContentToCompressed(ctx context.Context, log *slog.Logger) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fact_id, content FROM facts`)
	if err != nil {
		return 0, fmt.Errorf("ledger: migrate content: scan: %w", err)
	}

	type pending struct {
		factID string
		blob   []byte
	}
	var toMigrate []pending
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("ledger: migrate content: scan row: %w", err)
		}
		if _, ok := decompressContent(blob); !ok {
			toMigrate = append(toMigrate, pending{id, blob})
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("ledger: migrate content: iterate: %w", err)
	}
	_ = rows.Close()

	migrated := 0
	for _, p := range toMigrate {
		compressed, err := compressContent(string(p.blob))
		if err != nil {
			log.Warn("content migration: compression failed, leaving row as-is", "fact_id", p.factID, "error", err)
			continue
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE facts SET content = ? WHERE fact_id = ?`, compressed, p.factID); err != nil {
			return migrated, fmt.Errorf("ledger: migrate content: update %s: %w", p.factID, err)
		}
		migrated++
	}

	if migrated > 0 {
		log.Info("migrated legacy plaintext fact content to compressed blobs", "count", migrated)
	}
	return migrated, nil
}
