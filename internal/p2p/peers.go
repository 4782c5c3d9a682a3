package p2p

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Registry is the persisted peer list: the `peers` table spec.md §6
// names as part of a node's single-file store.
type Registry struct {
	db *sql.DB
}

// NewRegistry wires a peer registry to a node's database handle.
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// EnsureSchema creates the peers table if missing. Forward-only and
// idempotent, matching every other store's schema bootstrap.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS peers (
			url TEXT PRIMARY KEY
		)
	`)
	if err != nil {
		return fmt.Errorf("p2p: ensure peers schema: %w", err)
	}
	return nil
}

// CanonicalizeURL strips a trailing slash so the same peer reached by
// two spellings dedupes to one row.
func CanonicalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

// Register adds url to the peer list, deduped by its canonical form.
// It does not filter out the node's own advertised URL, and neither
// do its callers (peer discovery, the inbound X-Axiom-Peer header, the
// bootstrap peer), so a node can end up listing itself.
func (r *Registry) Register(ctx context.Context, url string) error {
	canon := CanonicalizeURL(url)
	if canon == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO peers (url) VALUES (?)
		ON CONFLICT (url) DO NOTHING
	`, canon)
	if err != nil {
		return fmt.Errorf("p2p: register peer %s: %w", canon, err)
	}
	return nil
}

// List returns every known peer URL.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT url FROM peers ORDER BY url ASC`)
	if err != nil {
		return nil, fmt.Errorf("p2p: list peers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("p2p: list peers: scan: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}
