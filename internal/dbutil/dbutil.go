// Package dbutil holds the sqlite transaction idioms shared by the
// ledger and chain stores: a dedicated-connection BEGIN IMMEDIATE
// pattern for the read-modify-write sections both stores need to
// serialize under concurrent writers.
package dbutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by lookups that found no row.
var ErrNotFound = errors.New("not found")

// WrapDBError normalizes sql.ErrNoRows to ErrNotFound and annotates
// everything else with the operation that failed.
func WrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// BeginImmediateWithRetry starts an IMMEDIATE transaction on conn,
// retrying with backoff while the engine reports SQLITE_BUSY. The
// pure-Go driver always defaults BeginTx to DEFERRED mode, so callers
// that need a RESERVED lock up front (to serialize a read-then-write
// section across goroutines) issue "BEGIN IMMEDIATE" directly on a
// dedicated connection instead of going through sql.Tx.
func BeginImmediateWithRetry(ctx context.Context, conn *sql.Conn) error {
	const maxAttempts = 5
	delay := 10 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		lastErr = err
		if !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func isBusy(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "busy")
}

// WithImmediateTx runs fn inside a dedicated connection wrapped in an
// IMMEDIATE transaction, committing on success and rolling back on any
// error (including a panic unwound through fn).
func WithImmediateTx(ctx context.Context, db *sql.DB, fn func(conn *sql.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := BeginImmediateWithRetry(ctx, conn); err != nil {
		return fmt.Errorf("begin immediate transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
