// Package prune implements C4, the metacognitive pruning pass that
// garbage-collects stale, low-trust, fragment-tagged facts without
// ever touching the chain.
package prune

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/axiom-network/axiomd/internal/ledger"
)

// interval is the minimum spacing between prune passes on one node.
// spec.md §4.4 defines the deletion predicate but leaves the pass's
// own cadence unspecified; a node runs it once per main cycle at
// most, gated by this throttle, so a 900s-default main cycle doesn't
// re-scan the whole table every time it fires.
const interval = 24 * time.Hour

// Pruner runs the C4 deletion pass over a ledger store.
type Pruner struct {
	store   *ledger.Store
	mu      sync.Mutex
	lastRun time.Time
}

// NewPruner wires a pruner to a ledger store.
func NewPruner(store *ledger.Store) *Pruner {
	return &Pruner{store: store}
}

// Due reports whether enough time has passed since the last run.
func (p *Pruner) Due(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastRun) >= interval
}

// RunOnce deletes every qualifying fact and returns how many rows
// were removed.
func (p *Pruner) RunOnce(ctx context.Context, log *slog.Logger, now time.Time) (int, error) {
	p.mu.Lock()
	p.lastRun = now
	p.mu.Unlock()

	deleted, err := p.store.DeletePruneCandidates(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		log.Info("metacognitive prune removed facts", "count", len(deleted))
	}
	return len(deleted), nil
}
