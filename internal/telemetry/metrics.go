package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func stepAttr(step string) attribute.KeyValue {
	return attribute.String("axiom.sync.step", step)
}

// Metrics holds the counters the scheduler and p2p layers record
// against. A nil *Metrics is safe to call methods on: every method is
// a no-op when m is nil, so components can be constructed before
// Setup has run (e.g. in tests) without a guard at every call site.
type Metrics struct {
	factsInserted   metric.Int64Counter
	blocksCreated   metric.Int64Counter
	syncErrors      metric.Int64Counter
	peersDiscovered metric.Int64Counter
	fragmentsPruned metric.Int64Counter
}

// NewMetrics creates the node's counters against the given meter.
// Pass telemetry.Meter() for the global meter Setup installed.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	factsInserted, err := meter.Int64Counter("axiom.facts.inserted",
		metric.WithDescription("facts inserted into the ledger, by this node or via sync"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: facts.inserted counter: %w", err)
	}
	blocksCreated, err := meter.Int64Counter("axiom.blocks.created",
		metric.WithDescription("blocks appended to the chain, locally or via sync"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: blocks.created counter: %w", err)
	}
	syncErrors, err := meter.Int64Counter("axiom.sync.errors",
		metric.WithDescription("pull-sync round steps that failed against a peer"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: sync.errors counter: %w", err)
	}
	peersDiscovered, err := meter.Int64Counter("axiom.peers.discovered",
		metric.WithDescription("peer urls registered from a peer's get_peers list during sync, already-known urls included"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: peers.discovered counter: %w", err)
	}
	fragmentsPruned, err := meter.Int64Counter("axiom.fragments.pruned",
		metric.WithDescription("facts removed by the prune pass"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: fragments.pruned counter: %w", err)
	}

	return &Metrics{
		factsInserted:   factsInserted,
		blocksCreated:   blocksCreated,
		syncErrors:      syncErrors,
		peersDiscovered: peersDiscovered,
		fragmentsPruned: fragmentsPruned,
	}, nil
}

func (m *Metrics) FactInserted(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.factsInserted.Add(ctx, n)
}

func (m *Metrics) BlockCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.blocksCreated.Add(ctx, 1)
}

func (m *Metrics) SyncError(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.syncErrors.Add(ctx, 1, metric.WithAttributes(stepAttr(step)))
}

func (m *Metrics) PeerDiscovered(ctx context.Context) {
	if m == nil {
		return
	}
	m.peersDiscovered.Add(ctx, 1)
}

func (m *Metrics) FragmentsPruned(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.fragmentsPruned.Add(ctx, n)
}
