package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNilMetricsMethodsDoNotPanic(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.FactInserted(ctx, 1)
	m.BlockCreated(ctx)
	m.SyncError(ctx, "fact_sync")
	m.PeerDiscovered(ctx)
	m.FragmentsPruned(ctx, 1)
}

func TestNewMetricsRegistersCounters(t *testing.T) {
	meter := sdkmetric.NewMeterProvider().Meter("test")
	m, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	ctx := context.Background()
	m.FactInserted(ctx, 2)
	m.BlockCreated(ctx)
	m.SyncError(ctx, "chain_sync")
	m.PeerDiscovered(ctx)
	m.FragmentsPruned(ctx, 3)
}
