// Package telemetry wires the node's tracer and meter providers.
// Every node emits structured traces and metrics by default via
// stdout exporters; setting AXIOM_OTLP_ENDPOINT switches the metric
// exporter to OTLP over HTTP for collection by a real backend.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const otlpEndpointEnv = "AXIOM_OTLP_ENDPOINT"

// Providers holds the SDK providers a node's components read metrics
// and spans from, plus a Shutdown that flushes and stops both.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Setup builds a TracerProvider and MeterProvider tagged with the
// node's advertised URL as its service instance id, registering both
// as the global providers so otel.Tracer/otel.Meter callers elsewhere
// in the tree pick them up without an explicit handle.
func Setup(ctx context.Context, advertisedURL string) (*Providers, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", "axiomd"),
			attribute.String("service.instance.id", advertisedURL),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	metricReader, err := newMetricReader(ctx)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricReader),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Providers{TracerProvider: tp, MeterProvider: mp}, nil
}

func newMetricReader(ctx context.Context) (sdkmetric.Reader, error) {
	if endpoint := os.Getenv(otlpEndpointEnv); endpoint != "" {
		exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint))
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exporter), nil
	}
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout metric exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter), nil
}

// Shutdown flushes and stops both providers, best-effort.
func (p *Providers) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("telemetry: shutdown meter provider: %w", err)
	}
	return firstErr
}

// Tracer returns the package-scoped tracer scheduler and p2p use for
// main-cycle and sync-round spans.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/axiom-network/axiomd")
}

// Meter returns the package-scoped meter Metrics is built from.
func Meter() metric.Meter {
	return otel.Meter("github.com/axiom-network/axiomd")
}
