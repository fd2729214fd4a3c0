// Package tracing sets up OpenTelemetry tracing for nimmy: a tracer
// provider exporting to stdout, and a thin Tracer wrapper satisfying
// pkg/vm.Tracer's "start a span, get back an end func" surface.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the tracer provider.
type Config struct {
	ServiceName  string
	SamplingRate float64 // 0.0–1.0; 1.0 means always sample
}

// DefaultConfig names the service "nimmy" and samples every trace.
func DefaultConfig() Config {
	return Config{ServiceName: "nimmy", SamplingRate: 1.0}
}

// Provider wraps an OpenTelemetry TracerProvider, owning its shutdown.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Init builds a tracer provider exporting spans to stdout, the only
// exporter nimmy ships: unlike a deployed server, an embedded VM has no
// fixed collector endpoint to default an OTLP exporter at, so tracing
// output goes to the embedder's own stdout/log capture instead.
func Init(cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg = DefaultConfig()
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("tracing: creating stdout exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}, nil
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer adapts an OpenTelemetry tracer to pkg/vm.Tracer's narrow
// "StartSpan(name, attrs) -> end func" surface.
type Tracer struct {
	name   string
	tracer trace.Tracer
}

// NewTracer creates a Tracer that starts spans under name (typically
// "nimmy"), using the globally configured tracer provider.
func NewTracer(name string) *Tracer {
	return &Tracer{name: name, tracer: otel.Tracer(name)}
}

// StartSpan starts a span and returns a func that ends it, satisfying
// pkg/vm.Tracer.
func (t *Tracer) StartSpan(spanName string, attrs map[string]string) func() {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.String(k, v))
	}
	_, span := t.tracer.Start(context.Background(), spanName, trace.WithAttributes(kvs...))
	return func() { span.End() }
}
