package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies the benchmark driver in exported traces.
const ServiceName = "tlspool-bench"

// Config holds telemetry configuration.
type Config struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`    // OTLP HTTP endpoint (e.g., "localhost:4318")
	SampleRate float64 `mapstructure:"sample_rate"` // 0.0-1.0
	Insecure   bool    `mapstructure:"insecure"`    // Use HTTP instead of HTTPS
}

// Provider wraps the OpenTelemetry TracerProvider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider creates a provider exporting over OTLP HTTP. It returns a
// nil Provider when telemetry is disabled; a nil Provider is usable.
func NewProvider(ctx context.Context, cfg Config, serviceVersion string) (*Provider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	// Build exporter options
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	// Create OTLP exporter
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	p, err := newProvider(cfg.SampleRate, serviceVersion, sdktrace.WithBatcher(exporter))
	if err != nil {
		return nil, err
	}

	// Set global TracerProvider and propagator
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("telemetry provider initialized",
		"endpoint", cfg.Endpoint,
		"sample_rate", cfg.SampleRate,
	)

	return p, nil
}

func newProvider(sampleRate float64, serviceVersion string, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	// The SDK default resource carries its own schema URL.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(sampleRate)),
	)
	return &Provider{tp: sdktrace.NewTracerProvider(opts...)}, nil
}

// Sampler maps a sample rate to a sampler. Rates at or above 1 sample
// everything; rates at or below 0 sample nothing.
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes pending spans and shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns a named tracer.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p == nil || p.tp == nil {
		return otel.Tracer(name)
	}
	return p.tp.Tracer(name)
}

// Tracer returns the global tracer for a given name.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
