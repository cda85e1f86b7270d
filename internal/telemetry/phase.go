package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys used by benchmark phases.
const (
	AttrMode     = attribute.Key("tlspool.mode")
	AttrThreads  = attribute.Key("tlspool.threads")
	AttrObjects  = attribute.Key("tlspool.objects")
	AttrRound    = attribute.Key("tlspool.round")
	AttrOps      = attribute.Key("tlspool.ops")
	AttrFailures = attribute.Key("tlspool.failures")
)

// StartPhase starts a span for one benchmark phase.
func StartPhase(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndPhase ends span, marking it failed if err is non-nil.
func EndPhase(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
