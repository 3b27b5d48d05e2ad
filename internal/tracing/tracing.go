// Package tracing wires an OpenTelemetry tracer for kvsfs, following the
// teacher's internal/fs/wrappers span-per-op decorator pattern: every CFS
// operation is wrapped in a span via cfs.Traced (see cfs/traced.go), naming
// the operation and recording its outcome as a span status.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kvsfs/kvsfs/cfs"

// NoopProvider returns a TracerProvider that creates no-op spans, the
// default when tracing is disabled (cfg.TracingConfig.Enabled == false).
func NoopProvider() trace.TracerProvider {
	return trace.NewNoopTracerProvider()
}

// NewProvider builds a real SDK TracerProvider with no exporter attached
// beyond what the caller registers (span processors are added by the
// caller via provider.RegisterSpanProcessor, keeping this package
// exporter-agnostic the way the teacher's own tracing setup defers
// exporter choice to its caller).
func NewProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider()
}

// Tracer returns the package tracer, reading the globally configured
// TracerProvider (set via otel.SetTracerProvider during startup).
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Span starts a span named op and returns a function that ends it,
// recording err (if any) as the span's status. Usage:
//
//	ctx, end := tracing.Span(ctx, "cfs.CreateEntry")
//	defer func() { end(err) }()
func Span(ctx context.Context, op string) (context.Context, func(err error)) {
	ctx, span := Tracer().Start(ctx, op)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
