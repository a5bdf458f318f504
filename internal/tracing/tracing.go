// Package tracing sets up an optional OpenTelemetry tracer that exports spans
// to stdout.
package tracing

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rzbill/logcache"

var enabled atomic.Bool

// Setup installs a global tracer provider when enable is true. The returned
// shutdown function flushes pending spans and must be called on exit.
func Setup(enable bool) (func(context.Context) error, error) {
	return SetupWriter(enable, os.Stdout)
}

// SetupWriter is Setup with spans exported to w.
func SetupWriter(enable bool, w io.Writer) (func(context.Context) error, error) {
	enabled.Store(enable)
	if !enable {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return func(ctx context.Context) error {
		enabled.Store(false)
		return tp.Shutdown(ctx)
	}, nil
}

// StartSpan starts a span when tracing is enabled. attrs are string pairs.
func StartSpan(ctx context.Context, name string, attrs ...string) (context.Context, func(err error)) {
	if !enabled.Load() {
		return ctx, func(error) {}
	}
	kv := make([]attribute.KeyValue, 0, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		kv = append(kv, attribute.String(attrs[i], attrs[i+1]))
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(kv...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
