// Package trace gives wrappers a span API without depending on logger setup.
// Spans go to whatever provider is installed globally, normally the one
// logger.InitWithConfig registers.
package trace

import (
	"context"
	"os"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "stockiq"

var enabled atomic.Bool

// Init enables span creation when LOG_TRACING_ENABLED=true.
func Init() error {
	enabled.Store(getEnv("LOG_TRACING_ENABLED", "false") == "true")
	return nil
}

// SetEnabled overrides the environment setting.
func SetEnabled(on bool) {
	enabled.Store(on)
}

func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !enabled.Load() {
		return ctx, trace.SpanFromContext(ctx)
	}
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled.Load() {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
