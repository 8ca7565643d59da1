package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Verdict logs a completed recommendation. It is always emitted at INFO.
func Verdict(ctx context.Context, ticker, signal string, score int, confidence float64, fields ...any) {
	addSpanEvent(ctx, "analysis_verdict",
		attribute.String("ticker", ticker),
		attribute.String("signal", signal),
		attribute.Int("score", score),
		attribute.Float64("confidence", confidence),
	)

	allFields := append([]any{
		"type", "VERDICT",
		"ticker", ticker,
		"signal", signal,
		"score", score,
		"confidence", confidence,
	}, fields...)
	logWithTrace(ctx, slog.LevelInfo, "Analysis verdict", 2, allFields...)
}

// Stage logs a pipeline stage transition for one run.
func Stage(ctx context.Context, runID, ticker, stage string, fields ...any) {
	addSpanEvent(ctx, "pipeline_stage",
		attribute.String("run_id", runID),
		attribute.String("ticker", ticker),
		attribute.String("stage", stage),
	)

	allFields := append([]any{
		"type", "STAGE",
		"run_id", runID,
		"ticker", ticker,
		"stage", stage,
	}, fields...)
	logWithTrace(ctx, slog.LevelInfo, "Pipeline stage", 2, allFields...)
}

// Snippet shortens model output for log lines.
func Snippet(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

func addSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if !tracingEnabled || ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}
