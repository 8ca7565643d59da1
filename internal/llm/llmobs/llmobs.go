package llmobs

import (
	"context"

	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
	"stockiq/internal/trace"
	"stockiq/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// observableBackend wraps a ModelBackend with logging and tracing
type observableBackend struct {
	backend interfaces.ModelBackend
}

var _ interfaces.ModelBackend = (*observableBackend)(nil)

// Wrap wraps a model backend with observability middleware
func Wrap(backend interfaces.ModelBackend) interfaces.ModelBackend {
	return &observableBackend{backend: backend}
}

func (ob *observableBackend) Model() string { return ob.backend.Model() }

func (ob *observableBackend) Configured() bool { return ob.backend.Configured() }

func (ob *observableBackend) Generate(ctx context.Context, req types.ModelRequest) ([]types.Event, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Generate",
		attribute.String("analyst", req.Analyst),
		attribute.String("model", req.Model),
		attribute.String("schema", string(req.Schema)),
	)
	defer span.End()

	// Skip one frame so the caller, not this wrapper, is reported as source
	logger.DebugSkip(ctx, 1, "Requesting model response",
		"analyst", req.Analyst,
		"model", req.Model,
		"schema", string(req.Schema),
		"prompt_chars", len(req.Prompt),
	)
	if logger.IsDebugEnabled() {
		logger.DebugSkip(ctx, 1, "Model prompt", "analyst", req.Analyst, "prompt", req.Prompt)
	}

	events, err := ob.backend.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.DebugSkip(ctx, 1, "Model request failed",
			"error", err,
			"analyst", req.Analyst,
			"model", req.Model,
		)
		return nil, err
	}

	last := ""
	if len(events) > 0 {
		last = events[len(events)-1].Text
	}
	logger.DebugSkip(ctx, 1, "Model response received",
		"analyst", req.Analyst,
		"events", len(events),
		"preview", logger.Snippet(last, 200),
	)
	return events, nil
}
