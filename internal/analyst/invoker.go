package analyst

import (
	"context"
	"fmt"
	"time"

	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
	"stockiq/internal/types"
)

// Instruction is the fixed system instruction every analyst runs under.
const Instruction = "Follow the system prompt exactly."

// Invoker runs one prompt against the model backend per call. It keeps no
// state between calls.
type Invoker struct {
	backend interfaces.ModelBackend
}

func NewInvoker(backend interfaces.ModelBackend) *Invoker {
	return &Invoker{backend: backend}
}

// Invoke sends prompt once and returns the final text of the interaction.
// Backend failures are returned unchanged; retries belong to the backend.
func (inv *Invoker) Invoke(ctx context.Context, prompt, analystName string, schema types.SchemaKind) (string, error) {
	if !inv.backend.Configured() {
		return "", fmt.Errorf("%s: %w", analystName, types.ErrMissingCredential)
	}

	start := time.Now()
	logger.Info(ctx, "Analyst start", "analyst", analystName, "model", inv.backend.Model())

	events, err := inv.backend.Generate(ctx, types.ModelRequest{
		Analyst:     analystName,
		Model:       inv.backend.Model(),
		Instruction: Instruction,
		Prompt:      prompt,
		Schema:      schema,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Analyst failed", err,
			"analyst", analystName,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	text := ExtractFinalText(events)
	if text == "" {
		err := fmt.Errorf("%s: %w", analystName, types.ErrEmptyResponse)
		logger.ErrorWithErr(ctx, "Analyst failed", err,
			"analyst", analystName,
			"events", len(events),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	logger.Info(ctx, "Analyst done",
		"analyst", analystName,
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
