package interfaces

import (
	"context"

	"stockiq/internal/types"
)

type ModelBackend interface {
	Generate(ctx context.Context, req types.ModelRequest) ([]types.Event, error)
	Model() string
	Configured() bool
}
