package interfaces

import (
	"context"

	"stockiq/internal/types"
)

type Analyzer interface {
	Analyze(ctx context.Context, ticker string) (*types.AnalysisResult, error)
}

type ResultPublisher interface {
	Publish(ctx context.Context, runID string, result *types.AnalysisResult) error
}

type RunRecorder interface {
	Record(ctx context.Context, runID, ticker string, result *types.AnalysisResult, runErr error) error
}
