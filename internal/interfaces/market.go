package interfaces

import (
	"context"

	"stockiq/internal/types"
)

type MarketDataProvider interface {
	FetchSnapshot(ctx context.Context, ticker string) (*types.MarketSnapshot, error)
	Name() string
}

type MetricsComputer interface {
	Compute(bars []types.Bar, financials map[string]float64) types.MetricsBundle
	Indicators(bars []types.Bar) types.Indicators
}

type HeadlineSource interface {
	Headlines(ctx context.Context, ticker string, company map[string]any) ([]string, error)
}
