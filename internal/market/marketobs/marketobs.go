package marketobs

import (
	"context"

	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
	"stockiq/internal/types"
)

// observableProvider wraps a MarketDataProvider with logging and tracing
type observableProvider struct {
	provider interfaces.MarketDataProvider
}

var _ interfaces.MarketDataProvider = (*observableProvider)(nil)

// Wrap wraps a market data provider with observability middleware
func Wrap(provider interfaces.MarketDataProvider) interfaces.MarketDataProvider {
	return &observableProvider{provider: provider}
}

func (op *observableProvider) Name() string { return op.provider.Name() }

func (op *observableProvider) FetchSnapshot(ctx context.Context, ticker string) (*types.MarketSnapshot, error) {
	timer := logger.StartOperation(ctx, "market.FetchSnapshot", "provider", op.provider.Name(), "ticker", ticker)
	snap, err := op.provider.FetchSnapshot(ctx, ticker)
	if err != nil {
		timer.EndWithError(err)
		return nil, err
	}
	timer.End(
		"bars", len(snap.Bars),
		"financials", len(snap.Financials),
		"source", snap.Provider,
	)
	return snap, nil
}
