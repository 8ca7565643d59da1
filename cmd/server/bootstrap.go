package main

import (
	"context"
	"fmt"

	"stockiq/internal/app"
	"stockiq/internal/logger"
	"stockiq/internal/store"
	"stockiq/internal/watchlist"
)

// initializeWatchlist starts the scheduled sweep when enabled. Returns nil
// when the watchlist is off.
func initializeWatchlist(ctx context.Context, cfg *store.Config, pipeline *app.Pipeline) (*watchlist.Scheduler, error) {
	if !cfg.Watchlist.Enabled {
		return nil, nil
	}

	sched := watchlist.New(ctx, pipeline.Analyzer, cfg.Watchlist.Tickers)
	if err := sched.Register(cfg.Watchlist.Schedule); err != nil {
		return nil, fmt.Errorf("invalid watchlist schedule %q: %w", cfg.Watchlist.Schedule, err)
	}
	sched.Start()

	logger.Info(ctx, "Watchlist scheduled",
		"schedule", cfg.Watchlist.Schedule,
		"tickers", len(cfg.Watchlist.Tickers),
	)
	return sched, nil
}
