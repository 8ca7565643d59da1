// Package watchlist re-analyzes a fixed list of tickers on a cron schedule.
package watchlist

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
)

// Scheduler runs one sweep over Tickers per schedule tick. Sweeps never
// overlap: a tick that fires while the previous sweep is running is skipped.
type Scheduler struct {
	cron     *cron.Cron
	analyzer interfaces.Analyzer
	tickers  []string
	ctx      context.Context
	running  sync.Mutex
}

func New(ctx context.Context, analyzer interfaces.Analyzer, tickers []string) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		analyzer: analyzer,
		tickers:  tickers,
		ctx:      ctx,
	}
}

// Register adds the sweep under a standard five-field cron expression.
func (s *Scheduler) Register(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return fmt.Errorf("register watchlist schedule %q: %w", schedule, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info(s.ctx, "Watchlist scheduler started", "tickers", len(s.tickers))
}

// Stop waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info(s.ctx, "Watchlist scheduler stopped")
}

// Sweep analyzes every ticker in order. One failure does not stop the sweep.
func (s *Scheduler) Sweep() {
	if !s.running.TryLock() {
		logger.Warn(s.ctx, "Watchlist sweep already running, skipping")
		return
	}
	defer s.running.Unlock()

	failed := 0
	for _, ticker := range s.tickers {
		if s.ctx.Err() != nil {
			break
		}
		if _, err := s.analyzer.Analyze(s.ctx, ticker); err != nil {
			failed++
			logger.Debug(s.ctx, "Watchlist analysis failed", "ticker", ticker, "error", err)
		}
	}
	logger.Info(s.ctx, "Watchlist sweep finished", "tickers", len(s.tickers), "failed", failed)
}
