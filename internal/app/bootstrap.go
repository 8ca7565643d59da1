// Package app assembles the analysis pipeline from configuration. Both
// binaries build through it so they share one wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"stockiq/internal/analyst"
	"stockiq/internal/interfaces"
	"stockiq/internal/llm"
	"stockiq/internal/llm/claude"
	"stockiq/internal/llm/gemini"
	"stockiq/internal/llm/llmobs"
	"stockiq/internal/logger"
	"stockiq/internal/market"
	"stockiq/internal/metrics"
	"stockiq/internal/news"
	"stockiq/internal/orchestrator"
	"stockiq/internal/orchestrator/orchestratorobs"
	"stockiq/internal/publish"
	"stockiq/internal/runlog"
	"stockiq/internal/store"
	"stockiq/internal/trace"
)

// InitializeSystem loads .env and starts logging and tracing.
func InitializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// LoadConfig loads path and logs failures.
func LoadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// Pipeline is a ready Analyzer plus the clients it keeps open.
type Pipeline struct {
	Analyzer interfaces.Analyzer
	closers  []func() error
}

func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build wires every collaborator named in cfg.
func Build(ctx context.Context, cfg *store.Config, creds store.Credentials) (*Pipeline, error) {
	p := &Pipeline{}

	backend, err := InitializeBackend(ctx, cfg, creds)
	if err != nil {
		return nil, err
	}

	provider, closeProvider, err := market.New(ctx, cfg, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize market data: %w", err)
	}
	p.closers = append(p.closers, closeProvider)
	logger.Info(ctx, "Market data provider ready",
		"provider", provider.Name(),
		"cache", cfg.Data.Cache.Backend,
	)

	var opts []orchestrator.Option
	if cfg.Analysis.Headlines.Enabled {
		opts = append(opts, orchestrator.WithHeadlines(news.New(news.Config{
			Max:      cfg.Analysis.Headlines.Max,
			Language: cfg.Analysis.Headlines.Language,
			Region:   cfg.Analysis.Headlines.Region,
		})))
	}
	if cfg.RunLog.Enabled {
		opts = append(opts, orchestrator.WithRecorder(initializeRunLog(ctx, cfg)))
	}
	if cfg.Publish.Enabled {
		producer := publish.NewProducer(cfg.Publish.Brokers, cfg.Publish.Topic)
		p.closers = append(p.closers, producer.Close)
		opts = append(opts, orchestrator.WithPublisher(producer))
		logger.Info(ctx, "Publishing analysis events", "topic", cfg.Publish.Topic, "brokers", cfg.Publish.Brokers)
	}

	orch := orchestrator.New(
		provider,
		metrics.New(),
		analyst.New(analyst.NewInvoker(backend)),
		orchestrator.OptionsFromConfig(cfg),
		opts...,
	)
	p.Analyzer = orchestratorobs.Wrap(orch)
	return p, nil
}

// InitializeBackend returns the configured model backend with observability.
// A backend without a key is returned unconfigured so runs fail with a
// missing-credential error instead of at startup.
func InitializeBackend(ctx context.Context, cfg *store.Config, creds store.Credentials) (interfaces.ModelBackend, error) {
	retry := llm.RetryPolicy{
		Attempts:     cfg.Model.Retry.Attempts,
		InitialDelay: time.Duration(cfg.Model.Retry.InitialDelayMS) * time.Millisecond,
		ExpBase:      cfg.Model.Retry.ExpBase,
		MaxDelay:     time.Duration(cfg.Model.Retry.MaxDelayMS) * time.Millisecond,
		StatusCodes:  cfg.Model.Retry.StatusCodes,
	}

	var backend interfaces.ModelBackend
	switch cfg.Model.Provider {
	case store.ModelClaude:
		backend = claude.New(claude.Config{
			APIKey:      creds.AnthropicAPIKey,
			Model:       cfg.Model.Name,
			Temperature: float64(cfg.Model.Temperature),
			MaxTokens:   int64(cfg.Model.MaxTokens),
			Retry:       retry,
		})
	default:
		b, err := gemini.New(ctx, gemini.Config{
			APIKey:      creds.GeminiAPIKey,
			Model:       cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   int32(cfg.Model.MaxTokens),
			Retry:       retry,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini backend: %w", err)
		}
		backend = b
	}

	if !backend.Configured() {
		logger.Warn(ctx, "Model API key is not set - analysis requests will fail", "provider", cfg.Model.Provider)
	} else {
		logger.Info(ctx, "Model backend ready", "provider", cfg.Model.Provider, "model", backend.Model())
	}
	return llmobs.Wrap(backend), nil
}

func initializeRunLog(ctx context.Context, cfg *store.Config) *runlog.Log {
	rl := runlog.New(cfg.RunLog.Dir)
	n, err := rl.CompressOlder(cfg.RunLog.CompressAfterDays)
	if err != nil {
		logger.Warn(ctx, "Failed to compress old run logs", "error", err)
	} else if n > 0 {
		logger.Info(ctx, "Compressed old run logs", "files", n)
	}
	return rl
}
