package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stockiq/internal/app"
	"stockiq/internal/logger"
	"stockiq/internal/server"
	"stockiq/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := app.InitializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		logger.ErrorWithErr(ctx, "Server exited", err)
		_ = logger.Shutdown(context.Background())
		os.Exit(1)
	}
	_ = logger.Shutdown(context.Background())
}

func run(ctx context.Context, configPath string) error {
	cfg, err := app.LoadConfig(ctx, configPath)
	if err != nil {
		return err
	}

	pipeline, err := app.Build(ctx, cfg, store.LoadCredentials())
	if err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Warn(ctx, "Failed to close pipeline", "error", err)
		}
	}()

	sched, err := initializeWatchlist(ctx, cfg, pipeline)
	if err != nil {
		return err
	}
	if sched != nil {
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(pipeline.Analyzer, cfg.Server.StaticDir).Routes(),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", cfg.Server.Addr, "static_dir", cfg.Server.StaticDir)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
