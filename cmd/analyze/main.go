package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"stockiq/internal/app"
	"stockiq/internal/logger"
	"stockiq/internal/store"
	"stockiq/internal/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	ticker := flag.String("ticker", "", "ticker symbol to analyze")
	format := flag.String("format", "json", "output format: json, markdown or html")
	flag.Parse()

	if *ticker == "" && flag.NArg() > 0 {
		*ticker = flag.Arg(0)
	}
	if *ticker == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze [-config config.yaml] [-format json|markdown|html] -ticker SYMBOL")
		os.Exit(2)
	}

	if err := app.InitializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Shutdown(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *ticker, *format); err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		_ = logger.Shutdown(context.Background())
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, ticker, format string) error {
	cfg, err := app.LoadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	pipeline, err := app.Build(ctx, cfg, store.LoadCredentials())
	if err != nil {
		return err
	}
	defer pipeline.Close()

	result, err := pipeline.Analyzer.Analyze(ctx, ticker)
	if err != nil {
		return err
	}
	return render(os.Stdout, result, format)
}

func render(w io.Writer, result *types.AnalysisResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "markdown", "md":
		_, err := io.WriteString(w, result.ReportMarkdown+"\n")
		return err
	case "html":
		var buf bytes.Buffer
		md := goldmark.New(goldmark.WithExtensions(extension.GFM))
		if err := md.Convert([]byte(result.ReportMarkdown), &buf); err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		_, err := buf.WriteTo(w)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
