package orchestratorobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
	"stockiq/internal/trace"
	"stockiq/internal/types"
)

type observableAnalyzer struct {
	analyzer interfaces.Analyzer
}

var _ interfaces.Analyzer = (*observableAnalyzer)(nil)

func Wrap(a interfaces.Analyzer) interfaces.Analyzer {
	return &observableAnalyzer{analyzer: a}
}

func (oa *observableAnalyzer) Analyze(ctx context.Context, ticker string) (*types.AnalysisResult, error) {
	ctx, span := trace.StartSpan(ctx, "orchestrator.Analyze", attribute.String("ticker", ticker))
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting analysis", "ticker", ticker)

	result, err := oa.analyzer.Analyze(ctx, ticker)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Analysis aborted", err,
			"ticker", ticker,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	fields := []any{
		"ticker", result.Ticker,
		"score", result.Scorecard.Score,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if c := result.CompilerScorecard; c != nil {
		fields = append(fields, "final_score", c.FinalScore, "final_signal", string(c.FinalSignal))
	}
	logger.InfoSkip(ctx, 1, "Analysis completed", fields...)
	return result, nil
}
