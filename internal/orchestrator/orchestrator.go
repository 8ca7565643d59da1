// Package orchestrator runs one analysis: fetch a snapshot, derive metrics,
// collect four independent analyst verdicts and compile the technical and
// fundamental verdicts into a final one.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stockiq/internal/analyst"
	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
	"stockiq/internal/scoring"
	"stockiq/internal/store"
	"stockiq/internal/types"
)

const (
	StageFetchData      = "FETCH_DATA"
	StageComputeMetrics = "COMPUTE_METRICS"
	StageNarrative      = "NARRATIVE"
	StageScore          = "SCORE"
	StageTechnical      = "TECHNICAL"
	StageFundamental    = "FUNDAMENTAL"
	StageCompile        = "COMPILE"
	StageDone           = "DONE"
)

// CompileMode selects who produces the compiled scorecard.
type CompileMode string

const (
	CompileModel      CompileMode = "model"
	CompileArithmetic CompileMode = "arithmetic"
)

type Options struct {
	Weights          types.Weights
	Parallel         bool
	Timeout          time.Duration
	CompileMode      CompileMode
	CompilerAttempts int
	Tolerance        scoring.Tolerance
}

func DefaultOptions() Options {
	return Options{
		Weights:          scoring.DefaultWeights(),
		CompileMode:      CompileModel,
		CompilerAttempts: 2,
		Tolerance:        scoring.DefaultTolerance(),
	}
}

// OptionsFromConfig maps the analysis and compiler sections of cfg.
func OptionsFromConfig(cfg *store.Config) Options {
	opts := DefaultOptions()
	opts.Weights = types.Weights{
		Technical:   cfg.Analysis.Weights.Technical,
		Fundamental: cfg.Analysis.Weights.Fundamental,
	}
	opts.Parallel = cfg.Analysis.Parallel
	opts.Timeout = cfg.AnalysisTimeout()
	if cfg.Compiler.Mode == store.CompilerArithmetic {
		opts.CompileMode = CompileArithmetic
	}
	opts.CompilerAttempts = cfg.Compiler.MaxAttempts
	opts.Tolerance = scoring.Tolerance{
		Score:      cfg.Compiler.ScoreTolerance,
		Confidence: cfg.Compiler.ConfidenceTolerance,
	}
	return opts
}

type Orchestrator struct {
	provider  interfaces.MarketDataProvider
	metrics   interfaces.MetricsComputer
	analysts  *analyst.Analysts
	headlines interfaces.HeadlineSource
	recorder  interfaces.RunRecorder
	publisher interfaces.ResultPublisher
	opts      Options
	now       func() time.Time
	newRunID  func() string
}

var _ interfaces.Analyzer = (*Orchestrator)(nil)

// Option attaches an optional collaborator.
type Option func(*Orchestrator)

func WithHeadlines(src interfaces.HeadlineSource) Option {
	return func(o *Orchestrator) { o.headlines = src }
}

func WithRecorder(r interfaces.RunRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithPublisher(p interfaces.ResultPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func New(provider interfaces.MarketDataProvider, metrics interfaces.MetricsComputer, analysts *analyst.Analysts, opts Options, extra ...Option) *Orchestrator {
	if opts.CompileMode == "" {
		opts.CompileMode = CompileModel
	}
	if opts.CompilerAttempts < 1 {
		opts.CompilerAttempts = 1
	}
	o := &Orchestrator{
		provider: provider,
		metrics:  metrics,
		analysts: analysts,
		opts:     opts,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range extra {
		opt(o)
	}
	return o
}

// Analyze normalizes ticker, runs the pipeline and returns the assembled
// result. The first failing stage ends the run; no partial result is returned.
func (o *Orchestrator) Analyze(ctx context.Context, ticker string) (*types.AnalysisResult, error) {
	normalized, err := types.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	runID := o.newRunID()
	ctx = logger.WithRunID(ctx, runID)
	result, err := o.run(ctx, runID, normalized)

	// Bookkeeping outlives a cancelled run context.
	after := context.WithoutCancel(ctx)
	o.record(after, runID, normalized, result, err)
	if err != nil {
		logger.Debug(ctx, "Analysis failed", "run_id", runID, "ticker", normalized, "error", err)
		return nil, err
	}
	o.publish(after, runID, result)
	return result, nil
}

type verdicts struct {
	report      string
	score       *types.Scorecard
	technical   *types.TechnicalScorecard
	fundamental *types.FundamentalScorecard
}

func (o *Orchestrator) run(ctx context.Context, runID, ticker string) (*types.AnalysisResult, error) {
	asOf := o.now().UTC().Format(time.RFC3339Nano)

	logger.Stage(ctx, runID, ticker, StageFetchData, "provider", o.provider.Name())
	snap, err := o.provider.FetchSnapshot(ctx, ticker)
	if err != nil {
		return nil, err
	}
	snap = o.attachHeadlines(ctx, ticker, snap)

	logger.Stage(ctx, runID, ticker, StageComputeMetrics, "bars", len(snap.Bars))
	metrics := o.metrics.Compute(snap.Bars, snap.Financials)
	brief := analyst.Briefing{
		Ticker:       ticker,
		AsOf:         asOf,
		Snapshot:     snap,
		Metrics:      metrics,
		Indicators:   o.metrics.Indicators(snap.Bars),
		PriceSummary: analyst.PriceSummary(snap.Bars),
	}

	var v *verdicts
	if o.opts.Parallel {
		v, err = o.verdictsParallel(ctx, runID, brief)
	} else {
		v, err = o.verdictsSequential(ctx, runID, brief)
	}
	if err != nil {
		return nil, err
	}

	logger.Stage(ctx, runID, ticker, StageCompile, "mode", string(o.opts.CompileMode))
	compiled, err := o.compile(ctx, brief, v.technical, v.fundamental)
	if err != nil {
		return nil, err
	}

	result := &types.AnalysisResult{
		Ticker:            ticker,
		ReportMarkdown:    v.report,
		Metrics:           metrics,
		Scorecard:         *v.score,
		CompilerScorecard: compiled,
		AsOf:              asOf,
	}
	logger.Stage(ctx, runID, ticker, StageDone)
	logger.Verdict(ctx, ticker, string(compiled.FinalSignal), compiled.FinalScore, compiled.FinalConfidence,
		"run_id", runID,
		"narrative_score", v.score.Score,
		"technical_score", v.technical.Score,
		"fundamental_score", v.fundamental.Score,
	)
	return result, nil
}

// attachHeadlines returns a copy of snap carrying recent headlines. Headline
// failures never fail the run.
func (o *Orchestrator) attachHeadlines(ctx context.Context, ticker string, snap *types.MarketSnapshot) *types.MarketSnapshot {
	if o.headlines == nil {
		return snap
	}
	headlines, err := o.headlines.Headlines(ctx, ticker, snap.Company)
	if err != nil {
		logger.Warn(ctx, "Headlines unavailable", "ticker", ticker, "error", err)
		return snap
	}
	if len(headlines) == 0 {
		return snap
	}
	cp := *snap
	cp.Headlines = headlines
	return &cp
}

func (o *Orchestrator) verdictsSequential(ctx context.Context, runID string, b analyst.Briefing) (*verdicts, error) {
	var (
		v   verdicts
		err error
	)
	logger.Stage(ctx, runID, b.Ticker, StageNarrative)
	if v.report, err = o.analysts.Narrative(ctx, b); err != nil {
		return nil, err
	}
	logger.Stage(ctx, runID, b.Ticker, StageScore)
	if v.score, err = o.analysts.Score(ctx, b); err != nil {
		return nil, err
	}
	logger.Stage(ctx, runID, b.Ticker, StageTechnical)
	if v.technical, err = o.analysts.Technical(ctx, b); err != nil {
		return nil, err
	}
	logger.Stage(ctx, runID, b.Ticker, StageFundamental)
	if v.fundamental, err = o.analysts.Fundamental(ctx, b); err != nil {
		return nil, err
	}
	return &v, nil
}

// verdictsParallel runs the four analysts concurrently. The first failure
// cancels the others.
func (o *Orchestrator) verdictsParallel(ctx context.Context, runID string, b analyst.Briefing) (*verdicts, error) {
	var v verdicts
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Stage(gctx, runID, b.Ticker, StageNarrative)
		report, err := o.analysts.Narrative(gctx, b)
		v.report = report
		return err
	})
	g.Go(func() error {
		logger.Stage(gctx, runID, b.Ticker, StageScore)
		score, err := o.analysts.Score(gctx, b)
		v.score = score
		return err
	})
	g.Go(func() error {
		logger.Stage(gctx, runID, b.Ticker, StageTechnical)
		technical, err := o.analysts.Technical(gctx, b)
		v.technical = technical
		return err
	})
	g.Go(func() error {
		logger.Stage(gctx, runID, b.Ticker, StageFundamental)
		fundamental, err := o.analysts.Fundamental(gctx, b)
		v.fundamental = fundamental
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (o *Orchestrator) compile(ctx context.Context, b analyst.Briefing, t *types.TechnicalScorecard, f *types.FundamentalScorecard) (*types.CompiledScorecard, error) {
	if o.opts.CompileMode == CompileArithmetic {
		c := scoring.Compile(t, f, o.opts.Weights)
		c.Ticker, c.AsOf = b.Ticker, b.AsOf
		return &c, nil
	}

	var mismatch error
	for attempt := 1; attempt <= o.opts.CompilerAttempts; attempt++ {
		c, err := o.analysts.Compile(ctx, b, t, f, o.opts.Weights)
		if err != nil {
			return nil, err
		}
		mismatch = scoring.Check(c, t, f, o.opts.Weights, o.opts.Tolerance)
		if mismatch == nil {
			return c, nil
		}
		logger.Warn(ctx, "Compiled scorecard disagrees with arithmetic",
			"ticker", b.Ticker,
			"attempt", attempt,
			"max_attempts", o.opts.CompilerAttempts,
			"error", mismatch,
		)
	}
	return nil, &types.ResponseFormatError{Analyst: analyst.NameCompiler, Schema: types.SchemaCompiled, Err: mismatch}
}

func (o *Orchestrator) record(ctx context.Context, runID, ticker string, result *types.AnalysisResult, runErr error) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, runID, ticker, result, runErr); err != nil {
		logger.Warn(ctx, "Run log write failed", "run_id", runID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, runID string, result *types.AnalysisResult) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, runID, result); err != nil {
		logger.Warn(ctx, "Result publish failed", "run_id", runID, "ticker", result.Ticker, "error", err)
	}
}
