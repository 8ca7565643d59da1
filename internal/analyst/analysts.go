package analyst

import (
	"context"

	"stockiq/internal/types"
)

const (
	NameNarrative   = "analysis_agent"
	NameScore       = "score_agent"
	NameTechnical   = "technical_agent"
	NameFundamental = "fundamental_agent"
	NameCompiler    = "compiler_agent"
)

// Briefing is the read-only material shared by every analyst in one run.
type Briefing struct {
	Ticker       string
	AsOf         string
	Snapshot     *types.MarketSnapshot
	Metrics      types.MetricsBundle
	Indicators   types.Indicators
	PriceSummary string
}

func (b Briefing) company() map[string]any {
	if b.Snapshot == nil {
		return nil
	}
	return b.Snapshot.Company
}

func (b Briefing) data() PromptData {
	d := PromptData{
		Ticker:       b.Ticker,
		AsOf:         b.AsOf,
		CompanyJSON:  CompactJSON(b.company()),
		PriceSummary: b.PriceSummary,
		MetricsJSON:  CompactJSON(b.Metrics),
	}
	if b.Snapshot != nil && len(b.Snapshot.Headlines) > 0 {
		d.HeadlinesJSON = CompactJSON(b.Snapshot.Headlines)
	}
	return d
}

// Analysts binds the five prompt templates to one invoker.
type Analysts struct {
	inv *Invoker
}

func New(inv *Invoker) *Analysts {
	return &Analysts{inv: inv}
}

// Narrative returns the markdown report. It has no schema.
func (a *Analysts) Narrative(ctx context.Context, b Briefing) (string, error) {
	prompt, err := RenderPrompt(PromptNarrative, b.data())
	if err != nil {
		return "", err
	}
	return a.inv.Invoke(ctx, prompt, NameNarrative, types.SchemaNone)
}

func (a *Analysts) Score(ctx context.Context, b Briefing) (*types.Scorecard, error) {
	prompt, err := RenderPrompt(PromptScore, b.data())
	if err != nil {
		return nil, err
	}
	text, err := a.inv.Invoke(ctx, prompt, NameScore, types.SchemaScorecard)
	if err != nil {
		return nil, err
	}
	return Coerce[types.Scorecard](ctx, NameScore, types.SchemaScorecard, text)
}

func (a *Analysts) Technical(ctx context.Context, b Briefing) (*types.TechnicalScorecard, error) {
	d := b.data()
	var bars []types.Bar
	if b.Snapshot != nil {
		bars = b.Snapshot.Bars
	}
	if bars == nil {
		bars = []types.Bar{}
	}
	d.PriceDataJSON = CompactJSON(bars)
	d.IndicatorsJSON = CompactJSON(b.Indicators)

	prompt, err := RenderPrompt(PromptTechnical, d)
	if err != nil {
		return nil, err
	}
	text, err := a.inv.Invoke(ctx, prompt, NameTechnical, types.SchemaTechnical)
	if err != nil {
		return nil, err
	}
	return Coerce[types.TechnicalScorecard](ctx, NameTechnical, types.SchemaTechnical, text)
}

func (a *Analysts) Fundamental(ctx context.Context, b Briefing) (*types.FundamentalScorecard, error) {
	d := b.data()
	var fin map[string]float64
	if b.Snapshot != nil {
		fin = b.Snapshot.Financials
	}
	d.FinancialsJSON = CompactJSON(fin)

	prompt, err := RenderPrompt(PromptFundamental, d)
	if err != nil {
		return nil, err
	}
	text, err := a.inv.Invoke(ctx, prompt, NameFundamental, types.SchemaFundamental)
	if err != nil {
		return nil, err
	}
	return Coerce[types.FundamentalScorecard](ctx, NameFundamental, types.SchemaFundamental, text)
}

// Compile asks the compiler analyst to merge two verdicts. The caller is
// expected to check the result against the arithmetic compiler.
func (a *Analysts) Compile(ctx context.Context, b Briefing, t *types.TechnicalScorecard, f *types.FundamentalScorecard, w types.Weights) (*types.CompiledScorecard, error) {
	d := PromptData{
		Ticker:          b.Ticker,
		AsOf:            b.AsOf,
		TechnicalJSON:   CompactJSON(t),
		FundamentalJSON: CompactJSON(f),
		WeightsJSON:     CompactJSON(w),
	}
	prompt, err := RenderPrompt(PromptCompiler, d)
	if err != nil {
		return nil, err
	}
	text, err := a.inv.Invoke(ctx, prompt, NameCompiler, types.SchemaCompiled)
	if err != nil {
		return nil, err
	}
	return Coerce[types.CompiledScorecard](ctx, NameCompiler, types.SchemaCompiled, text)
}
