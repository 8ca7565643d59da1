package analyst

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockiq/internal/types"
)

type fakeBackend struct {
	configured bool
	reply      func(req types.ModelRequest) ([]types.Event, error)
	calls      []types.ModelRequest
}

func (f *fakeBackend) Generate(_ context.Context, req types.ModelRequest) ([]types.Event, error) {
	f.calls = append(f.calls, req)
	return f.reply(req)
}

func (f *fakeBackend) Model() string    { return "fake-model" }
func (f *fakeBackend) Configured() bool { return f.configured }

func replyText(text string) func(types.ModelRequest) ([]types.Event, error) {
	return func(req types.ModelRequest) ([]types.Event, error) {
		return []types.Event{
			{Author: UserAuthor, Text: req.Prompt},
			{Author: req.Analyst, Text: text},
		}, nil
	}
}

const validScorecard = `{"score": 72, "short_term": "Buy", "mid_term": "Buy", "long_term": "Not Buy", "rationale": "Steady uptrend."}`

const validTechnical = `{
  "agent": "technical", "ticker": "AAPL", "as_of": "2026-01-02T00:00:00Z",
  "score": 90, "confidence": 0.9, "signal": "strong_buy",
  "timeframes": {
    "short_term": {"trend": "up", "notes": "higher highs"},
    "medium_term": {"trend": "up", "notes": "above 50d"},
    "long_term": {"trend": "sideways", "notes": "range"}
  },
  "key_levels": {"support": [170, 165], "resistance": [190, 195]},
  "reasons": ["Strong momentum", "Volume confirms breakout", "Above moving averages"],
  "risks": ["Overbought RSI"]
}`

func TestExtractFinalTextPicksLatestQualifyingEvent(t *testing.T) {
	events := []types.Event{
		{Author: UserAuthor, Text: "prompt text"},
		{Author: "score_agent", Text: "  final answer  "},
		{Author: "score_agent", Partial: true, Text: "streaming chunk"},
	}
	assert.Equal(t, "final answer", ExtractFinalText(events))
}

func TestExtractFinalTextSkipsBlankAndUser(t *testing.T) {
	events := []types.Event{
		{Author: "agent", Text: "first"},
		{Author: "agent", Text: "   \n"},
		{Author: UserAuthor, Text: "echo"},
	}
	assert.Equal(t, "first", ExtractFinalText(events))
	assert.Equal(t, "", ExtractFinalText(nil))
	assert.Equal(t, "", ExtractFinalText([]types.Event{{Author: UserAuthor, Text: "only user"}}))
}

func TestCoerceStrict(t *testing.T) {
	sc, err := Coerce[types.Scorecard](context.Background(), NameScore, types.SchemaScorecard, validScorecard)
	require.NoError(t, err)
	assert.Equal(t, 72, sc.Score)
	assert.Equal(t, "Not Buy", sc.LongTerm)
}

func TestCoerceRecoversProseWrappedObject(t *testing.T) {
	text := "Here is the scorecard you asked for:\n```json\n" + validScorecard + "\n```\nLet me know."
	sc, err := Coerce[types.Scorecard](context.Background(), NameScore, types.SchemaScorecard, text)
	require.NoError(t, err)
	assert.Equal(t, 72, sc.Score)
	assert.Equal(t, "Buy", sc.ShortTerm)
}

func TestCoerceNestedSchema(t *testing.T) {
	tc, err := Coerce[types.TechnicalScorecard](context.Background(), NameTechnical, types.SchemaTechnical, validTechnical)
	require.NoError(t, err)
	assert.Equal(t, types.StrongBuy, tc.Signal)
	assert.Equal(t, []float64{170, 165}, tc.KeyLevels.Support)
	assert.Equal(t, "sideways", tc.Timeframes.LongTerm.Trend)
}

func TestCoerceRejections(t *testing.T) {
	cases := map[string]string{
		"not json":         "I think it's a buy.",
		"missing key":      `{"score": 72, "short_term": "Buy", "mid_term": "Buy", "long_term": "Buy"}`,
		"extra key":        `{"score": 72, "short_term": "Buy", "mid_term": "Buy", "long_term": "Buy", "rationale": "x", "extra": 1}`,
		"score too high":   `{"score": 101, "short_term": "Buy", "mid_term": "Buy", "long_term": "Buy", "rationale": "x"}`,
		"bad enum":         `{"score": 50, "short_term": "Hold", "mid_term": "Buy", "long_term": "Buy", "rationale": "x"}`,
		"null value":       `{"score": 50, "short_term": "Buy", "mid_term": "Buy", "long_term": "Buy", "rationale": null}`,
		"wrong key casing": `{"Score": 50, "short_term": "Buy", "mid_term": "Buy", "long_term": "Buy", "rationale": "x"}`,
		"fractional score": `{"score": 50.5, "short_term": "Buy", "mid_term": "Buy", "long_term": "Buy", "rationale": "x"}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Coerce[types.Scorecard](context.Background(), NameScore, types.SchemaScorecard, text)
			require.Error(t, err)
			var rfe *types.ResponseFormatError
			require.True(t, errors.As(err, &rfe))
			assert.Equal(t, NameScore, rfe.Analyst)
			assert.Equal(t, types.SchemaScorecard, rfe.Schema)
		})
	}
}

func TestCoerceArrayBounds(t *testing.T) {
	tooFewReasons := strings.Replace(validTechnical,
		`"reasons": ["Strong momentum", "Volume confirms breakout", "Above moving averages"]`,
		`"reasons": ["Strong momentum"]`, 1)
	_, err := Coerce[types.TechnicalScorecard](context.Background(), NameTechnical, types.SchemaTechnical, tooFewReasons)
	assert.Error(t, err)

	oneSupport := strings.Replace(validTechnical, `"support": [170, 165]`, `"support": [170]`, 1)
	_, err = Coerce[types.TechnicalScorecard](context.Background(), NameTechnical, types.SchemaTechnical, oneSupport)
	assert.Error(t, err)

	nestedExtra := strings.Replace(validTechnical, `"notes": "range"`, `"notes": "range", "strength": 3`, 1)
	_, err = Coerce[types.TechnicalScorecard](context.Background(), NameTechnical, types.SchemaTechnical, nestedExtra)
	assert.Error(t, err)
}

func TestInvokeRequiresCredential(t *testing.T) {
	backend := &fakeBackend{configured: false, reply: replyText("unused")}
	_, err := NewInvoker(backend).Invoke(context.Background(), "prompt", NameScore, types.SchemaScorecard)
	require.ErrorIs(t, err, types.ErrMissingCredential)
	assert.Empty(t, backend.calls)
}

func TestInvokeEmptyResponse(t *testing.T) {
	backend := &fakeBackend{configured: true, reply: replyText("   ")}
	_, err := NewInvoker(backend).Invoke(context.Background(), "prompt", NameScore, types.SchemaScorecard)
	require.ErrorIs(t, err, types.ErrEmptyResponse)
	assert.Len(t, backend.calls, 1)
}

func TestInvokePassesBackendErrorThrough(t *testing.T) {
	transport := &types.ModelTransportError{Analyst: NameScore, Model: "fake-model", Attempts: 5, Err: errors.New("503")}
	backend := &fakeBackend{configured: true, reply: func(types.ModelRequest) ([]types.Event, error) {
		return nil, transport
	}}
	_, err := NewInvoker(backend).Invoke(context.Background(), "prompt", NameScore, types.SchemaScorecard)
	assert.Same(t, transport, err)
}

func TestInvokeBuildsRequest(t *testing.T) {
	backend := &fakeBackend{configured: true, reply: replyText("ok")}
	text, err := NewInvoker(backend).Invoke(context.Background(), "the prompt", NameTechnical, types.SchemaTechnical)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	require.Len(t, backend.calls, 1)
	req := backend.calls[0]
	assert.Equal(t, "the prompt", req.Prompt)
	assert.Equal(t, "fake-model", req.Model)
	assert.Equal(t, Instruction, req.Instruction)
	assert.Equal(t, types.SchemaTechnical, req.Schema)
}

func TestAnalystsScoreAndTechnical(t *testing.T) {
	backend := &fakeBackend{configured: true, reply: func(req types.ModelRequest) ([]types.Event, error) {
		switch req.Schema {
		case types.SchemaScorecard:
			return replyText("Sure! " + validScorecard)(req)
		default:
			return replyText(validTechnical)(req)
		}
	}}
	a := New(NewInvoker(backend))
	b := Briefing{
		Ticker: "AAPL",
		AsOf:   "2026-01-02T00:00:00Z",
		Snapshot: &types.MarketSnapshot{
			Company: map[string]any{"name": "Apple Inc."},
			Bars:    []types.Bar{{Time: 1735776000000, Close: 180}},
		},
		Metrics:    types.MetricsBundle{"last_close": 180},
		Indicators: types.Indicators{"rsi_14": 61.5},
	}

	sc, err := a.Score(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 72, sc.Score)

	tc, err := a.Technical(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 90, tc.Score)

	require.Len(t, backend.calls, 2)
	assert.Contains(t, backend.calls[0].Prompt, `Company Info (JSON): {"name":"Apple Inc."}`)
	assert.Contains(t, backend.calls[0].Prompt, `Metrics (JSON): {"last_close":180}`)
	assert.Contains(t, backend.calls[1].Prompt, `"close":180`)
	assert.Contains(t, backend.calls[1].Prompt, `Indicators (JSON): {"rsi_14":61.5}`)
}

func TestRenderPromptSlots(t *testing.T) {
	out, err := RenderPrompt(PromptFundamental, PromptData{
		Ticker:         "MSFT",
		AsOf:           "2026-01-02T00:00:00Z",
		CompanyJSON:    "{}",
		FinancialsJSON: "{}",
		MetricsJSON:    `{"pe_ratio":30}`,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Ticker: MSFT\n")
	assert.Contains(t, out, "As Of (UTC): 2026-01-02T00:00:00Z\n")
	assert.Contains(t, out, `Metrics (JSON): {"pe_ratio":30}`)
	assert.Contains(t, out, `"agent": "fundamental"`)

	narrative, err := RenderPrompt(PromptNarrative, PromptData{Ticker: "MSFT"})
	require.NoError(t, err)
	assert.NotContains(t, narrative, "Recent Headlines")

	_, err = RenderPrompt("nope", PromptData{})
	assert.Error(t, err)
}

func TestPriceSummary(t *testing.T) {
	assert.Equal(t, "No recent price aggregates available.", PriceSummary(nil))
	bars := []types.Bar{
		{Time: 1735776000000, Close: 180.5}, // 2025-01-02
		{Time: 1735862400000, Close: 182},   // 2025-01-03
	}
	assert.Equal(t, "From 2025-01-02 to 2025-01-03, close moved from 180.5 to 182.", PriceSummary(bars))
}

func TestCompactJSONNilMaps(t *testing.T) {
	var m map[string]float64
	assert.Equal(t, "{}", CompactJSON(m))
	assert.Equal(t, "{}", CompactJSON(nil))
	assert.Equal(t, `["a"]`, CompactJSON([]string{"a"}))
}
