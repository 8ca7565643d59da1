package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"stockiq/internal/llm"
	"stockiq/internal/types"
)

type fakeModels struct {
	errs    []error
	text    string
	calls   int
	configs []*genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.configs = append(f.configs, cfg)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: genai.RoleModel,
				Parts: []*genai.Part{
					{Text: "thinking...", Thought: true},
					{Text: f.text},
				},
			},
		}},
	}, nil
}

func testBackend(models *fakeModels) *Backend {
	retry := llm.DefaultRetryPolicy()
	retry.InitialDelay = time.Millisecond
	retry.MaxDelay = time.Millisecond
	return &Backend{models: models, cfg: Config{Model: DefaultModel, Retry: retry}}
}

func TestGenerateReturnsFinalEvent(t *testing.T) {
	models := &fakeModels{text: `{"score": 50}`}
	events, err := testBackend(models).Generate(context.Background(), types.ModelRequest{
		Analyst: "score_agent",
		Prompt:  "p",
		Schema:  types.SchemaScorecard,
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "user", events[0].Author)
	assert.Equal(t, "score_agent", events[1].Author)
	assert.Equal(t, `{"score": 50}`, events[1].Text)

	cfg := models.configs[0]
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.ResponseSchema)
	assert.Equal(t, genai.TypeObject, cfg.ResponseSchema.Type)
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	models := &fakeModels{
		errs: []error{genai.APIError{Code: 503, Message: "overloaded"}, genai.APIError{Code: 429}},
		text: "done",
	}
	events, err := testBackend(models).Generate(context.Background(), types.ModelRequest{Analyst: "analysis_agent", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 3, models.calls)
	assert.Equal(t, "done", events[len(events)-1].Text)
	assert.Nil(t, models.configs[0].ResponseSchema)
}

func TestGenerateWrapsPermanentFailure(t *testing.T) {
	models := &fakeModels{errs: []error{genai.APIError{Code: 400, Message: "bad request"}}}
	_, err := testBackend(models).Generate(context.Background(), types.ModelRequest{Analyst: "score_agent", Prompt: "p"})

	var transport *types.ModelTransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, 400, transport.StatusCode)
	assert.Equal(t, 1, transport.Attempts)
	assert.Equal(t, 1, models.calls)
}

func TestNewWithoutKeyIsUnconfigured(t *testing.T) {
	b, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.False(t, b.Configured())
	assert.Equal(t, DefaultModel, b.Model())
}

func TestSchemaForTechnical(t *testing.T) {
	s := SchemaFor(types.SchemaTechnical)
	require.NotNil(t, s)
	assert.Contains(t, s.Required, "key_levels")

	score := s.Properties["score"]
	assert.Equal(t, genai.TypeInteger, score.Type)
	assert.Equal(t, 0.0, *score.Minimum)
	assert.Equal(t, 100.0, *score.Maximum)

	assert.Equal(t, []string{"technical"}, s.Properties["agent"].Enum)
	assert.Equal(t, []string{"strong_buy", "buy", "neutral", "sell", "strong_sell"}, s.Properties["signal"].Enum)

	support := s.Properties["key_levels"].Properties["support"]
	assert.Equal(t, genai.TypeArray, support.Type)
	assert.Equal(t, int64(2), *support.MinItems)
	assert.Equal(t, int64(2), *support.MaxItems)

	reasons := s.Properties["reasons"]
	assert.Equal(t, int64(3), *reasons.MinItems)
	assert.Equal(t, int64(6), *reasons.MaxItems)

	assert.Nil(t, SchemaFor(types.SchemaNone))
}

func TestOneOfValuesQuoted(t *testing.T) {
	assert.Equal(t, []string{"Buy", "Not Buy"}, oneOfValues("'Buy' 'Not Buy'"))
	assert.Equal(t, []string{"up", "down", "sideways"}, oneOfValues("up down sideways"))
}
