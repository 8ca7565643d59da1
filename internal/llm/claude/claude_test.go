package claude

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockiq/internal/llm"
	"stockiq/internal/types"
)

type fakeMessages struct {
	err    error
	text   string
	params []anthropic.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: f.text}},
	}, nil
}

func testBackend(m *fakeMessages) *Backend {
	retry := llm.DefaultRetryPolicy()
	retry.InitialDelay = time.Millisecond
	retry.MaxDelay = time.Millisecond
	return &Backend{messages: m, cfg: Config{Model: DefaultModel, MaxTokens: 1024, Retry: retry}}
}

func TestGenerate(t *testing.T) {
	m := &fakeMessages{text: "## Company Snapshot"}
	events, err := testBackend(m).Generate(context.Background(), types.ModelRequest{
		Analyst:     "analysis_agent",
		Prompt:      "write the report",
		Instruction: "Follow the system prompt exactly.",
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "## Company Snapshot", events[1].Text)
	assert.Equal(t, "analysis_agent", events[1].Author)

	require.Len(t, m.params, 1)
	assert.Equal(t, int64(1024), m.params[0].MaxTokens)
	assert.Equal(t, "Follow the system prompt exactly.", m.params[0].System[0].Text)
}

func TestGenerateNonStatusErrorIsNotRetried(t *testing.T) {
	m := &fakeMessages{err: errors.New("connection reset")}
	_, err := testBackend(m).Generate(context.Background(), types.ModelRequest{Analyst: "score_agent", Prompt: "p"})

	var transport *types.ModelTransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, 1, transport.Attempts)
	assert.Equal(t, 0, transport.StatusCode)
	assert.Len(t, m.params, 1)
}

func TestNewWithoutKey(t *testing.T) {
	b := New(Config{})
	assert.False(t, b.Configured())
	assert.Equal(t, DefaultModel, b.Model())
}
