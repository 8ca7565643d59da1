// Package claude runs analyst requests against the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"stockiq/internal/interfaces"
	"stockiq/internal/llm"
	"stockiq/internal/types"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 4096
)

type messageCreator interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
	Retry       llm.RetryPolicy
}

// Backend sends one user message per request. Claude has no response schema
// option here, so the prompt's embedded schema is the only constraint.
type Backend struct {
	messages messageCreator
	cfg      Config
}

var _ interfaces.ModelBackend = (*Backend)(nil)

// New builds a backend. CLAUDE_API_ENDPOINT overrides the API base URL for
// proxies. The SDK's own retries are disabled so the shared policy applies.
func New(cfg Config) *Backend {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	b := &Backend{cfg: cfg}
	if cfg.APIKey == "" {
		return b
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		opts = append(opts, option.WithBaseURL(ep))
	}
	client := anthropic.NewClient(opts...)
	b.messages = &client.Messages
	return b
}

func (b *Backend) Model() string { return b.cfg.Model }

func (b *Backend) Configured() bool { return b.messages != nil }

func (b *Backend) Generate(ctx context.Context, req types.ModelRequest) ([]types.Event, error) {
	model := req.Model
	if model == "" {
		model = b.cfg.Model
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: b.cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if b.cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(b.cfg.Temperature)
	}
	if req.Instruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instruction}}
	}

	var resp *anthropic.Message
	attempts, err := b.cfg.Retry.Do(ctx, req.Analyst, StatusCode, func(ctx context.Context) error {
		r, err := b.messages.New(ctx, params)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, &types.ModelTransportError{
			Analyst:    req.Analyst,
			Model:      model,
			StatusCode: StatusCode(err),
			Attempts:   attempts,
			Err:        err,
		}
	}

	out := []types.Event{{Author: "user", Text: req.Prompt}}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out = append(out, types.Event{Author: req.Analyst, Text: text.String()})
	return out, nil
}

// StatusCode returns the HTTP status carried by an Anthropic API error, or 0.
func StatusCode(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.StatusCode
	}
	return 0
}
