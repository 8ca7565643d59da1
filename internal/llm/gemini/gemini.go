// Package gemini runs analyst requests against the Gemini API.
package gemini

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"stockiq/internal/interfaces"
	"stockiq/internal/llm"
	"stockiq/internal/types"
)

const DefaultModel = "gemini-2.5-flash-lite"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
	Retry       llm.RetryPolicy
}

type Backend struct {
	models contentGenerator
	cfg    Config
}

var _ interfaces.ModelBackend = (*Backend)(nil)

// New builds a backend. An empty API key yields an unconfigured backend that
// the invoker refuses to call.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	b := &Backend{cfg: cfg}
	if cfg.APIKey == "" {
		return b, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	b.models = client.Models
	return b, nil
}

func (b *Backend) Model() string { return b.cfg.Model }

func (b *Backend) Configured() bool { return b.models != nil }

func (b *Backend) Generate(ctx context.Context, req types.ModelRequest) ([]types.Event, error) {
	config := &genai.GenerateContentConfig{}
	if b.cfg.Temperature > 0 {
		config.Temperature = genai.Ptr(b.cfg.Temperature)
	}
	if b.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = b.cfg.MaxTokens
	}
	if req.Instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instruction, genai.RoleUser)
	}
	if schema := SchemaFor(req.Schema); schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	model := req.Model
	if model == "" {
		model = b.cfg.Model
	}

	var resp *genai.GenerateContentResponse
	attempts, err := b.cfg.Retry.Do(ctx, req.Analyst, StatusCode, func(ctx context.Context) error {
		r, err := b.models.GenerateContent(ctx, model, contents, config)
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
	return events(req, resp), nil
}

func events(req types.ModelRequest, resp *genai.GenerateContentResponse) []types.Event {
	out := []types.Event{{Author: "user", Text: req.Prompt}}
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
		out = append(out, types.Event{Author: req.Analyst, Text: sb.String()})
	}
	return out
}

// StatusCode returns the HTTP status carried by a Gemini API error, or 0.
func StatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}
