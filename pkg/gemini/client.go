// Package gemini wraps the Google Gemini API behind a small completion
// interface used by the normalization engine.
package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

// Client generates completions. The normalization engine only needs
// prompt-in, JSON-out.
type Client interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	Close() error
}

type client struct {
	genai *genai.Client
	model string
}

// NewClient creates a Gemini-backed Client.
func NewClient(ctx context.Context, apiKey, model string) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("gemini: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &client{genai: gc, model: model}, nil
}

// GenerateJSON asks the model for a JSON response and strips any markdown
// fences the model wraps around it.
func (c *client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	model := c.genai.GenerativeModel(c.model)
	// Low temperature keeps field mapping deterministic.
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", eris.Wrap(err, "gemini: generate content")
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

func (c *client) Close() error {
	if c.genai != nil {
		return c.genai.Close()
	}
	return nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", eris.New("gemini: no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", eris.New("gemini: no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", eris.New("gemini: no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

// CleanJSONBlock removes markdown code fence wrappers from JSON output.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
