// Package optimizer rewrites user prompts into richer image prompts
// using a Gemini text model. Optimization is best-effort: callers keep
// the original prompt when a rewrite fails.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is the text model used for prompt rewriting.
const DefaultModel = "gemini-2.0-flash"

// systemInstruction frames the rewrite. The model must answer with the
// rewritten prompt only, no commentary.
const systemInstruction = `You rewrite short image prompts into detailed, vivid prompts for an
image generation model. Preserve the subject and intent. Add concrete
details about composition, lighting, and style. Respond with the
rewritten prompt only.`

// ErrEmptyAPIKey indicates the optimizer was configured without credentials.
var ErrEmptyAPIKey = errors.New("api key cannot be empty")

type generateFunc func(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error)

// Optimizer rewrites prompts through a text model call.
type Optimizer struct {
	generate generateFunc
	model    string
	logger   *slog.Logger
}

// New creates an Optimizer with a real genai client.
func New(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Optimizer, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Optimizer{
		generate: client.Models.GenerateContent,
		model:    model,
		logger:   logger,
	}, nil
}

// Optimize returns a rewritten version of prompt. An empty model answer
// is an error so the caller falls back to the original prompt.
func (o *Optimizer) Optimize(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(prompt)},
	}}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)},
		},
	}

	resp, err := o.generate(ctx, o.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("prompt rewrite failed: %w", err)
	}

	rewritten := strings.TrimSpace(textOf(resp))
	if rewritten == "" {
		return "", errors.New("prompt rewrite returned no text")
	}

	o.logger.Debug("prompt optimized", "original_len", len(prompt), "rewritten_len", len(rewritten))
	return rewritten, nil
}

// textOf concatenates the text parts of the first candidate.
func textOf(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
