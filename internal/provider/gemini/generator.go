package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/atelierhq/atelier-api/internal/domain"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = "gemini-2.0-flash-exp-image-generation"

// ErrEmptyAPIKey indicates the generator was configured without credentials.
var ErrEmptyAPIKey = errors.New("api key cannot be empty")

// generateFunc is the seam between the generator and the genai SDK,
// overridable in tests.
type generateFunc func(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error)

// Generator implements the provider boundary against the Gemini API.
// Unlike the asynchronous job providers, each call here is synchronous:
// one request per image, issued sequentially within a task.
type Generator struct {
	generate generateFunc
	logger   *slog.Logger
}

// NewGenerator creates a Generator with a real genai client. The context
// is only used for client construction.
func NewGenerator(ctx context.Context, apiKey string, logger *slog.Logger) (*Generator, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Generator{
		generate: client.Models.GenerateContent,
		logger:   logger,
	}, nil
}

// Generate produces one outcome per requested image. Each image is a
// separate model call; a failed call fails only its own outcome, and
// once the context is cancelled the remaining outcomes settle with the
// cancellation error without further calls.
func (g *Generator) Generate(
	ctx context.Context,
	req domain.GenerationRequest,
) ([]domain.Outcome, error) {
	count := req.Count
	if count < 1 {
		count = 1
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	contents := buildContents(req)
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	outcomes := make([]domain.Outcome, count)
	for i := range outcomes {
		if err := ctx.Err(); err != nil {
			outcomes[i] = domain.Outcome{Err: err}
			continue
		}

		img, err := g.generateOne(ctx, model, contents, config)
		if err != nil {
			g.logger.Debug("image call failed", "model", model, "index", i, "error", err)
			outcomes[i] = domain.Outcome{Err: err}
			continue
		}
		outcomes[i] = domain.Outcome{Image: img}
	}

	return outcomes, nil
}

// generateOne issues a single model call and extracts the first inline
// image from the response.
func (g *Generator) generateOne(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*domain.Image, error) {
	resp, err := g.generate(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: response carries no candidates", domain.ErrProtocol)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: generation blocked by safety filter", domain.ErrProvider)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: candidate carries no content", domain.ErrProtocol)
	}

	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil {
			continue
		}
		img, err := domain.NewImage(part.InlineData.MIMEType, part.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: empty inline image in response", domain.ErrProtocol)
		}
		return img, nil
	}

	return nil, fmt.Errorf("%w: response contains no image part", domain.ErrProtocol)
}

// buildContents assembles the request content: reference images first,
// then the prompt text, all in a single user turn.
func buildContents(req domain.GenerationRequest) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.ReferenceImages)+1)
	for _, img := range req.ReferenceImages {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
}
