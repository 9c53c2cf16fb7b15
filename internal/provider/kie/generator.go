package kie

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atelierhq/atelier-api/internal/domain"
)

// Generator implements the provider boundary on top of the asynchronous
// job client: one generation call submits one job for the requested
// image count, waits for a terminal state, and materializes every result
// URL into an inline image.
type Generator struct {
	client *Client
	logger *slog.Logger
}

// NewGenerator creates a Generator backed by the given client.
func NewGenerator(client *Client, logger *slog.Logger) (*Generator, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Generator{client: client, logger: logger}, nil
}

// Generate submits a job and converts its results into one outcome per
// requested image. Job-level failures (create, poll, provider fail
// state) fail every outcome with the same cause; materialization
// failures fail only the affected image.
func (g *Generator) Generate(
	ctx context.Context,
	req domain.GenerationRequest,
) ([]domain.Outcome, error) {
	count := req.Count
	if count < 1 {
		count = 1
	}
	outcomes := make([]domain.Outcome, count)

	urls, err := g.runJob(ctx, req, count)
	if err != nil {
		for i := range outcomes {
			outcomes[i] = domain.Outcome{Err: err}
		}
		return outcomes, nil
	}

	for i := range outcomes {
		if i >= len(urls) {
			outcomes[i] = domain.Outcome{
				Err: fmt.Errorf("%w: job returned %d of %d requested images", domain.ErrProtocol, len(urls), count),
			}
			continue
		}
		img, err := g.client.Materialize(ctx, urls[i])
		if err != nil {
			outcomes[i] = domain.Outcome{Err: err}
			continue
		}
		outcomes[i] = domain.Outcome{Image: img}
	}

	return outcomes, nil
}

// runJob drives one job through the submit-and-poll cycle.
func (g *Generator) runJob(
	ctx context.Context,
	req domain.GenerationRequest,
	count int,
) ([]string, error) {
	jobID, err := g.client.CreateJob(ctx, req.Model, buildJobInput(req, count))
	if err != nil {
		return nil, err
	}

	g.logger.Debug("waiting for remote job", "job_id", jobID, "count", count)
	return g.client.WaitForTerminal(ctx, jobID)
}

// buildJobInput shapes the provider's input document from the request.
// Reference images travel inline as data URLs; they were resolved once
// per run and are shared read-only across tasks.
func buildJobInput(req domain.GenerationRequest, count int) map[string]any {
	input := map[string]any{
		"prompt":     req.Prompt,
		"num_images": count,
	}
	if req.AspectRatio != "" {
		input["aspect_ratio"] = req.AspectRatio
	}
	if req.Size != "" {
		input["image_size"] = req.Size
	}
	if req.OutputFormat != "" {
		input["output_format"] = req.OutputFormat
	}
	if len(req.ReferenceImages) > 0 {
		refs := make([]string, 0, len(req.ReferenceImages))
		for _, img := range req.ReferenceImages {
			refs = append(refs, fmt.Sprintf("data:%s;base64,%s",
				img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)))
		}
		input["image_urls"] = refs
	}
	return input
}
