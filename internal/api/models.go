package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-api/internal/domain"
)

// TokenRequest is the body of POST /api/auth/token.
type TokenRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

// TokenResponse carries a freshly issued access token.
type TokenResponse struct {
	Token string `json:"token"`
}

// CreateBatchRequest is the body of POST /api/batches. Zero values for
// the numeric fields fall back to the server defaults, and everything
// is clamped to the engine ceilings.
type CreateBatchRequest struct {
	Prompt         string `json:"prompt" validate:"required"`
	Model          string `json:"model"`
	Concurrency    int    `json:"concurrency" validate:"gte=0"`
	CountPerPrompt int    `json:"count_per_prompt" validate:"gte=0"`
	AspectRatio    string `json:"aspect_ratio"`
	Size           string `json:"size"`
	OutputFormat   string `json:"output_format"`
	AutoOptimize   bool   `json:"auto_optimize"`
	// ReferenceImageURLs are fetched once before the run starts and
	// shared by every task in the batch.
	ReferenceImageURLs []string `json:"reference_image_urls" validate:"max=4,dive,url"`
}

// BatchResponse is the API shape of a batch record.
type BatchResponse struct {
	ID             uuid.UUID `json:"id"`
	Status         string    `json:"status"`
	Model          string    `json:"model,omitempty"`
	Concurrency    int       `json:"concurrency"`
	CountPerPrompt int       `json:"count_per_prompt"`
	Succeeded      int       `json:"succeeded"`
	Total          int       `json:"total"`
	Notice         string    `json:"notice,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BatchDetailResponse is a batch with its tasks.
type BatchDetailResponse struct {
	BatchResponse
	Tasks []TaskResponse `json:"tasks"`
}

// TaskResponse is the API shape of one task within a batch.
type TaskResponse struct {
	ID           uuid.UUID       `json:"id"`
	Prompt       string          `json:"prompt"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Images       []ImageResponse `json:"images,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// ImageResponse is image metadata; the bytes live in the configured
// output directory, keyed by the image ID.
type ImageResponse struct {
	ID        uuid.UUID `json:"id"`
	MIMEType  string    `json:"mime_type"`
	SourceURL string    `json:"source_url,omitempty"`
}

// ListBatchesResponse wraps a page of batches.
type ListBatchesResponse struct {
	Batches []BatchResponse `json:"batches"`
}

func toBatchResponse(b *domain.Batch) BatchResponse {
	return BatchResponse{
		ID:             b.ID,
		Status:         string(b.Status),
		Model:          b.Model,
		Concurrency:    b.Concurrency,
		CountPerPrompt: b.CountPerPrompt,
		Succeeded:      b.Succeeded,
		Total:          b.Total,
		Notice:         b.Notice,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func toTaskResponse(t *domain.BatchTask) TaskResponse {
	resp := TaskResponse{
		ID:           t.ID,
		Prompt:       t.Prompt,
		Status:       string(t.Status),
		ErrorMessage: t.ErrorMessage,
		StartedAt:    t.StartedAt,
		CompletedAt:  t.CompletedAt,
	}
	for _, img := range t.Images {
		if img == nil {
			continue
		}
		resp.Images = append(resp.Images, ImageResponse{
			ID:        img.ID,
			MIMEType:  img.MIMEType,
			SourceURL: img.SourceURL,
		})
	}
	return resp
}
