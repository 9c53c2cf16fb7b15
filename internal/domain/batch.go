package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the overall state of a batch run.
type BatchStatus string

// Possible batch status values. A batch is "completed" whenever the run
// finished on its own, regardless of how many tasks failed: partial
// failure is reported through the succeeded/total tally, not the status.
const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusStopped   BatchStatus = "stopped"
)

// Batch is one user-initiated run covering one or more prompts.
type Batch struct {
	ID             uuid.UUID   `json:"id"`
	PromptText     string      `json:"prompt_text"`
	Model          string      `json:"model"`
	Status         BatchStatus `json:"status"`
	Concurrency    int         `json:"concurrency"`
	CountPerPrompt int         `json:"count_per_prompt"`
	Succeeded      int         `json:"succeeded"`
	Total          int         `json:"total"`
	// Notice carries the caller-visible truncation message when the
	// prompt list was clipped by the batch image ceiling.
	Notice    string    `json:"notice,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBatch creates a running batch record for the given input text.
// Returns an error if the text is empty.
func NewBatch(promptText, model string, cfg BatchConfig) (*Batch, error) {
	if promptText == "" {
		return nil, ErrEmptyPrompt
	}
	cfg = cfg.Clamped()
	now := time.Now().UTC()
	return &Batch{
		ID:             uuid.New(),
		PromptText:     promptText,
		Model:          model,
		Status:         BatchStatusRunning,
		Concurrency:    cfg.Concurrency,
		CountPerPrompt: cfg.CountPerPrompt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
