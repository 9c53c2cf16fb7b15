package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a batch task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusError   TaskStatus = "error"
)

// BatchTask is the unit of work for one prompt within a batch run. It is
// created at batch start in the pending state and mutated only by the
// orchestrator. A task is terminal in success when at least one of its
// requested images was produced; ErrorMessage still records the first
// observed failure as context even on success.
type BatchTask struct {
	ID           uuid.UUID  `json:"id"`
	Prompt       string     `json:"prompt"`
	Status       TaskStatus `json:"status"`
	Images       []*Image   `json:"images,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewBatchTask creates a pending task for the given prompt.
// Returns an error if the prompt is empty.
func NewBatchTask(prompt string) (*BatchTask, error) {
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	return &BatchTask{
		ID:        uuid.New(),
		Prompt:    prompt,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Start transitions the task to running and records the start time.
func (t *BatchTask) Start() {
	now := time.Now().UTC()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// Complete transitions the task to its terminal state. Success requires
// at least one produced image; firstErr, when non-nil, is recorded as the
// task's error message either way.
func (t *BatchTask) Complete(images []*Image, firstErr error) {
	now := time.Now().UTC()
	t.CompletedAt = &now
	t.Images = images
	if firstErr != nil {
		t.ErrorMessage = firstErr.Error()
	}
	if len(images) > 0 {
		t.Status = TaskStatusSuccess
	} else {
		t.Status = TaskStatusError
	}
}

// Terminal reports whether the task has reached a terminal state.
func (t *BatchTask) Terminal() bool {
	return t.Status == TaskStatusSuccess || t.Status == TaskStatusError
}

// IsValidTaskStatus checks if the given status is a known TaskStatus.
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSuccess, TaskStatusError:
		return true
	default:
		return false
	}
}
