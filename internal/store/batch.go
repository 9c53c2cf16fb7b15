package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-api/internal/domain"
)

// BatchStore defines the interface for batch and task persistence.
// Image bytes are not stored here; stores record image metadata only,
// and the actual files live with the configured saver.
type BatchStore interface {
	// CreateBatch saves a new batch record.
	CreateBatch(ctx context.Context, batch *domain.Batch) error

	// GetBatch retrieves a batch by its unique ID.
	// Returns ErrBatchNotFound if the batch does not exist.
	GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error)

	// UpdateBatch saves changes to an existing batch.
	// Returns ErrBatchNotFound if the batch does not exist.
	UpdateBatch(ctx context.Context, batch *domain.Batch) error

	// ListBatches retrieves batches ordered by creation time, newest
	// first. Returns an empty slice when none match.
	ListBatches(ctx context.Context, limit, offset int) ([]*domain.Batch, error)

	// CreateTask saves a new task under the given batch.
	CreateTask(ctx context.Context, batchID uuid.UUID, task *domain.BatchTask) error

	// UpdateTask saves a task's current lifecycle state, including image
	// metadata once the task is terminal.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateTask(ctx context.Context, task *domain.BatchTask) error

	// ListTasks retrieves all tasks of a batch in creation order. Tasks
	// carry image metadata only; Data on returned images is always empty.
	ListTasks(ctx context.Context, batchID uuid.UUID) ([]*domain.BatchTask, error)

	// WithTx returns a BatchStore bound to the provided transaction, so
	// multiple operations can commit atomically.
	WithTx(tx *sql.Tx) BatchStore
}
