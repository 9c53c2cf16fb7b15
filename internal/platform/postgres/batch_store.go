package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-api/internal/domain"
	"github.com/atelierhq/atelier-api/internal/platform/logger"
	"github.com/atelierhq/atelier-api/internal/store"
)

// BatchStore implements store.BatchStore against PostgreSQL.
type BatchStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewBatchStore creates a PostgreSQL batch store. The db handle is
// initialized and managed by the caller. A nil logger falls back to
// slog.Default.
func NewBatchStore(db store.DBTX, logger *slog.Logger) *BatchStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchStore{
		db:     db,
		logger: logger.With(slog.String("component", "batch_store")),
	}
}

var _ store.BatchStore = (*BatchStore)(nil)

// WithTx returns a BatchStore bound to the given transaction.
func (s *BatchStore) WithTx(tx *sql.Tx) store.BatchStore {
	return &BatchStore{db: tx, logger: s.logger}
}

// CreateBatch implements store.BatchStore.CreateBatch.
func (s *BatchStore) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO batches
			(id, prompt_text, model, status, concurrency, count_per_prompt,
			 succeeded, total, notice, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		batch.ID,
		batch.PromptText,
		batch.Model,
		batch.Status,
		batch.Concurrency,
		batch.CountPerPrompt,
		batch.Succeeded,
		batch.Total,
		batch.Notice,
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create batch",
			slog.String("error", err.Error()),
			slog.String("batch_id", batch.ID.String()))
		return MapError(err)
	}

	log.Debug("batch created", slog.String("batch_id", batch.ID.String()))
	return nil
}

// GetBatch implements store.BatchStore.GetBatch.
func (s *BatchStore) GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, prompt_text, model, status, concurrency, count_per_prompt,
		       succeeded, total, notice, created_at, updated_at
		FROM batches
		WHERE id = $1
	`

	batch, err := scanBatch(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrBatchNotFound
		}
		log.Error("failed to get batch",
			slog.String("error", err.Error()),
			slog.String("batch_id", id.String()))
		return nil, MapError(err)
	}
	return batch, nil
}

// UpdateBatch implements store.BatchStore.UpdateBatch.
func (s *BatchStore) UpdateBatch(ctx context.Context, batch *domain.Batch) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	batch.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE batches
		SET status = $1, succeeded = $2, total = $3, notice = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(ctx, query,
		batch.Status,
		batch.Succeeded,
		batch.Total,
		batch.Notice,
		batch.UpdatedAt,
		batch.ID,
	)
	if err != nil {
		log.Error("failed to update batch",
			slog.String("error", err.Error()),
			slog.String("batch_id", batch.ID.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrBatchNotFound)
}

// ListBatches implements store.BatchStore.ListBatches.
func (s *BatchStore) ListBatches(ctx context.Context, limit, offset int) ([]*domain.Batch, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, prompt_text, model, status, concurrency, count_per_prompt,
		       succeeded, total, notice, created_at, updated_at
		FROM batches
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		log.Error("failed to list batches", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	batches := []*domain.Batch{}
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, MapError(err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return batches, nil
}

// CreateTask implements store.BatchStore.CreateTask.
func (s *BatchStore) CreateTask(ctx context.Context, batchID uuid.UUID, task *domain.BatchTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO batch_tasks
			(id, batch_id, prompt, status, error_message, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		batchID,
		task.Prompt,
		task.Status,
		task.ErrorMessage,
		task.CreatedAt,
		task.StartedAt,
		task.CompletedAt,
	)
	if err != nil {
		log.Error("failed to create batch task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.String("batch_id", batchID.String()))
		return MapError(err)
	}
	return nil
}

// UpdateTask implements store.BatchStore.UpdateTask. Terminal tasks also
// get their image metadata recorded, one row per produced image.
func (s *BatchStore) UpdateTask(ctx context.Context, task *domain.BatchTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE batch_tasks
		SET status = $1, error_message = $2, started_at = $3, completed_at = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query,
		task.Status,
		task.ErrorMessage,
		task.StartedAt,
		task.CompletedAt,
		task.ID,
	)
	if err != nil {
		log.Error("failed to update batch task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		return err
	}

	if task.Terminal() && len(task.Images) > 0 {
		if err := s.insertImages(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// insertImages records image metadata for a terminal task. ON CONFLICT
// makes repeated updates of the same terminal task safe.
func (s *BatchStore) insertImages(ctx context.Context, task *domain.BatchTask) error {
	query := `
		INSERT INTO batch_images (id, task_id, mime_type, source_url, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	for _, img := range task.Images {
		if img == nil {
			continue
		}
		if _, err := s.db.ExecContext(ctx, query,
			img.ID, task.ID, img.MIMEType, img.SourceURL, img.CreatedAt,
		); err != nil {
			return MapError(err)
		}
	}
	return nil
}

// ListTasks implements store.BatchStore.ListTasks.
func (s *BatchStore) ListTasks(ctx context.Context, batchID uuid.UUID) ([]*domain.BatchTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, prompt, status, error_message, created_at, started_at, completed_at
		FROM batch_tasks
		WHERE batch_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, batchID)
	if err != nil {
		log.Error("failed to list batch tasks",
			slog.String("error", err.Error()),
			slog.String("batch_id", batchID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []*domain.BatchTask{}
	for rows.Next() {
		var task domain.BatchTask
		var status string
		if err := rows.Scan(
			&task.ID,
			&task.Prompt,
			&status,
			&task.ErrorMessage,
			&task.CreatedAt,
			&task.StartedAt,
			&task.CompletedAt,
		); err != nil {
			return nil, MapError(err)
		}
		task.Status = domain.TaskStatus(status)
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	for _, task := range tasks {
		images, err := s.listImages(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		task.Images = images
	}
	return tasks, nil
}

// listImages loads image metadata rows for a task. Data stays empty;
// the bytes live with the file saver, not the database.
func (s *BatchStore) listImages(ctx context.Context, taskID uuid.UUID) ([]*domain.Image, error) {
	query := `
		SELECT id, mime_type, source_url, created_at
		FROM batch_images
		WHERE task_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var images []*domain.Image
	for rows.Next() {
		var img domain.Image
		if err := rows.Scan(&img.ID, &img.MIMEType, &img.SourceURL, &img.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		images = append(images, &img)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return images, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*domain.Batch, error) {
	var batch domain.Batch
	var status string
	if err := row.Scan(
		&batch.ID,
		&batch.PromptText,
		&batch.Model,
		&status,
		&batch.Concurrency,
		&batch.CountPerPrompt,
		&batch.Succeeded,
		&batch.Total,
		&batch.Notice,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	); err != nil {
		return nil, err
	}
	batch.Status = domain.BatchStatus(status)
	return &batch, nil
}
