package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-api/internal/batch"
	"github.com/atelierhq/atelier-api/internal/domain"
	"github.com/atelierhq/atelier-api/internal/store"
)

// ErrBatchNotRunning indicates a stop request for a batch that has no
// active run; the batch may already be terminal or never existed.
var ErrBatchNotRunning = errors.New("batch is not running")

// BatchService coordinates batch runs: it plans and persists a batch,
// launches the orchestrator in the background, records every task
// transition, and keeps a registry of active runs so callers can stop
// them by ID.
type BatchService struct {
	store        store.BatchStore
	orchestrator *batch.Orchestrator
	logger       *slog.Logger

	mu   sync.Mutex
	runs map[uuid.UUID]*batch.Run
	// wg tracks in-flight runs so Shutdown can drain them.
	wg sync.WaitGroup
}

// StartBatchInput carries everything a new batch run needs.
type StartBatchInput struct {
	PromptText string
	Config     domain.BatchConfig
	Params     batch.Params
}

// NewBatchService creates a BatchService.
func NewBatchService(
	batchStore store.BatchStore,
	orchestrator *batch.Orchestrator,
	logger *slog.Logger,
) (*BatchService, error) {
	if batchStore == nil {
		return nil, errors.New("store cannot be nil")
	}
	if orchestrator == nil {
		return nil, errors.New("orchestrator cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &BatchService{
		store:        batchStore,
		orchestrator: orchestrator,
		logger:       logger,
		runs:         make(map[uuid.UUID]*batch.Run),
	}, nil
}

// StartBatch plans and persists a new batch, then launches its run in
// the background and returns the running batch record immediately.
// The run is detached from the request context: it continues after the
// submitting request returns and stops only via StopBatch or Shutdown.
func (s *BatchService) StartBatch(ctx context.Context, input StartBatchInput) (*domain.Batch, error) {
	plan, err := s.orchestrator.Plan(input.PromptText, input.Config)
	if err != nil {
		return nil, err
	}

	b, err := domain.NewBatch(input.PromptText, input.Params.Model, input.Config)
	if err != nil {
		return nil, err
	}
	b.Total = len(plan.Tasks) * plan.Config.CountPerPrompt
	b.Notice = plan.Notice

	if err := s.store.CreateBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to persist batch: %w", err)
	}
	for _, task := range plan.Tasks {
		if err := s.store.CreateTask(ctx, b.ID, task); err != nil {
			return nil, fmt.Errorf("failed to persist batch task: %w", err)
		}
	}

	run := batch.NewRun(context.Background())
	s.register(b.ID, run)

	s.wg.Add(1)
	go s.execute(run, b, plan, input.Params)

	s.logger.Info("batch started",
		"batch_id", b.ID,
		"tasks", len(plan.Tasks),
		"concurrency", plan.Config.Concurrency,
		"count_per_prompt", plan.Config.CountPerPrompt)
	return b, nil
}

// execute drives one batch run to completion and records the result.
func (s *BatchService) execute(run *batch.Run, b *domain.Batch, plan *batch.Plan, params batch.Params) {
	defer s.wg.Done()
	defer s.unregister(b.ID)

	log := s.logger.With("batch_id", b.ID)

	progress := func(task *domain.BatchTask) {
		// Progress persistence is best-effort; a failed write must not
		// disturb the run.
		if err := s.store.UpdateTask(context.Background(), task); err != nil {
			log.Error("failed to persist task transition",
				"task_id", task.ID,
				"status", task.Status,
				"error", err)
		}
	}

	result := s.orchestrator.Execute(run.Context(), plan, params, progress)

	b.Succeeded = imageCount(result.Tasks)
	if result.Stopped {
		b.Status = domain.BatchStatusStopped
	} else {
		b.Status = domain.BatchStatusCompleted
	}

	if err := s.store.UpdateBatch(context.Background(), b); err != nil {
		log.Error("failed to persist batch result", "error", err)
	}

	log.Info("batch finished",
		"status", b.Status,
		"succeeded_tasks", result.Summary.Succeeded,
		"total_tasks", result.Summary.Total,
		"images", b.Succeeded)
}

// StopBatch requests cancellation of a running batch. Stopping is
// idempotent; repeated calls on the same run are no-ops. Returns
// ErrBatchNotRunning when no active run exists for the ID.
func (s *BatchService) StopBatch(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	run, ok := s.runs[id]
	s.mu.Unlock()

	if !ok {
		// Distinguish "unknown batch" from "already finished".
		if _, err := s.store.GetBatch(ctx, id); err != nil {
			return err
		}
		return ErrBatchNotRunning
	}

	run.Stop()
	s.logger.Info("batch stop requested", "batch_id", id)
	return nil
}

// GetBatch returns a batch and its tasks.
func (s *BatchService) GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, []*domain.BatchTask, error) {
	b, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.store.ListTasks(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return b, tasks, nil
}

// ListBatches returns recent batches, newest first.
func (s *BatchService) ListBatches(ctx context.Context, limit, offset int) ([]*domain.Batch, error) {
	return s.store.ListBatches(ctx, limit, offset)
}

// Shutdown stops all active runs and waits for them to finish, or for
// the context to expire.
func (s *BatchService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, run := range s.runs {
		run.Stop()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *BatchService) register(id uuid.UUID, run *batch.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = run
}

func (s *BatchService) unregister(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
}

// imageCount tallies produced images across terminal tasks.
func imageCount(tasks []*domain.BatchTask) int {
	n := 0
	for _, task := range tasks {
		n += len(task.Images)
	}
	return n
}
