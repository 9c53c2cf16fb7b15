package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atelierhq/atelier-api/internal/domain"
	"github.com/atelierhq/atelier-api/internal/scheduler"
)

// Common orchestrator construction errors.
var (
	ErrNilGenerator = errors.New("generator cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
	ErrNoPrompts    = errors.New("input text contains no prompts")
)

// Generator is the provider-side generation call: it produces one outcome
// per requested image, in request order. Implementations must settle
// promptly on cancellation and must never report success with zero
// produced images.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error)
}

// Optimizer rewrites a prompt before generation. A failed rewrite must
// degrade to the original prompt; the orchestrator never fails a task
// because of it.
type Optimizer interface {
	Optimize(ctx context.Context, prompt string) (string, error)
}

// Saver persists one successfully produced image. It is called once per
// image and must be safe to call repeatedly.
type Saver interface {
	Save(ctx context.Context, img *domain.Image) error
}

// ProgressFunc is invoked after every task lifecycle transition: once
// when the task moves to running, once when it reaches a terminal state.
type ProgressFunc func(task *domain.BatchTask)

// Params carries the per-run generation parameters shared by every task.
// Reference images are resolved once before the run starts and reused
// read-only by all tasks.
type Params struct {
	Model           string
	AspectRatio     string
	Size            string
	OutputFormat    string
	AutoOptimize    bool
	ReferenceImages []*domain.Image
}

// Plan is the prepared shape of a batch run: the surviving tasks, the
// clamped config, and the truncation notice when the image ceiling
// clipped the prompt list.
type Plan struct {
	Tasks  []*domain.BatchTask
	Config domain.BatchConfig
	Notice string
}

// Result reports how a batch run ended. It is always returned, never
// replaced by an error: callers receive partial results plus the tally.
type Result struct {
	Tasks   []*domain.BatchTask
	Summary Summary
	Stopped bool
}

// Orchestrator drives a batch run end to end: it parses prompts, clamps
// configuration, enforces the image ceiling, and executes one unit of
// work per task through the bounded scheduler.
type Orchestrator struct {
	generator Generator
	optimizer Optimizer
	saver     Saver
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator. The optimizer and saver are
// optional collaborators; generator and logger are required.
func NewOrchestrator(
	generator Generator,
	optimizer Optimizer,
	saver Saver,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Orchestrator{
		generator: generator,
		optimizer: optimizer,
		saver:     saver,
		logger:    logger,
	}, nil
}

// Plan parses the input text, clamps the config, and enforces the global
// image ceiling by truncating the number of tasks, never the per-task
// count. Returns ErrNoPrompts when the text contains no usable prompt.
func (o *Orchestrator) Plan(text string, cfg domain.BatchConfig) (*Plan, error) {
	prompts := ParsePrompts(text)
	if len(prompts) == 0 {
		return nil, ErrNoPrompts
	}

	cfg = cfg.Clamped()

	var notice string
	maxPrompts := domain.MaxBatchImages / cfg.CountPerPrompt
	if len(prompts) > maxPrompts {
		notice = fmt.Sprintf(
			"batch truncated to the first %d of %d prompts: %d images per prompt would exceed the %d image limit",
			maxPrompts, len(prompts), cfg.CountPerPrompt, domain.MaxBatchImages,
		)
		prompts = prompts[:maxPrompts]
	}

	tasks := make([]*domain.BatchTask, 0, len(prompts))
	for _, prompt := range prompts {
		task, err := domain.NewBatchTask(prompt)
		if err != nil {
			return nil, fmt.Errorf("failed to build task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return &Plan{Tasks: tasks, Config: cfg, Notice: notice}, nil
}

// Execute runs the plan's tasks under the given context with the plan's
// concurrency bound. One task's failure never aborts its siblings; only
// cancellation halts further dispatch, and tasks that never got to run
// are still driven to a terminal error state carrying the fixed stopped
// message. Execute always returns a result, never an error.
func (o *Orchestrator) Execute(
	ctx context.Context,
	plan *Plan,
	params Params,
	progress ProgressFunc,
) *Result {
	if progress == nil {
		progress = func(*domain.BatchTask) {}
	}

	units := make([]scheduler.Unit[struct{}], len(plan.Tasks))
	for i, task := range plan.Tasks {
		task := task
		units[i] = func(ctx context.Context) (struct{}, error) {
			o.runTask(ctx, task, plan.Config, params, progress)
			return struct{}{}, nil
		}
	}

	results := scheduler.Run(ctx, plan.Config.Concurrency, units)

	// Units the scheduler never dispatched settle with the context
	// error; their tasks must not be left pending forever.
	for i, res := range results {
		task := plan.Tasks[i]
		if res.Err != nil && !task.Terminal() {
			task.Complete(nil, domain.ErrStopped)
			progress(task)
		}
	}

	summary := Summary{Total: len(plan.Tasks)}
	for _, task := range plan.Tasks {
		if task.Status == domain.TaskStatusSuccess {
			summary.Succeeded++
		}
	}

	o.logger.Info("batch run finished",
		"succeeded", summary.Succeeded,
		"total", summary.Total,
		"stopped", ctx.Err() != nil)

	return &Result{
		Tasks:   plan.Tasks,
		Summary: summary,
		Stopped: ctx.Err() != nil,
	}
}

// runTask executes one task: optional prompt optimization, the provider
// generation call, saving produced images, and terminal classification.
func (o *Orchestrator) runTask(
	ctx context.Context,
	task *domain.BatchTask,
	cfg domain.BatchConfig,
	params Params,
	progress ProgressFunc,
) {
	log := o.logger.With("task_id", task.ID)

	task.Start()
	progress(task)

	prompt := task.Prompt
	if params.AutoOptimize && o.optimizer != nil {
		optimized, err := o.optimizer.Optimize(ctx, prompt)
		if err != nil {
			// Optimizer failure must never fail the task.
			log.Warn("prompt optimization failed, using original prompt", "error", err)
		} else if optimized != "" {
			prompt = optimized
		}
	}

	req := domain.GenerationRequest{
		Prompt:          prompt,
		ReferenceImages: params.ReferenceImages,
		Model:           params.Model,
		AspectRatio:     params.AspectRatio,
		Size:            params.Size,
		OutputFormat:    params.OutputFormat,
		Count:           cfg.CountPerPrompt,
	}

	outcomes, err := o.generator.Generate(ctx, req)
	if err != nil {
		task.Complete(nil, normalizeError(err))
		progress(task)
		return
	}

	images := Images(outcomes)
	for _, img := range images {
		if o.saver == nil {
			continue
		}
		if err := o.saver.Save(ctx, img); err != nil {
			// The image was produced; a save failure is logged but does
			// not change the outcome.
			log.Error("failed to save generated image", "image_id", img.ID, "error", err)
		}
	}

	firstErr := FirstError(outcomes)
	if len(images) == 0 {
		if agg := AggregateError(outcomes); agg != nil {
			firstErr = agg
		}
	}

	task.Complete(images, normalizeError(firstErr))
	progress(task)

	log.Info("task finished",
		"status", task.Status,
		"images", len(images),
		"requested", cfg.CountPerPrompt)
}

// normalizeError maps cancellation-shaped errors onto the fixed stopped
// sentinel so user-facing text reads "stopped" rather than "failed".
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsStopped(err) {
		return domain.ErrStopped
	}
	return err
}
