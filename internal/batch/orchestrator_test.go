package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier-api/internal/domain"
)

// mockGenerator returns scripted outcomes keyed by prompt.
type mockGenerator struct {
	mu       sync.Mutex
	fn       func(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error)
	requests []domain.GenerationRequest
}

func (g *mockGenerator) Generate(
	ctx context.Context,
	req domain.GenerationRequest,
) ([]domain.Outcome, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	return g.fn(ctx, req)
}

type mockOptimizer struct {
	fn func(ctx context.Context, prompt string) (string, error)
}

func (o *mockOptimizer) Optimize(ctx context.Context, prompt string) (string, error) {
	return o.fn(ctx, prompt)
}

type mockSaver struct {
	mu    sync.Mutex
	saved []*domain.Image
	err   error
}

func (s *mockSaver) Save(ctx context.Context, img *domain.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, img)
	return nil
}

// progressRecorder captures every reported transition per task.
type progressRecorder struct {
	mu          sync.Mutex
	transitions map[string][]domain.TaskStatus
}

func newProgressRecorder() *progressRecorder {
	return &progressRecorder{transitions: make(map[string][]domain.TaskStatus)}
}

func (p *progressRecorder) record(task *domain.BatchTask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions[task.Prompt] = append(p.transitions[task.Prompt], task.Status)
}

func (p *progressRecorder) statuses(prompt string) []domain.TaskStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TaskStatus(nil), p.transitions[prompt]...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okOutcomes(t *testing.T, n int) []domain.Outcome {
	t.Helper()
	outcomes := make([]domain.Outcome, n)
	for i := range outcomes {
		img, err := domain.NewImage("image/png", []byte{byte(i + 1)})
		require.NoError(t, err)
		outcomes[i] = domain.Outcome{Image: img}
	}
	return outcomes
}

func newTestOrchestrator(t *testing.T, gen Generator, opt Optimizer, saver Saver) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(gen, opt, saver, testLogger())
	require.NoError(t, err)
	return o
}

func TestNewOrchestrator_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewOrchestrator(nil, nil, nil, testLogger())
	assert.ErrorIs(t, err, ErrNilGenerator)

	_, err = NewOrchestrator(&mockGenerator{}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}

func TestOrchestrator_Plan(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, &mockGenerator{}, nil, nil)

	t.Run("single prompt", func(t *testing.T) {
		t.Parallel()

		plan, err := o.Plan("a cat\na dog", domain.BatchConfig{Concurrency: 2, CountPerPrompt: 1})
		require.NoError(t, err)

		require.Len(t, plan.Tasks, 1)
		assert.Equal(t, "a cat\na dog", plan.Tasks[0].Prompt)
		assert.Equal(t, domain.TaskStatusPending, plan.Tasks[0].Status)
		assert.Empty(t, plan.Notice)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		_, err := o.Plan("   ", domain.BatchConfig{})
		assert.ErrorIs(t, err, ErrNoPrompts)
	})

	t.Run("ceiling truncates task count", func(t *testing.T) {
		t.Parallel()

		// 20 prompts at 4 images each: floor(32/4) = 8 tasks survive.
		text := "p0"
		for i := 1; i < 20; i++ {
			text += "\n---\np" + string(rune('0'+i%10))
		}

		plan, err := o.Plan(text, domain.BatchConfig{Concurrency: 4, CountPerPrompt: 4})
		require.NoError(t, err)

		assert.Len(t, plan.Tasks, 8)
		assert.NotEmpty(t, plan.Notice)
		assert.Contains(t, plan.Notice, "8")
		assert.Contains(t, plan.Notice, "20")
	})

	t.Run("config clamped", func(t *testing.T) {
		t.Parallel()

		plan, err := o.Plan("prompt", domain.BatchConfig{Concurrency: -1, CountPerPrompt: 99})
		require.NoError(t, err)
		assert.Equal(t, 1, plan.Config.Concurrency)
		assert.Equal(t, domain.MaxCountPerPrompt, plan.Config.CountPerPrompt)
	})
}

func TestOrchestrator_Execute_PartialImageFailure(t *testing.T) {
	t.Parallel()

	// 4 requested images, exactly 2 succeed: the task is a success that
	// still records the first failure as context.
	firstFailure := errors.New("image 2 rejected")
	gen := &mockGenerator{
		fn: func(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error) {
			ok := okOutcomes(t, 4)
			return []domain.Outcome{
				ok[0],
				{Err: firstFailure},
				ok[2],
				{Err: errors.New("image 4 rejected")},
			}, nil
		},
	}
	saver := &mockSaver{}
	o := newTestOrchestrator(t, gen, nil, saver)

	plan, err := o.Plan("prompt", domain.BatchConfig{Concurrency: 1, CountPerPrompt: 4})
	require.NoError(t, err)

	result := o.Execute(context.Background(), plan, Params{}, nil)

	require.Len(t, result.Tasks, 1)
	task := result.Tasks[0]
	assert.Equal(t, domain.TaskStatusSuccess, task.Status)
	assert.Len(t, task.Images, 2)
	assert.Equal(t, firstFailure.Error(), task.ErrorMessage)
	assert.Equal(t, Summary{Succeeded: 1, Total: 1}, result.Summary)
	assert.False(t, result.Stopped)

	// Every produced image went through the save collaborator.
	assert.Len(t, saver.saved, 2)
}

func TestOrchestrator_Execute_TotalImageFailure(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{
		fn: func(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error) {
			outcomes := make([]domain.Outcome, req.Count)
			for i := range outcomes {
				outcomes[i] = domain.Outcome{Err: errors.New("quota exhausted")}
			}
			return outcomes, nil
		},
	}
	o := newTestOrchestrator(t, gen, nil, nil)

	plan, err := o.Plan("prompt", domain.BatchConfig{Concurrency: 1, CountPerPrompt: 4})
	require.NoError(t, err)

	result := o.Execute(context.Background(), plan, Params{}, nil)

	task := result.Tasks[0]
	assert.Equal(t, domain.TaskStatusError, task.Status)
	assert.Empty(t, task.Images)
	assert.Contains(t, task.ErrorMessage, "quota exhausted")
	assert.NotEqual(t, domain.ErrStopped.Error(), task.ErrorMessage)
	assert.Equal(t, Summary{Succeeded: 0, Total: 1}, result.Summary)
}

func TestOrchestrator_Execute_SequentialMatchesBatch(t *testing.T) {
	t.Parallel()

	// With concurrency=1 and count=1, a batch over M prompts behaves
	// like running each prompt strictly in sequence.
	var mu sync.Mutex
	var seen []string
	gen := &mockGenerator{
		fn: func(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error) {
			mu.Lock()
			seen = append(seen, req.Prompt)
			mu.Unlock()
			return okOutcomes(t, 1), nil
		},
	}
	o := newTestOrchestrator(t, gen, nil, nil)

	plan, err := o.Plan("one\n---\ntwo\n---\nthree", domain.BatchConfig{Concurrency: 1, CountPerPrompt: 1})
	require.NoError(t, err)

	result := o.Execute(context.Background(), plan, Params{}, nil)

	assert.Equal(t, []string{"one", "two", "three"}, seen)
	assert.Equal(t, Summary{Succeeded: 3, Total: 3}, result.Summary)
	for _, task := range result.Tasks {
		assert.Equal(t, domain.TaskStatusSuccess, task.Status)
		assert.Len(t, task.Images, 1)
	}
}

func TestOrchestrator_Execute_CancellationMidRun(t *testing.T) {
	t.Parallel()

	// Five tasks at concurrency 2: cancel once the first two have
	// started. The remaining three must end as error with the fixed
	// stopped message, and Execute must still return normally.
	run := NewRun(context.Background())

	started := make(chan struct{}, 5)
	release := make(chan struct{})
	gen := &mockGenerator{
		fn: func(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error) {
			started <- struct{}{}
			select {
			case <-release:
				return okOutcomes(t, 1), nil
			case <-ctx.Done():
				return []domain.Outcome{{Err: ctx.Err()}}, nil
			}
		},
	}
	o := newTestOrchestrator(t, gen, nil, nil)

	plan, err := o.Plan("a\n---\nb\n---\nc\n---\nd\n---\ne", domain.BatchConfig{Concurrency: 2, CountPerPrompt: 1})
	require.NoError(t, err)

	recorder := newProgressRecorder()
	resultCh := make(chan *Result, 1)
	go func() {
		resultCh <- o.Execute(run.Context(), plan, Params{}, recorder.record)
	}()

	<-started
	<-started
	run.Stop()
	time.Sleep(50 * time.Millisecond)
	close(release)

	result := <-resultCh
	assert.True(t, result.Stopped)
	assert.Equal(t, 5, result.Summary.Total)

	var stoppedTasks int
	for _, task := range result.Tasks {
		assert.True(t, task.Terminal(), "no task may be left pending")
		if task.ErrorMessage == domain.ErrStopped.Error() {
			stoppedTasks++
		}
	}
	assert.GreaterOrEqual(t, stoppedTasks, 3, "undispatched tasks carry the fixed stopped message")
}

func TestOrchestrator_Execute_OptimizerBehavior(t *testing.T) {
	t.Parallel()

	t.Run("rewrite applied when auto mode active", func(t *testing.T) {
		t.Parallel()

		gen := &mockGenerator{
			fn: func(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error) {
				return okOutcomes(t, 1), nil
			},
		}
		opt := &mockOptimizer{
			fn: func(ctx context.Context, prompt string) (string, error) {
				return "optimized: " + prompt, nil
			},
		}
		o := newTestOrchestrator(t, gen, opt, nil)

		plan, err := o.Plan("raw prompt", domain.BatchConfig{Concurrency: 1, CountPerPrompt: 1})
		require.NoError(t, err)

		o.Execute(context.Background(), plan, Params{AutoOptimize: true}, nil)

		require.Len(t, gen.requests, 1)
		assert.Equal(t, "optimized: raw prompt", gen.requests[0].Prompt)
	})

	t.Run("rewrite failure degrades to original prompt", func(t *testing.T) {
		t.Parallel()

		gen := &mockGenerator{
			fn: func(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error) {
				return okOutcomes(t, 1), nil
			},
		}
		opt := &mockOptimizer{
			fn: func(ctx context.Context, prompt string) (string, error) {
				return "", errors.New("optimizer offline")
			},
		}
		o := newTestOrchestrator(t, gen, opt, nil)

		plan, err := o.Plan("raw prompt", domain.BatchConfig{Concurrency: 1, CountPerPrompt: 1})
		require.NoError(t, err)

		result := o.Execute(context.Background(), plan, Params{AutoOptimize: true}, nil)

		require.Len(t, gen.requests, 1)
		assert.Equal(t, "raw prompt", gen.requests[0].Prompt)
		assert.Equal(t, domain.TaskStatusSuccess, result.Tasks[0].Status)
	})

	t.Run("optimizer skipped when auto mode off", func(t *testing.T) {
		t.Parallel()

		gen := &mockGenerator{
			fn: func(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error) {
				return okOutcomes(t, 1), nil
			},
		}
		opt := &mockOptimizer{
			fn: func(ctx context.Context, prompt string) (string, error) {
				t.Error("optimizer must not be called")
				return "", nil
			},
		}
		o := newTestOrchestrator(t, gen, opt, nil)

		plan, err := o.Plan("raw prompt", domain.BatchConfig{Concurrency: 1, CountPerPrompt: 1})
		require.NoError(t, err)

		o.Execute(context.Background(), plan, Params{AutoOptimize: false}, nil)
	})
}

func TestOrchestrator_Execute_ProgressTransitions(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{
		fn: func(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error) {
			return okOutcomes(t, 1), nil
		},
	}
	o := newTestOrchestrator(t, gen, nil, nil)

	plan, err := o.Plan("first\n---\nsecond", domain.BatchConfig{Concurrency: 2, CountPerPrompt: 1})
	require.NoError(t, err)

	recorder := newProgressRecorder()
	o.Execute(context.Background(), plan, Params{}, recorder.record)

	for _, prompt := range []string{"first", "second"} {
		statuses := recorder.statuses(prompt)
		require.Len(t, statuses, 2, "one running and one terminal transition per task")
		assert.Equal(t, domain.TaskStatusRunning, statuses[0])
		assert.Equal(t, domain.TaskStatusSuccess, statuses[1])
	}
}

func TestOrchestrator_Execute_GeneratorErrorFailsOnlyThatTask(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{
		fn: func(ctx context.Context, req domain.GenerationRequest) ([]domain.Outcome, error) {
			if req.Prompt == "bad" {
				return nil, errors.New("provider rejected request")
			}
			return okOutcomes(t, 1), nil
		},
	}
	o := newTestOrchestrator(t, gen, nil, nil)

	plan, err := o.Plan("good\n---\nbad\n---\nalso good", domain.BatchConfig{Concurrency: 3, CountPerPrompt: 1})
	require.NoError(t, err)

	result := o.Execute(context.Background(), plan, Params{}, nil)

	assert.Equal(t, Summary{Succeeded: 2, Total: 3}, result.Summary)
	assert.Equal(t, domain.TaskStatusError, result.Tasks[1].Status)
	assert.Contains(t, result.Tasks[1].ErrorMessage, "provider rejected request")
}
