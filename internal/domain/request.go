package domain

// Hard contractual ceilings for a batch run. These are enforced by
// clamping regardless of what the caller requests.
const (
	// MaxBatchImages is the maximum total number of images one batch run
	// may produce. Enforced by truncating the task list, never the
	// per-task count.
	MaxBatchImages = 32

	// MaxConcurrency bounds how many tasks may be in flight at once.
	MaxConcurrency = 8

	// MaxCountPerPrompt bounds how many images one task may request.
	MaxCountPerPrompt = 4
)

// Default batch parameters applied when the caller leaves them unset.
const (
	DefaultConcurrency    = 2
	DefaultCountPerPrompt = 1
)

// GenerationRequest describes one generation call: the prompt, optional
// reference images, and provider parameters. It is immutable once a task
// starts; the orchestrator builds a fresh request per task.
type GenerationRequest struct {
	Prompt          string
	ReferenceImages []*Image
	Model           string
	AspectRatio     string
	Size            string
	OutputFormat    string
	Count           int
}

// BatchConfig holds the caller-tunable batch parameters.
type BatchConfig struct {
	// Concurrency is how many tasks may run at once, clamped to
	// [1, MaxConcurrency].
	Concurrency int

	// CountPerPrompt is how many images each task requests, clamped to
	// [1, MaxCountPerPrompt].
	CountPerPrompt int
}

// Clamped returns a copy of the config with both parameters forced into
// their legal ranges. Zero and negative values clamp to 1; the result is
// always positive.
func (c BatchConfig) Clamped() BatchConfig {
	return BatchConfig{
		Concurrency:    clamp(c.Concurrency, 1, MaxConcurrency),
		CountPerPrompt: clamp(c.CountPerPrompt, 1, MaxCountPerPrompt),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
