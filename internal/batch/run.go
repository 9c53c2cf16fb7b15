package batch

import (
	"context"
	"sync"
)

// Run is the cancellation scope for one logical generation run: one
// single-image call or one batch. Every operation spawned within the run
// shares its context, so firing Stop makes every downstream suspension
// point settle promptly. Stop never terminates remote jobs already
// submitted on the provider side; it only stops the client from
// continuing to wait on them.
type Run struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewRun creates a run scoped under the given parent context.
func NewRun(parent context.Context) *Run {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Run{ctx: ctx, cancel: cancel}
}

// Context returns the run's context. All work belonging to the run must
// be performed under it.
func (r *Run) Context() context.Context {
	return r.ctx
}

// Stop fires the run's cancellation token. It is idempotent: calling it
// twice, or after the run finished, is a no-op.
func (r *Run) Stop() {
	r.once.Do(r.cancel)
}

// Stopped reports whether the token has fired.
func (r *Run) Stopped() bool {
	return r.ctx.Err() != nil
}
