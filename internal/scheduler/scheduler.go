package scheduler

import (
	"context"
	"sync"
)

// Unit is one independent unit of work. The scheduler is agnostic to what
// a unit does; a unit observes the context itself and is expected to
// settle promptly once the context is cancelled.
type Unit[T any] func(ctx context.Context) (T, error)

// Result pairs a unit's output with the error it settled with. Results
// are always bound to the unit's original input index, never to
// completion order.
type Result[T any] struct {
	Value T
	Err   error
}

// Run dispatches the given units with at most limit logically in flight
// at once. The moment any in-flight unit settles, the next queued unit is
// dispatched, until all units have settled. It returns one result per
// input, by input index, irrespective of completion order.
//
// One unit's failure never cancels its siblings. Cancelling ctx stops
// further dispatch: units already in flight keep running until they
// observe the context themselves, and units never dispatched settle with
// the context's error so the caller can mark them terminal.
//
// A limit below 1 is clamped to 1. Zero units return an empty slice
// without touching the bound.
func Run[T any](ctx context.Context, limit int, units []Unit[T]) []Result[T] {
	if len(units) == 0 {
		return []Result[T]{}
	}
	if limit < 1 {
		limit = 1
	}

	results := make([]Result[T], len(units))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, unit := range units {
		// Once the run is cancelled, everything still queued settles
		// with the context's error instead of being started.
		if err := ctx.Err(); err != nil {
			results[i] = Result[T]{Err: err}
			continue
		}

		select {
		case <-ctx.Done():
			results[i] = Result[T]{Err: ctx.Err()}
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, unit Unit[T]) {
			defer wg.Done()
			defer func() { <-sem }()

			value, err := unit(ctx)
			results[i] = Result[T]{Value: value, Err: err}
		}(i, unit)
	}

	wg.Wait()
	return results
}
