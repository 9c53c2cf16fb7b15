package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ResultsBoundToInputIndex(t *testing.T) {
	t.Parallel()

	// Units complete in roughly reverse order thanks to staggered
	// sleeps; results must still line up with input order.
	const n = 8
	units := make([]Unit[int], n)
	for i := 0; i < n; i++ {
		i := i
		units[i] = func(ctx context.Context) (int, error) {
			time.Sleep(time.Duration(n-i) * 5 * time.Millisecond)
			return i * 10, nil
		}
	}

	results := Run(context.Background(), n, units)

	require.Len(t, results, n)
	for i, res := range results {
		assert.NoError(t, res.Err)
		assert.Equal(t, i*10, res.Value)
	}
}

func TestRun_ConcurrencyBoundRespected(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{1, 2, 4, 8} {
		limit := limit
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			t.Parallel()

			var inFlight, peak int64
			units := make([]Unit[struct{}], 20)
			for i := range units {
				units[i] = func(ctx context.Context) (struct{}, error) {
					cur := atomic.AddInt64(&inFlight, 1)
					for {
						prev := atomic.LoadInt64(&peak)
						if cur <= prev || atomic.CompareAndSwapInt64(&peak, prev, cur) {
							break
						}
					}
					time.Sleep(2 * time.Millisecond)
					atomic.AddInt64(&inFlight, -1)
					return struct{}{}, nil
				}
			}

			results := Run(context.Background(), limit, units)

			assert.Len(t, results, 20)
			assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(limit))
		})
	}
}

func TestRun_SerialWhenLimitOne(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var order []int

	units := make([]Unit[int], 5)
	for i := range units {
		i := i
		units[i] = func(ctx context.Context) (int, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		}
	}

	results := Run(context.Background(), 1, units)

	require.Len(t, results, 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order, "limit 1 must execute strictly in input order")
}

func TestRun_NoFailFast(t *testing.T) {
	t.Parallel()

	failErr := errors.New("unit exploded")
	units := []Unit[string]{
		func(ctx context.Context) (string, error) { return "first", nil },
		func(ctx context.Context) (string, error) { return "", failErr },
		func(ctx context.Context) (string, error) { return "third", nil },
	}

	results := Run(context.Background(), 2, units)

	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Value)
	assert.ErrorIs(t, results[1].Err, failErr)
	assert.Equal(t, "third", results[2].Value)
}

func TestRun_ZeroUnits(t *testing.T) {
	t.Parallel()

	results := Run(context.Background(), 4, []Unit[int]{})
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestRun_LimitClampedToOne(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{0, -3} {
		var inFlight, peak int64
		units := make([]Unit[struct{}], 6)
		for i := range units {
			units[i] = func(ctx context.Context) (struct{}, error) {
				cur := atomic.AddInt64(&inFlight, 1)
				for {
					prev := atomic.LoadInt64(&peak)
					if cur <= prev || atomic.CompareAndSwapInt64(&peak, prev, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return struct{}{}, nil
			}
		}

		results := Run(context.Background(), limit, units)

		assert.Len(t, results, 6)
		assert.EqualValues(t, 1, atomic.LoadInt64(&peak))
	}
}

func TestRun_CancellationStopsDispatch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan int, 10)
	release := make(chan struct{})

	units := make([]Unit[int], 5)
	for i := range units {
		i := i
		units[i] = func(ctx context.Context) (int, error) {
			started <- i
			<-release
			return i, nil
		}
	}

	done := make(chan []Result[int], 1)
	go func() {
		done <- Run(ctx, 2, units)
	}()

	// Wait for the first two units to be dispatched, then fire the
	// token. The in-flight units still hold the semaphore, so the
	// dispatcher can only observe the cancellation; give it a moment to
	// settle the queued units before releasing the in-flight ones.
	<-started
	<-started
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	results := <-done
	require.Len(t, results, 5)

	// The two dispatched units completed normally; the scheduler never
	// cancels units it already started.
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)

	// Everything else settled with the context error without running.
	for i := 2; i < 5; i++ {
		assert.ErrorIs(t, results[i].Err, context.Canceled, "unit %d", i)
	}
}
