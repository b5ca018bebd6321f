package workers

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrAbandoned is returned by Offload when the caller's context ends
// before the work does. The work itself keeps running to completion and
// its result is discarded.
var ErrAbandoned = errors.New("stopped waiting for background work")

// Workers is a set of jobs started together.
type Workers struct {
	workers []Worker
}

func New(workers ...Worker) *Workers {
	return &Workers{workers: workers}
}

// Add appends jobs to the set.
func (w *Workers) Add(workers ...Worker) {
	w.workers = append(w.workers, workers...)
}

// Run starts every job on its own goroutine and waits for all of them. The
// context passed to the jobs is cancelled as soon as one fails; the first
// error is returned.
func (w *Workers) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, worker := range w.workers {
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	return g.Wait()
}

type result[T any] struct {
	value T
	err   error
}

// Offload runs fn on a new goroutine and waits for it or for ctx, whichever
// comes first. A panic in fn is returned as an error.
func Offload[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	done := make(chan result[T], 1)

	go func() {
		var r result[T]
		defer func() {
			if p := recover(); p != nil {
				r.err = fmt.Errorf("background work panicked: %v", p)
			}
			done <- r
		}()
		r.value, r.err = fn()
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrAbandoned, context.Cause(ctx))
	}
}
