// Package workers runs database work off the caller's goroutine.
//
// Workers runs a set of independent jobs concurrently and waits for all of
// them, the way the CLI opens both merge inputs at once. Offload moves one
// CPU-bound call (a KDF-heavy open or save) to a background goroutine so
// that the caller can stop waiting when its context is done.
package workers

import "context"

// Worker is one unit of background work.
//
// Example implementation:
//
//	type openWorker struct{ path string }
//
//	func (w *openWorker) Run(ctx context.Context) error {
//	    // open the database at w.path
//	}
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context) error

func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}
