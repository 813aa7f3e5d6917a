// Package trigger runs document write triggers concurrently, one goroutine
// per delivered event, with a semaphore bounding in-flight invocations.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/houzhh15/mergeq/cmd/server/internal/docstore"
)

const acquireTimeout = 30 * time.Second

// Runner wraps trigger functions for asynchronous delivery. Invocations for
// different events run independently and concurrently with no ordering
// guarantee; each invocation is fully self-contained.
type Runner struct {
	sem *semaphore.Weighted
	log *slog.Logger
	wg  sync.WaitGroup
}

// NewRunner creates a runner allowing at most maxConcurrent in-flight
// invocations.
func NewRunner(maxConcurrent int64, log *slog.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		sem: semaphore.NewWeighted(maxConcurrent),
		log: log,
	}
}

// Async wraps fn so that each event is handled on its own goroutine. The
// wrapped function never blocks the mutating write beyond semaphore
// acquisition; events that cannot acquire a slot within the timeout are
// dropped with an error log rather than stalling the caller further.
func (r *Runner) Async(name string, fn docstore.TriggerFunc) docstore.TriggerFunc {
	return func(_ context.Context, ev docstore.WriteEvent) {
		// Detach from the request context: the trigger outlives the write
		// that caused it.
		acquireCtx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
		if err := r.sem.Acquire(acquireCtx, 1); err != nil {
			cancel()
			r.log.Error("trigger slot acquisition failed",
				"trigger", name,
				"path", ev.Path,
				"error", err,
			)
			return
		}
		cancel()

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer r.sem.Release(1)
			fn(context.Background(), ev)
		}()
	}
}

// Wait blocks until all in-flight invocations complete or the context is
// done. Used for graceful shutdown.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
