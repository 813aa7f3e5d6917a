package trigger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/houzhh15/mergeq/cmd/server/internal/docstore"
)

func TestRunnerDeliversConcurrently(t *testing.T) {
	runner := NewRunner(4, slog.Default())

	var calls atomic.Int32
	fn := runner.Async("test", func(_ context.Context, _ docstore.WriteEvent) {
		calls.Add(1)
	})

	for i := 0; i < 10; i++ {
		fn(context.Background(), docstore.WriteEvent{Path: "queues/q/items/i"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := calls.Load(); got != 10 {
		t.Errorf("handled %d events, want 10", got)
	}
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	runner := NewRunner(2, slog.Default())

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	release := make(chan struct{})

	fn := runner.Async("test", func(_ context.Context, _ docstore.WriteEvent) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		<-release

		mu.Lock()
		inFlight--
		mu.Unlock()
	})

	// Deliver from separate goroutines: with the semaphore at capacity,
	// delivery blocks in Acquire until a slot frees up.
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(context.Background(), docstore.WriteEvent{})
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight > 2 {
		t.Errorf("observed %d concurrent invocations, limit is 2", maxInFlight)
	}
}
