package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewWorkerPool_DefaultWorkers(t *testing.T) {
	if pool := NewWorkerPool(0); pool == nil {
		t.Fatal("expected non-nil pool for zero workers")
	}
}

func TestWorkerPool_Submit(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	var counter int
	var mu sync.Mutex

	for i := 0; i < 5; i++ {
		if !pool.Submit(context.Background(), func() {
			mu.Lock()
			counter++
			mu.Unlock()
		}) {
			t.Fatal("Submit rejected job with live context")
		}
	}

	pool.Wait()
	if counter != 5 {
		t.Errorf("counter = %d, want 5", counter)
	}
}

func TestWorkerPool_StartIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Start()
	defer pool.Close()

	var executed atomic.Bool
	pool.Submit(context.Background(), func() { executed.Store(true) })
	pool.Wait()

	if !executed.Load() {
		t.Error("job was not executed")
	}
}

func TestWorkerPool_CancelledSubmitRejected(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if pool.Submit(ctx, func() { t.Error("job ran after cancellation") }) {
		t.Error("Submit accepted job with cancelled context")
	}
	pool.Wait()
}

func TestWorkerPool_QueuedJobsDiscardedOnCancel(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	var ran atomic.Int32

	// Occupy the single worker so further jobs stay queued.
	pool.Submit(ctx, func() {
		close(started)
		<-release
		ran.Add(1)
	})
	<-started
	for i := 0; i < 2; i++ {
		pool.Submit(ctx, func() { ran.Add(1) })
	}

	cancel()
	close(release)
	pool.Wait()

	// Only the in-flight job may have run; the queued ones were
	// discarded at dequeue time.
	if got := ran.Load(); got != 1 {
		t.Errorf("ran = %d jobs, want 1 (in-flight only)", got)
	}
}

func TestWorkerPool_WaitReturnsPromptly(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Close()

	for i := 0; i < 20; i++ {
		pool.Submit(context.Background(), func() {
			time.Sleep(time.Millisecond)
		})
	}

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
	}
}
