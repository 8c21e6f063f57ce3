package pool

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool runs independent per-image jobs concurrently. Jobs share
// no mutable state; the pool only bounds parallelism and honors
// batch-level cancellation.
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	once     sync.Once
	closed   sync.Once
}

// NewWorkerPool creates a worker pool with the specified number of
// workers; zero or negative means one worker per CPU core.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start launches the workers. Idempotent.
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		job()
	}
}

// Submit queues a job. After ctx is cancelled no new jobs are accepted
// and queued-but-unstarted jobs are discarded at dequeue time, so a
// user abort stops the batch without waiting for the whole queue.
// Returns false if the job was rejected.
func (wp *WorkerPool) Submit(ctx context.Context, job func()) bool {
	wp.wg.Add(1)
	wrapped := func() {
		defer wp.wg.Done()
		select {
		case <-ctx.Done():
			return
		default:
		}
		job()
	}

	select {
	case <-ctx.Done():
		wp.wg.Done()
		return false
	case wp.jobQueue <- wrapped:
		return true
	}
}

// Wait blocks until every accepted job has completed or been discarded.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Close shuts down the worker pool. No Submit may follow.
func (wp *WorkerPool) Close() {
	wp.closed.Do(func() {
		close(wp.jobQueue)
	})
}
