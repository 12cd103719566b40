// Package workerpool bounds the client's fire-and-forget background work
// (routing-error refreshes, and any other cooperative async task) to a
// configured concurrency, per spec.md §5: "cooperative asynchronous tasks
// on a shared worker pool (size configured; default small multiple of
// cores)".
package workerpool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool runs submitted tasks on goroutines, capping how many run at once.
// Submission itself never blocks the caller: a saturated pool queues the
// task on its own dispatcher goroutine rather than making Go block.
type Pool struct {
	sem *semaphore.Weighted
}

// New creates a Pool that runs at most size tasks concurrently. size <= 0
// is treated as 1, matching spec.md §5's "small multiple of cores" default
// never meaning "unbounded".
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Go queues fn to run once a slot is free.
func (p *Pool) Go(fn func()) {
	go func() {
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		fn()
	}()
}
