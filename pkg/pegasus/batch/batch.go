// Package batch implements the two batch flavors of spec.md §4.7:
// fail-fast (batch*) and tolerant (batch*2), both fanning independent
// operations out concurrently over the same underlying single-shot engine.
package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Item is one independent unit of work in a batch: it returns its own
// typed result boxed as interface{} so callers can unbox per call site.
type Item func(ctx context.Context) (interface{}, error)

// FailFast runs every item concurrently and returns their results in the
// same order as items. If any item fails, the first error to be returned
// (in completion order, not item index) is returned, the context passed to
// the remaining items is cancelled, and the overall result is nil
// (spec.md §4.7: "batch*").
func FailFast(ctx context.Context, items []Item) ([]interface{}, error) {
	results := make([]interface{}, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := item(gctx)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Result is one item's outcome in a Tolerant batch.
type Result struct {
	Value interface{}
	Err   error
}

// Tolerant runs every item concurrently, filling a parallel results vector
// with success or per-item error, and returns the count of failures
// (spec.md §4.7: "batch*2"). It never returns a top-level error: per-item
// failures are reported positionally.
func Tolerant(ctx context.Context, items []Item) ([]Result, int) {
	results := make([]Result, len(items))
	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		i, item := i, item
		go func() {
			defer wg.Done()
			v, err := item(ctx)
			results[i] = Result{Value: v, Err: err}
		}()
	}
	wg.Wait()

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
		}
	}
	return results, failures
}
