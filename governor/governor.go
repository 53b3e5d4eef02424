// Package governor provides the bounded-parallelism executor behind every
// batch tool. It is a pure scheduling utility: no state survives a call.
package governor

import (
	"context"
	"fmt"
	"sync"
)

// Outcome is one item's slot in a batch result. Slots are ordered by input
// index regardless of completion order.
type Outcome[T any] struct {
	Index int
	Value T
	Err   error
}

// Map runs worker over items with at most maxConcurrent invocations in
// flight. A worker error or panic lands in that item's Outcome without
// cancelling or delaying the others. maxConcurrent below 1 is treated as 1.
func Map[In, Out any](ctx context.Context, items []In, maxConcurrent int, worker func(context.Context, In) (Out, error)) []Outcome[Out] {
	results := make([]Outcome[Out], len(items))
	if len(items) == 0 {
		return results
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if maxConcurrent > len(items) {
		maxConcurrent = len(items)
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, in In) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = runOne(ctx, idx, in, worker)
		}(i, item)
	}

	wg.Wait()
	return results
}

// runOne executes one worker call, converting a panic into the slot's error
// so a misbehaving item cannot take the whole batch down.
func runOne[In, Out any](ctx context.Context, idx int, in In, worker func(context.Context, In) (Out, error)) (out Outcome[Out]) {
	out.Index = idx
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	out.Value, out.Err = worker(ctx, in)
	return out
}
