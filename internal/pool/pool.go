// Package pool is the bounded worker pool shared by the stream prober and the
// enrichment coordinator. One abstraction, parameterized by size, instead of
// a hand-rolled goroutine fan-out at every call site.
package pool

import (
	"context"
	"sync"
)

// Run executes fn(0..n-1) with at most workers running concurrently. When ctx
// is cancelled, tasks that have not started are skipped; tasks already running
// finish normally. workers <= 1 degrades to a sequential loop (still honoring
// cancellation between tasks).
func Run(ctx context.Context, workers, n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				return
			}
			fn(i)
		}
		return
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}
