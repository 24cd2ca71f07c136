package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dkarlovi/babelshot/internal/models"
)

// Pool executes generation tasks in waves of at most Concurrency, with an
// optional cooldown between full waves to stay under downstream rate limits.
// Task failures are isolated; the pool only returns once every task has
// produced exactly one result.
type Pool struct {
	Concurrency  int
	WaveCooldown time.Duration // 0 disables the pause between waves
}

// Run dispatches n tasks in list order. Completion order within a wave is
// unconstrained; results land at their task's index regardless. If ctx is
// cancelled, in-flight tasks finish naturally but no further wave starts;
// undispatched tasks get cancellation results so no slot is ever empty.
func (p Pool) Run(ctx context.Context, n int, run func(ctx context.Context, i int) models.TaskResult, cancelled func(i int) models.TaskResult) []models.TaskResult {
	concurrency := p.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]models.TaskResult, n)

	// Dispatched tasks run to completion even when the batch is cancelled;
	// only wave dispatch and the cooldown observe ctx.
	taskCtx := context.WithoutCancel(ctx)

	for start := 0; start < n; start += concurrency {
		if ctx.Err() != nil {
			for i := start; i < n; i++ {
				results[i] = cancelled(i)
			}
			log.Printf("[Pool] Cancelled before wave at task %d/%d", start, n)
			return results
		}

		end := start + concurrency
		if end > n {
			end = n
		}

		log.Printf("[Pool] Processing wave %d of %d (%d tasks)...",
			start/concurrency+1, (n+concurrency-1)/concurrency, end-start)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = run(taskCtx, i)
			}(i)
		}
		wg.Wait()

		if end < n && p.WaveCooldown > 0 {
			select {
			case <-ctx.Done():
				// Next loop iteration hands out cancellation results.
			case <-time.After(p.WaveCooldown):
			}
		}
	}

	return results
}
