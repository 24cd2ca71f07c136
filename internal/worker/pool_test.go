package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkarlovi/babelshot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryTask(t *testing.T) {
	p := Pool{Concurrency: 3}

	results := p.Run(context.Background(), 10,
		func(ctx context.Context, i int) models.TaskResult {
			return models.TaskResult{Language: fmt.Sprintf("lang-%d", i), Variation: i}
		},
		func(i int) models.TaskResult {
			t.Fatalf("task %d should not be cancelled", i)
			return models.TaskResult{}
		},
	)

	require.Len(t, results, 10)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("lang-%d", i), r.Language, "result must land at its task index")
	}
}

func TestPoolRespectsConcurrencyCeiling(t *testing.T) {
	const ceiling = 4
	p := Pool{Concurrency: ceiling}

	var active, peak int64
	results := p.Run(context.Background(), 20,
		func(ctx context.Context, i int) models.TaskResult {
			n := atomic.AddInt64(&active, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return models.TaskResult{Variation: i}
		},
		func(i int) models.TaskResult { return models.TaskResult{} },
	)

	require.Len(t, results, 20)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(ceiling))
}

func TestPoolIsolatesFailures(t *testing.T) {
	p := Pool{Concurrency: 2}

	results := p.Run(context.Background(), 4,
		func(ctx context.Context, i int) models.TaskResult {
			if i == 1 {
				return models.TaskResult{Variation: i, Error: "synthesizer exploded", Reason: models.FailureReasonSynthesis}
			}
			return models.TaskResult{Variation: i, URL: "/generated/ok.png"}
		},
		func(i int) models.TaskResult { return models.TaskResult{} },
	)

	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, "synthesizer exploded", results[1].Error)
}

func TestPoolCancellationFillsRemainingSlots(t *testing.T) {
	p := Pool{Concurrency: 2}
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	results := p.Run(ctx, 6,
		func(ctx context.Context, i int) models.TaskResult {
			// Cancel during the first wave; waves after it must not start.
			once.Do(cancel)
			return models.TaskResult{Variation: i, URL: "/generated/ok.png"}
		},
		func(i int) models.TaskResult {
			return models.TaskResult{Variation: i, Error: "cancelled", Reason: models.FailureReasonCancelled}
		},
	)

	require.Len(t, results, 6)

	// First wave already in flight finishes naturally.
	assert.True(t, results[0].Succeeded())
	assert.True(t, results[1].Succeeded())
	for i := 2; i < 6; i++ {
		assert.Equal(t, models.FailureReasonCancelled, results[i].Reason, "slot %d", i)
	}
}

func TestPoolCancellationDoesNotAbortInFlightTasks(t *testing.T) {
	p := Pool{Concurrency: 2}
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	var liveAfterCancel int64
	results := p.Run(ctx, 4,
		func(taskCtx context.Context, i int) models.TaskResult {
			once.Do(cancel)
			<-ctx.Done()
			// The batch is cancelled but this task is already in flight:
			// its context must stay live so the call can finish.
			if taskCtx.Err() == nil {
				atomic.AddInt64(&liveAfterCancel, 1)
			}
			return models.TaskResult{Variation: i, URL: "/generated/ok.png"}
		},
		func(i int) models.TaskResult {
			return models.TaskResult{Variation: i, Error: "cancelled", Reason: models.FailureReasonCancelled}
		},
	)

	require.Len(t, results, 4)
	assert.Equal(t, int64(2), atomic.LoadInt64(&liveAfterCancel))
	assert.Equal(t, models.FailureReasonCancelled, results[2].Reason)
	assert.Equal(t, models.FailureReasonCancelled, results[3].Reason)
}

func TestPoolZeroConcurrencyDefaultsToSerial(t *testing.T) {
	p := Pool{}

	results := p.Run(context.Background(), 3,
		func(ctx context.Context, i int) models.TaskResult {
			return models.TaskResult{Variation: i}
		},
		func(i int) models.TaskResult { return models.TaskResult{} },
	)

	require.Len(t, results, 3)
}
