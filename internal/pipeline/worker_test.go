package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	mu          sync.Mutex
	ran         []string
	block       chan struct{}
	sawDeadline bool
}

func (r *countingRunner) Run(ctx context.Context, jobID string) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, r.sawDeadline = ctx.Deadline()
	r.ran = append(r.ran, jobID)
	return nil
}

func TestWorkerRunsSubmittedJobs(t *testing.T) {
	runner := &countingRunner{}
	w := NewWorker(runner, PipelineConfig{WorkerCount: 2, QueueSize: 8, JobTimeout: time.Minute}, zerolog.Nop())
	w.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, w.Submit(id))
	}
	w.Stop(context.Background())

	assert.ElementsMatch(t, []string{"a", "b", "c"}, runner.ran)
	assert.True(t, runner.sawDeadline)
	assert.ErrorIs(t, w.Submit("d"), ErrWorkerStopped)
}

func TestWorkerQueueFull(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{})}
	w := NewWorker(runner, PipelineConfig{WorkerCount: 1, QueueSize: 1}, zerolog.Nop())

	// Not started: the single queue slot fills up.
	require.NoError(t, w.Submit("a"))
	assert.ErrorIs(t, w.Submit("b"), ErrQueueFull)

	w.Start(context.Background())
	close(runner.block)
	w.Stop(context.Background())
	assert.Equal(t, []string{"a"}, runner.ran)
}
