package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Runner executes one job to completion.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Worker is a fixed pool of goroutines draining a buffered job queue.
type Worker struct {
	runner Runner
	config PipelineConfig
	log    zerolog.Logger

	jobs    chan string
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
}

// NewWorker creates a new job worker pool
func NewWorker(runner Runner, config PipelineConfig, log zerolog.Logger) *Worker {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}

	return &Worker{
		runner: runner,
		config: config,
		log:    log.With().Str("component", "worker").Logger(),
		jobs:   make(chan string, config.QueueSize),
	}
}

// Start launches the pool. Jobs run under a context derived from ctx.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go func(workerID int) {
			defer w.wg.Done()
			for jobID := range w.jobs {
				w.process(ctx, workerID, jobID)
			}
		}(i)
	}

	w.log.Info().Int("workers", w.config.WorkerCount).Int("queue_size", w.config.QueueSize).Msg("worker pool started")
}

func (w *Worker) process(ctx context.Context, workerID int, jobID string) {
	if w.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.JobTimeout)
		defer cancel()
	}

	if err := w.runner.Run(ctx, jobID); err != nil {
		w.log.Error().Err(err).Int("worker", workerID).Str("job_id", jobID).Msg("job failed")
		return
	}
	w.log.Debug().Int("worker", workerID).Str("job_id", jobID).Msg("job finished")
}

// Submit queues a job without blocking.
func (w *Worker) Submit(jobID string) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return ErrWorkerStopped
	}

	select {
	case w.jobs <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new jobs, lets queued ones finish and waits for the pool.
// Running jobs see their context cancelled when ctx expires.
func (w *Worker) Stop(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.jobs)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if w.cancel != nil {
			w.cancel()
		}
		<-done
	}

	if w.cancel != nil {
		w.cancel()
	}
	w.log.Info().Msg("worker pool stopped")
}
