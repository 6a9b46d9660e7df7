// Package queue runs long-running stage jobs on a fixed pool of workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

// ErrStopped is returned by Enqueue after Stop
var ErrStopped = errors.New("worker pool stopped")

// WorkerPool manages a pool of workers processing jobs
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	log         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount int, log zerolog.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		log:         log.With().Str("component", "queue").Logger(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	wp.log.Info().Int("workers", wp.workerCount).Msg("Starting worker pool")
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops accepting jobs and waits for queued jobs to finish or ctx to end
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.stopped {
		wp.stopped = true
		close(wp.jobQueue)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		wp.cancel()
		return ctx.Err()
	}
}

// Enqueue adds a job to the queue, waiting for room until ctx ends
func (wp *WorkerPool) Enqueue(ctx context.Context, job *Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return ErrStopped
	}

	select {
	case wp.jobQueue <- job:
		wp.log.Info().Str("job_id", job.ID).Str("kind", job.Kind).Str("conversation_id", job.ConversationID).Msg("Job enqueued")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending is the number of jobs waiting for a worker
func (wp *WorkerPool) Pending() int {
	return len(wp.jobQueue)
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		wp.process(id, job)
	}
}

// process runs one job, turning a panic into a failed job with an error event
func (wp *WorkerPool) process(workerID int, job *Job) {
	log := wp.log.With().Int("worker", workerID).Str("job_id", job.ID).Str("kind", job.Kind).Logger()
	started := time.Now()

	defer close(job.events)
	defer wp.cleanupTempFiles(job.TempFiles)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("stack", string(debug.Stack())).Msgf("PANIC processing job: %v", r)
			err := fmt.Errorf("worker panic: %v", r)
			job.setStatus(StatusFailed, err)
			job.emit(types.Event{Status: types.StatusError, Message: err.Error()})
		}
	}()

	job.setStatus(StatusProcessing, nil)
	log.Info().Msg("Processing job")

	if err := job.run(wp.ctx, job.emit); err != nil {
		job.setStatus(StatusFailed, err)
		log.Warn().Err(err).Dur("elapsed", time.Since(started)).Msg("Job failed")
		return
	}

	job.setStatus(StatusCompleted, nil)
	log.Info().Dur("elapsed", time.Since(started)).Msg("Job completed")
}

// cleanupTempFiles removes temporary files and folders
func (wp *WorkerPool) cleanupTempFiles(paths []string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			wp.log.Warn().Err(err).Str("path", p).Msg("Failed to cleanup temp file")
		}
	}
}

// Retry calls fn up to attempts times with quadratic backoff between tries
func Retry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt*attempt) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
