package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

// Job status values
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Emit delivers one progress event of a running job
type Emit func(types.Event)

// RunFunc is the work of a job. Progress goes through emit; the returned
// error fails the job.
type RunFunc func(ctx context.Context, emit Emit) error

// Job is one long-running stage run for a conversation
type Job struct {
	ID             string
	ConversationID string
	Kind           string
	CreatedAt      time.Time
	// TempFiles are removed once the job ends, whatever the outcome
	TempFiles []string

	run    RunFunc
	events chan types.Event

	mu     sync.Mutex
	status string
	err    error
}

// NewJob creates a queued job
func NewJob(conversationID, kind string, run RunFunc) *Job {
	return &Job{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Kind:           kind,
		CreatedAt:      time.Now(),
		run:            run,
		events:         make(chan types.Event, 64),
		status:         StatusQueued,
	}
}

// Events streams the job's events in order. The channel is closed when the
// job ends.
func (j *Job) Events() <-chan types.Event {
	return j.events
}

// Status returns the job status and its error, if any
func (j *Job) Status() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.err
}

func (j *Job) setStatus(status string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.err = err
}

func (j *Job) emit(ev types.Event) {
	j.events <- ev
}
