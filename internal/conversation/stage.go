package conversation

import (
	"context"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

// Stage names a long-running step that keeps a run log on the record
type Stage string

const (
	StageDiarization   Stage = "diarization"
	StageTranscription Stage = "transcription"
)

func (st Stage) process(c *types.Conversation) *types.ProcessInfo {
	if st == StageDiarization {
		return &c.DiarizationProcess
	}
	return &c.TranscriptionProcess
}

func (st Stage) flag(c *types.Conversation) *bool {
	if st == StageDiarization {
		return &c.States.Diarization
	}
	return &c.States.Transcript
}

// StageRun records the progress of one run of a stage. Every call persists
// before returning.
type StageRun struct {
	svc   *Service
	id    string
	stage Stage
}

// BeginStage starts a new run, discarding the log of the previous one
func (s *Service) BeginStage(ctx context.Context, id string, stage Stage) (*StageRun, error) {
	_, err := s.Mutate(ctx, id, func(c *types.Conversation) error {
		stage.process(c).Logs = []types.LogEntry{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &StageRun{svc: s, id: id, stage: stage}, nil
}

// Stage is the stage this run belongs to
func (r *StageRun) Stage() Stage { return r.stage }

// Start records the start time and compute device
func (r *StageRun) Start(ctx context.Context, device string) error {
	now := r.svc.timestamp()
	return r.mutate(ctx, func(c *types.Conversation) {
		p := r.stage.process(c)
		p.TimeStarted = &now
		p.TimeCompleted = nil
		p.Device = &device
	})
}

// Log appends one entry to the run log
func (r *StageRun) Log(ctx context.Context, status, message string) error {
	return r.mutate(ctx, func(c *types.Conversation) {
		p := r.stage.process(c)
		p.Logs = append(p.Logs, types.LogEntry{Status: status, Message: message})
	})
}

// Complete records the completion time and sets the stage flag
func (r *StageRun) Complete(ctx context.Context) error {
	now := r.svc.timestamp()
	return r.mutate(ctx, func(c *types.Conversation) {
		r.stage.process(c).TimeCompleted = &now
		*r.stage.flag(c) = true
	})
}

// Fail appends an error entry to the run log and clears the stage flag
func (r *StageRun) Fail(ctx context.Context, message string) error {
	return r.mutate(ctx, func(c *types.Conversation) {
		p := r.stage.process(c)
		p.Logs = append(p.Logs, types.LogEntry{Status: types.StatusError, Message: message})
		*r.stage.flag(c) = false
	})
}

func (r *StageRun) mutate(ctx context.Context, fn func(*types.Conversation)) error {
	_, err := r.svc.Mutate(ctx, r.id, func(c *types.Conversation) error {
		fn(c)
		return nil
	})
	return err
}
