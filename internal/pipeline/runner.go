// Package pipeline runs the conversation stages: diarization, transcription,
// merging, per-speaker audio, reports and the one-shot process flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/conversate/internal/conversation"
	"github.com/codebuildervaibhav/conversate/internal/queue"
	"github.com/codebuildervaibhav/conversate/internal/storage"
	"github.com/codebuildervaibhav/conversate/internal/summary"
	"github.com/codebuildervaibhav/conversate/internal/transcription"
	"github.com/codebuildervaibhav/conversate/internal/types"
)

// AudioProcessor converts, probes and cuts audio files
type AudioProcessor interface {
	Normalize(ctx context.Context, inputPath string) (string, error)
	ToMP3(ctx context.Context, inputPath, outputPath string) error
	Duration(ctx context.Context, path string) (float64, error)
	ExtractIntervals(ctx context.Context, inputPath, outputPath string, intervals []types.DiarizationInterval) error
}

// DeviceProbe picks the compute device for model runs
type DeviceProbe interface {
	Device(ctx context.Context) string
	DeviceName(ctx context.Context) string
}

// TokenSource looks up API tokens by name
type TokenSource interface {
	Get(name string) string
}

// Publisher fans events out to live subscribers of a conversation
type Publisher interface {
	Publish(topic string, ev types.Event) int
}

// VideoSource fetches the audio track of an online video
type VideoSource interface {
	Inspect(ctx context.Context, url string) (*transcription.VideoInfo, error)
	Download(ctx context.Context, url string) (string, error)
}

// Exporter uploads finished artifacts and returns a link to them
type Exporter interface {
	Export(ctx context.Context, folder string, files []storage.ExportFile) (string, error)
}

// Deps are the collaborators of a Runner. Videos and Exporter are optional.
type Deps struct {
	Conversations *conversation.Service
	Diarizer      transcription.Diarizer
	Transcriber   transcription.Transcriber
	Audio         AudioProcessor
	Summarizer    summary.Summarizer
	Devices       DeviceProbe
	Tokens        TokenSource
	Events        Publisher
	Videos        VideoSource
	Exporter      Exporter
}

// Runner executes stages against conversation records and their folders
type Runner struct {
	Deps
	tempDir   string
	publicURL string
	log       zerolog.Logger
}

// NewRunner creates a runner. tempDir holds one-shot process jobs and
// publicURL prefixes absolute audio links.
func NewRunner(deps Deps, tempDir, publicURL string, log zerolog.Logger) *Runner {
	return &Runner{
		Deps:      deps,
		tempDir:   tempDir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

func (r *Runner) files() *storage.LocalStorage {
	return r.Conversations.Files()
}

// conversationURL maps a path inside the conversations directory to the
// static route serving it
func (r *Runner) conversationURL(path string) string {
	rel, err := filepath.Rel(r.files().Root(), path)
	if err != nil {
		return path
	}
	return "/conversations/" + filepath.ToSlash(rel)
}

// reporter delivers the events of one run: the stage log first, then live
// subscribers, then the caller.
type reporter struct {
	ctx   context.Context
	topic string
	run   *conversation.StageRun
	pub   Publisher
	emit  queue.Emit
	log   zerolog.Logger
}

func (r *Runner) reporter(ctx context.Context, topic string, run *conversation.StageRun, emit queue.Emit) *reporter {
	if emit == nil {
		emit = func(types.Event) {}
	}
	return &reporter{ctx: ctx, topic: topic, run: run, pub: r.Events, emit: emit, log: r.log}
}

func (rp *reporter) deliver(ev types.Event) {
	if rp.pub != nil && rp.topic != "" {
		rp.pub.Publish(rp.topic, ev)
	}
	rp.emit(ev)
}

func (rp *reporter) send(status, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if rp.run != nil {
		if err := rp.run.Log(rp.ctx, status, msg); err != nil {
			rp.log.Warn().Err(err).Str("topic", rp.topic).Msg("Failed to persist stage log")
		}
	}
	rp.deliver(types.Event{Status: status, Message: msg})
}

func (rp *reporter) info(format string, args ...any) {
	rp.send(types.StatusInfo, format, args...)
}

func (rp *reporter) success(format string, args ...any) {
	rp.send(types.StatusSuccess, format, args...)
}

// fail records err on the run, clears the stage flag and ends the stream
// with an error event. It returns err.
func (rp *reporter) fail(err error) error {
	msg := eventMessage(err)
	if rp.run != nil {
		if ferr := rp.run.Fail(rp.ctx, msg); ferr != nil {
			rp.log.Warn().Err(ferr).Str("topic", rp.topic).Msg("Failed to persist stage failure")
		}
	}
	rp.deliver(types.Event{Status: types.StatusError, Message: msg})
	return err
}

// stageError is a stage failure with its own client-facing message
type stageError struct {
	err error
	msg string
}

func newStageError(err, msg string) error {
	return &stageError{err: errors.New(err), msg: msg}
}

func (e *stageError) Error() string { return e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

// eventMessage is the text sent to clients when err ends a stage
func eventMessage(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.msg
	}
	return err.Error()
}
