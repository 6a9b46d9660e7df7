package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/conversation"
	"github.com/codebuildervaibhav/conversate/internal/queue"
	"github.com/codebuildervaibhav/conversate/internal/tokens"
	"github.com/codebuildervaibhav/conversate/internal/transcription"
)

var (
	errNotInitialized = newStageError("conversation not initialized", "Conversation not initialized.")
	errNoAudio        = newStageError("audio file not found", "Audio file not found. Please upload it first.")
	errNoToken        = newStageError("no hugging face token", "No Hugging Face token provided or found in environment.")
	errNoSegments     = newStageError("no timestamped segments in transcript", "No timestamped segments found in transcript.")
)

// DiarizeOptions are the per-run inputs of a diarization
type DiarizeOptions struct {
	Token       string
	NumSpeakers int
}

// beginStage opens a run, or reports a missing record on the stream
func (r *Runner) beginStage(ctx context.Context, id string, stage conversation.Stage, emit queue.Emit) (*conversation.StageRun, *reporter, error) {
	run, err := r.Conversations.BeginStage(ctx, id, stage)
	if err != nil {
		rp := r.reporter(ctx, id, nil, emit)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil, rp.fail(errNotInitialized)
		}
		return nil, nil, rp.fail(err)
	}
	return run, r.reporter(ctx, id, run, emit), nil
}

// stageAudio returns the conversation audio, or fails the run
func (r *Runner) stageAudio(ctx context.Context, id string, rp *reporter) (conversation.Paths, string, error) {
	conv, err := r.Conversations.Get(ctx, id)
	if err != nil {
		return conversation.Paths{}, "", rp.fail(err)
	}
	paths := r.Conversations.Paths(conv)
	audio, ok := paths.Audio()
	if !ok {
		return paths, "", rp.fail(errNoAudio)
	}
	return paths, audio, nil
}

// Diarize runs speaker diarization on the conversation audio and stores
// {id}.rttm. Every event is written to the diarization log before it is
// emitted.
func (r *Runner) Diarize(ctx context.Context, id string, opts DiarizeOptions, emit queue.Emit) error {
	run, rp, err := r.beginStage(ctx, id, conversation.StageDiarization, emit)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(opts.Token)
	switch {
	case token != "":
		rp.info("Hugging Face token provided; using overridden token.")
	default:
		token = r.Tokens.Get(tokens.HuggingFace)
		if token == "" {
			return rp.fail(errNoToken)
		}
		rp.info("Hugging Face token obtained from environment.")
	}

	paths, audio, err := r.stageAudio(ctx, id, rp)
	if err != nil {
		return err
	}

	device := r.Devices.Device(ctx)
	if err := run.Start(ctx, r.Devices.DeviceName(ctx)); err != nil {
		return rp.fail(err)
	}
	rp.info("Device check complete. Using %s.", device)
	rp.info("Setting up the pyannote pipeline...")

	input := audio
	if filepath.Ext(audio) != ".wav" {
		wav, err := r.Audio.Normalize(ctx, audio)
		if err != nil {
			return rp.fail(err)
		}
		defer os.Remove(wav)
		input = wav
	}

	rp.info("Starting diarization...")
	started := time.Now()
	rttm, err := r.Diarizer.Diarize(ctx, transcription.DiarizeRequest{
		AudioPath:   input,
		Token:       token,
		Device:      device,
		NumSpeakers: opts.NumSpeakers,
	})
	if err != nil {
		return rp.fail(err)
	}
	if err := r.files().WriteFile(paths.RTTM(), rttm); err != nil {
		return rp.fail(err)
	}

	rp.success("Diarization completed in %.2f seconds.", time.Since(started).Seconds())
	if err := run.Complete(ctx); err != nil {
		return rp.fail(err)
	}
	rp.success("Files saved to conversation.")
	return nil
}

// Transcribe runs whisper on the conversation audio and stores
// rawTranscript_{id}.json
func (r *Runner) Transcribe(ctx context.Context, id, model string, emit queue.Emit) error {
	run, rp, err := r.beginStage(ctx, id, conversation.StageTranscription, emit)
	if err != nil {
		return err
	}

	paths, audio, err := r.stageAudio(ctx, id, rp)
	if err != nil {
		return err
	}

	device := r.Devices.Device(ctx)
	if err := run.Start(ctx, r.Devices.DeviceName(ctx)); err != nil {
		return rp.fail(err)
	}
	rp.info("Device check complete. Using %s.", device)
	rp.info("Starting transcription...")

	started := time.Now()
	raw, err := r.Transcriber.Transcribe(ctx, audio, model, device)
	if err != nil {
		return rp.fail(err)
	}
	if err := r.files().WriteJSON(paths.RawTranscript(), raw); err != nil {
		return rp.fail(err)
	}

	rp.success("Transcription completed in %.2f seconds.", time.Since(started).Seconds())
	if err := run.Complete(ctx); err != nil {
		return rp.fail(err)
	}
	rp.success("Transcript saved to conversation.")
	return nil
}
