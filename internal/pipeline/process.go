package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/conversate/internal/alignment"
	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/queue"
	"github.com/codebuildervaibhav/conversate/internal/tokens"
	"github.com/codebuildervaibhav/conversate/internal/transcription"
	"github.com/codebuildervaibhav/conversate/internal/types"
)

// DefaultModel is used when a request names no whisper model
const DefaultModel = "large-v3-turbo"

// ProcessInput is one upload for the one-shot process flow
type ProcessInput struct {
	Filename     string
	Token        string
	Model        string
	SpeakerNames string
}

// Workspace is the scratch folder of a one-shot process job
type Workspace struct {
	Dir   string
	Audio string
}

// PrepareProcess validates the upload and stores it in a fresh job folder
// under the temp dir. The caller removes Dir when the job ends.
func (r *Runner) PrepareProcess(in ProcessInput, body io.Reader) (*Workspace, error) {
	if !transcription.ValidateAudioFormat(in.Filename) {
		return nil, apperr.Validation("ERR_INVALID_FORMAT", "Invalid file format. Only .wav and .mp3 are allowed.")
	}
	if in.Model != "" && !transcription.ValidModel(in.Model) {
		return nil, apperr.Validation("ERR_INVALID_MODEL", fmt.Sprintf("Unknown whisper model %q.", in.Model))
	}

	dir := filepath.Join(r.tempDir, "process_"+uuid.New().String())
	ws := &Workspace{Dir: dir, Audio: filepath.Join(dir, "input"+strings.ToLower(filepath.Ext(in.Filename)))}
	if _, err := r.files().WriteFrom(ws.Audio, body); err != nil {
		os.RemoveAll(dir)
		return nil, apperr.Internal("ERR_STORAGE", "Failed to save uploaded file.", err)
	}
	return ws, nil
}

// Process runs diarization, transcription and merging on a prepared upload
// without creating a conversation. The last event carries the merged
// transcript.
func (r *Runner) Process(ctx context.Context, ws *Workspace, in ProcessInput, emit queue.Emit) error {
	rp := r.reporter(ctx, "", nil, emit)
	rp.success("Audio uploaded successfully.")

	token := strings.TrimSpace(in.Token)
	if token == "" {
		token = r.Tokens.Get(tokens.HuggingFace)
	}
	if token == "" {
		return rp.fail(errNoToken)
	}
	model := in.Model
	if model == "" {
		model = DefaultModel
	}
	device := r.Devices.Device(ctx)

	input := ws.Audio
	if filepath.Ext(input) != ".wav" {
		wav, err := r.Audio.Normalize(ctx, input)
		if err != nil {
			return rp.fail(err)
		}
		defer os.Remove(wav)
		input = wav
	}

	rp.info("Starting diarization...")
	rttm, err := r.Diarizer.Diarize(ctx, transcription.DiarizeRequest{AudioPath: input, Token: token, Device: device})
	if err != nil {
		return rp.fail(err)
	}
	intervals, err := alignment.ParseRTTM(bytes.NewReader(rttm))
	if err != nil {
		return rp.fail(err)
	}
	if err := r.files().WriteFile(filepath.Join(ws.Dir, "input.rttm"), rttm); err != nil {
		return rp.fail(err)
	}
	rp.success("Diarization complete.")

	rp.info("Starting transcription...")
	raw, err := r.Transcriber.Transcribe(ctx, ws.Audio, model, device)
	if err != nil {
		return rp.fail(err)
	}
	rp.success("Transcription complete.")

	if len(raw.Segments) == 0 {
		return rp.fail(errNoSegments)
	}

	merged := alignment.Align(raw.Segments, intervals, alignment.SplitNames(in.SpeakerNames))
	if err := r.files().WriteFile(filepath.Join(ws.Dir, "merged_transcript.txt"), []byte(alignment.FormatMerged(merged))); err != nil {
		return rp.fail(err)
	}
	rp.deliver(types.Event{Status: types.StatusSuccess, Message: "Processing complete.", MergedTranscript: merged})
	return nil
}
