package handlers

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/conversation"
	"github.com/codebuildervaibhav/conversate/internal/pipeline"
	"github.com/codebuildervaibhav/conversate/internal/queue"
	"github.com/codebuildervaibhav/conversate/internal/transcription"
)

// StageHandler runs pipeline stages for a conversation
type StageHandler struct {
	runner       *pipeline.Runner
	convs        *conversation.Service
	workerPool   *queue.WorkerPool
	defaultModel string
}

// NewStageHandler creates a new stage handler
func NewStageHandler(runner *pipeline.Runner, convs *conversation.Service, workerPool *queue.WorkerPool, defaultModel string) *StageHandler {
	if defaultModel == "" {
		defaultModel = pipeline.DefaultModel
	}
	return &StageHandler{
		runner:       runner,
		convs:        convs,
		workerPool:   workerPool,
		defaultModel: defaultModel,
	}
}

// Diarize streams a diarization run
func (h *StageHandler) Diarize(c *fiber.Ctx) error {
	id := param(c, "id")
	if err := requireAudioMedia(c); err != nil {
		return err
	}
	opts := pipeline.DiarizeOptions{Token: formValue(c, "hf_auth_token")}
	if raw := c.FormValue("num_speakers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apperr.Validation("ERR_VALIDATION", "num_speakers must be a non-negative integer.")
		}
		opts.NumSpeakers = n
	}

	job := queue.NewJob(id, "diarize", func(ctx context.Context, emit queue.Emit) error {
		return h.runner.Diarize(ctx, id, opts, emit)
	})
	return enqueueAndStream(c, h.workerPool, job)
}

// Transcribe streams a transcription run
func (h *StageHandler) Transcribe(c *fiber.Ctx) error {
	id := param(c, "id")
	model := formValue(c, "model_string", h.defaultModel)
	if !transcription.ValidModel(model) {
		return apperr.Validation("ERR_INVALID_MODEL", fmt.Sprintf("Unknown whisper model %q.", model))
	}

	job := queue.NewJob(id, "transcribe", func(ctx context.Context, emit queue.Emit) error {
		return h.runner.Transcribe(ctx, id, model, emit)
	})
	return enqueueAndStream(c, h.workerPool, job)
}

// WhisperModels lists the accepted model names
func (h *StageHandler) WhisperModels(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"models": transcription.WhisperModels})
}

// Merge aligns transcript and diarization into speaker turns
func (h *StageHandler) Merge(c *fiber.Ctx) error {
	merged, err := h.runner.Merge(c.UserContext(), c.Params("id"), c.FormValue("selected_speakers"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":          "success",
		"message":         "Merging complete.",
		"merged_segments": merged,
	})
}

// SpeakerAudios returns one audio file per speaker
func (h *StageHandler) SpeakerAudios(c *fiber.Ctx) error {
	audios, err := h.runner.SpeakerAudios(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":         "success",
		"speaker_audios": audios,
	})
}

// Report writes the summary and keynotes of the merged transcript
func (h *StageHandler) Report(c *fiber.Ctx) error {
	report, err := h.runner.Report(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "report": report})
}

// Stats writes the speaking statistics of the merged transcript
func (h *StageHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.runner.Stats(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "stats": stats})
}

// artifact reads one file of a conversation folder
func (h *StageHandler) artifact(c *fiber.Ctx, path func(conversation.Paths) string, code, missing string) ([]byte, error) {
	conv, err := h.convs.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path(h.convs.Paths(conv)))
	if os.IsNotExist(err) {
		return nil, apperr.NotFound(code, missing)
	}
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read file.", err)
	}
	return data, nil
}

// DiarizationDetails returns the raw RTTM file
func (h *StageHandler) DiarizationDetails(c *fiber.Ctx) error {
	data, err := h.artifact(c, conversation.Paths.RTTM, "ERR_DIARIZATION_NOT_FOUND", "Diarization file not found.")
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"content": string(data)})
}

// TranscriptionDetails returns the raw transcript JSON
func (h *StageHandler) TranscriptionDetails(c *fiber.Ctx) error {
	data, err := h.artifact(c, conversation.Paths.RawTranscript, "ERR_TRANSCRIPT_NOT_FOUND", "Transcription file not found.")
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}
