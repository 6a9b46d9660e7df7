package handlers

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/pipeline"
	"github.com/codebuildervaibhav/conversate/internal/queue"
)

// UploadHandler handles audio uploads and the one-shot process flow
type UploadHandler struct {
	runner     *pipeline.Runner
	workerPool *queue.WorkerPool
	maxSizeMB  int
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(runner *pipeline.Runner, workerPool *queue.WorkerPool, maxSizeMB int) *UploadHandler {
	return &UploadHandler{
		runner:     runner,
		workerPool: workerPool,
		maxSizeMB:  maxSizeMB,
	}
}

// audioFile returns the uploaded "file" part after the size check
func (h *UploadHandler) audioFile(c *fiber.Ctx) (*multipart.FileHeader, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, apperr.Validation("ERR_NO_FILE", "No file uploaded.")
	}
	if h.maxSizeMB > 0 && file.Size > int64(h.maxSizeMB)*1024*1024 {
		return nil, apperr.Validation("ERR_FILE_TOO_LARGE", fmt.Sprintf("File too large (max %dMB).", h.maxSizeMB))
	}
	return file, nil
}

func requireAudioMedia(c *fiber.Ctx) error {
	if c.FormValue("media_type", "audio") != "audio" {
		return apperr.Validation("ERR_UNSUPPORTED_MEDIA", "Only audio processing is supported.")
	}
	return nil
}

// UploadAudio stores the audio of a conversation
func (h *UploadHandler) UploadAudio(c *fiber.Ctx) error {
	convID := c.FormValue("conv_id")
	if convID == "" {
		return apperr.Validation("ERR_VALIDATION", "conv_id is required.")
	}
	if err := requireAudioMedia(c); err != nil {
		return err
	}
	file, err := h.audioFile(c)
	if err != nil {
		return err
	}

	f, err := file.Open()
	if err != nil {
		return apperr.Internal("ERR_SAVE_FAILED", "Failed to read uploaded file.", err)
	}
	defer f.Close()

	res, err := h.runner.UploadAudio(c.UserContext(), convID, file.Filename, f)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// AudioMetadata reports size, duration and type of the stored audio
func (h *UploadHandler) AudioMetadata(c *fiber.Ctx) error {
	meta, err := h.runner.AudioMetadata(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(meta)
}

// AudioURL returns where the mp3 of a conversation is served
func (h *UploadHandler) AudioURL(c *fiber.Ctx) error {
	urls, err := h.runner.AudioURL(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(urls)
}

// Process runs the whole pipeline on an upload without creating a
// conversation and streams the progress
func (h *UploadHandler) Process(c *fiber.Ctx) error {
	file, err := h.audioFile(c)
	if err != nil {
		return err
	}
	in := pipeline.ProcessInput{
		Filename:     file.Filename,
		Token:        formValue(c, "auth_token"),
		Model:        formValue(c, "model_string", pipeline.DefaultModel),
		SpeakerNames: formValue(c, "speaker_names"),
	}

	f, err := file.Open()
	if err != nil {
		return apperr.Internal("ERR_SAVE_FAILED", "Failed to read uploaded file.", err)
	}
	ws, err := h.runner.PrepareProcess(in, f)
	f.Close()
	if err != nil {
		return err
	}

	job := queue.NewJob("", "process", func(ctx context.Context, emit queue.Emit) error {
		return h.runner.Process(ctx, ws, in, emit)
	})
	job.TempFiles = []string{ws.Dir}
	return enqueueAndStream(c, h.workerPool, job)
}
