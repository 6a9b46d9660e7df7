package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/codebuildervaibhav/conversate/internal/pipeline"
	"github.com/codebuildervaibhav/conversate/internal/queue"
)

// YouTubeHandler imports the audio of a YouTube video into a conversation
type YouTubeHandler struct {
	runner     *pipeline.Runner
	workerPool *queue.WorkerPool
}

// NewYouTubeHandler creates a new YouTube handler
func NewYouTubeHandler(runner *pipeline.Runner, workerPool *queue.WorkerPool) *YouTubeHandler {
	return &YouTubeHandler{
		runner:     runner,
		workerPool: workerPool,
	}
}

// YouTubeRequest represents the request body
type YouTubeRequest struct {
	URL string `json:"url" form:"url" validate:"required,url"`
}

// Import downloads the audio track and streams the progress. Downloads of
// long videos take minutes, so the work runs on the worker pool.
func (h *YouTubeHandler) Import(c *fiber.Ctx) error {
	id := param(c, "id")
	var req YouTubeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	url := utils.CopyString(req.URL)

	job := queue.NewJob(id, "youtube", func(ctx context.Context, emit queue.Emit) error {
		return h.runner.ImportYouTube(ctx, id, url, emit)
	})
	return enqueueAndStream(c, h.workerPool, job)
}
