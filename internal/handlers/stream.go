package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/events"
	"github.com/codebuildervaibhav/conversate/internal/queue"
)

// NDJSONContentType is the media type of stage event streams
const NDJSONContentType = "application/x-ndjson"

// enqueueAndStream queues a job and streams its events as NDJSON, one
// {status, message} object per line. The job keeps running when the client
// goes away.
func enqueueAndStream(c *fiber.Ctx, pool *queue.WorkerPool, job *queue.Job) error {
	if err := pool.Enqueue(c.UserContext(), job); err != nil {
		for _, p := range job.TempFiles {
			os.RemoveAll(p)
		}
		if errors.Is(err, queue.ErrStopped) {
			return apperr.Internal("ERR_SHUTTING_DOWN", "Server is shutting down.", err)
		}
		return apperr.Internal("ERR_QUEUE", "Failed to queue job.", err)
	}

	c.Set(fiber.HeaderContentType, NDJSONContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Job-Id", job.ID)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		enc := json.NewEncoder(w)
		gone := false
		for ev := range job.Events() {
			if gone {
				// drain so the job never blocks on a dead client
				continue
			}
			if err := enc.Encode(ev); err != nil {
				gone = true
				continue
			}
			if err := w.Flush(); err != nil {
				gone = true
			}
		}
	}))
	return nil
}

// StreamHandler pushes live stage events of a conversation over WebSocket
type StreamHandler struct {
	hub *events.Hub
	log zerolog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub *events.Hub, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		log: log.With().Str("component", "ws").Logger(),
	}
}

// Upgrade rejects plain HTTP requests on WebSocket routes
func (h *StreamHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle subscribes the connection to one conversation until either side
// closes
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	convID := c.Params("id")
	sub := h.hub.Subscribe(convID)
	defer h.hub.Unsubscribe(sub)

	log := h.log.With().Str("conversation_id", convID).Str("subscriber", sub.ID()).Logger()
	log.Info().Msg("WebSocket subscriber connected")

	// The client sends nothing; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		case <-closed:
			log.Info().Msg("WebSocket subscriber disconnected")
			return
		}
	}
}
