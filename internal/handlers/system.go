package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/hardware"
	"github.com/codebuildervaibhav/conversate/internal/logging"
	"github.com/codebuildervaibhav/conversate/internal/summary"
	"github.com/codebuildervaibhav/conversate/internal/tokens"
)

// SystemHandler serves health, logs, hardware, API tokens and analysis
type SystemHandler struct {
	tokens     *tokens.Store
	hardware   *hardware.Probe
	summarizer summary.Summarizer
	logs       *logging.LogBuffer
	version    string
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(d Deps) *SystemHandler {
	version := d.Version
	if version == "" {
		version = "dev"
	}
	return &SystemHandler{
		tokens:     d.Tokens,
		hardware:   d.Hardware,
		summarizer: d.Summarizer,
		logs:       d.Logs,
		version:    version,
	}
}

// Health reports liveness
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"version": h.version,
	})
}

// Logs returns the most recent log lines
func (h *SystemHandler) Logs(c *fiber.Ctx) error {
	lines := []string{}
	if h.logs != nil {
		lines = h.logs.GetLogs()
	}
	return c.JSON(fiber.Map{"logs": lines})
}

// Hardware describes CPU and GPUs
func (h *SystemHandler) Hardware(c *fiber.Ctx) error {
	return c.JSON(h.hardware.Info(c.UserContext()))
}

// GetTokens lists the supported API tokens, masked
func (h *SystemHandler) GetTokens(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tokens": h.tokens.Masked()})
}

// TokenRequest sets one API token
type TokenRequest struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// SetToken stores an API token
func (h *SystemHandler) SetToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("ERR_INVALID_BODY", "Invalid request body.")
	}
	if err := h.tokens.Set(req.Name, req.Token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": req.Name + " token updated.",
		"tokens":  h.tokens.Masked(),
	})
}

// AnalysisRequest is a transcript as chat lines
type AnalysisRequest struct {
	Transcript []summary.Line `json:"transcript" validate:"required,min=1,dive"`
}

// Analyze summarizes a transcript and extracts keynotes per speaker
func (h *SystemHandler) Analyze(c *fiber.Ctx) error {
	var req AnalysisRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("ERR_INVALID_BODY", "Invalid request body.")
	}
	if len(req.Transcript) == 0 {
		return apperr.Validation("ERR_EMPTY_TRANSCRIPT", "Transcript must be a non-empty list of chat lines.")
	}
	if err := check(&req); err != nil {
		return apperr.Validation("ERR_INCOMPLETE_LINE", "Each chat line must have a speaker and text.")
	}
	analysis, err := h.summarizer.Analyze(c.UserContext(), req.Transcript)
	if err != nil {
		return err
	}
	return c.JSON(analysis)
}
