package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/conversate/internal/conversation"
)

// ConversationHandler serves conversation records
type ConversationHandler struct {
	svc *conversation.Service
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(svc *conversation.Service) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// Initialize creates the record on first use and returns it
func (h *ConversationHandler) Initialize(c *fiber.Ctx) error {
	conv, err := h.svc.Initialize(c.UserContext(), c.FormValue("name"), c.FormValue("conv_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"conversation": conv})
}

// Create adds a record with an explicit id
func (h *ConversationHandler) Create(c *fiber.Ctx) error {
	var in conversation.CreateInput
	if err := bind(c, &in); err != nil {
		return err
	}
	conv, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":      "Conversation created successfully.",
		"conversation": conv,
	})
}

// Get returns one record
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	conv, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"conversation": conv})
}

// List returns every record
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	convs, err := h.svc.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

// UpdateSpeakers replaces the speaker list, dropping duplicates
func (h *ConversationHandler) UpdateSpeakers(c *fiber.Ctx) error {
	conv, err := h.svc.UpdateSpeakers(c.UserContext(), c.Params("id"), c.FormValue("speakers"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":  "Conversation speakers updated successfully.",
		"speakers": conv.Speakers,
	})
}

// AssignSpeakers replaces the ordered speaker assignment
func (h *ConversationHandler) AssignSpeakers(c *fiber.Ctx) error {
	conv, err := h.svc.AssignSpeakers(c.UserContext(), c.Params("id"), c.FormValue("speakers"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":  "Speaker assignment updated.",
		"speakers": conv.Speakers,
	})
}

// Delete removes the record and its folder
func (h *ConversationHandler) Delete(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Conversation deleted successfully."})
}

// FileHealth lists missing artifacts without touching the record
func (h *ConversationHandler) FileHealth(c *fiber.Ctx) error {
	report, err := h.svc.FileHealth(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// HealthCheck recomputes the stage flags from disk
func (h *ConversationHandler) HealthCheck(c *fiber.Ctx) error {
	report, err := h.svc.HealthCheck(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(report)
}
