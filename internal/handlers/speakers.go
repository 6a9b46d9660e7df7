package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/speakers"
)

// SpeakerHandler serves speaker records and avatars
type SpeakerHandler struct {
	svc *speakers.Service
}

// NewSpeakerHandler creates a new speaker handler
func NewSpeakerHandler(svc *speakers.Service) *SpeakerHandler {
	return &SpeakerHandler{svc: svc}
}

// input binds the speaker form and opens the optional image. The returned
// closer is never nil.
func (h *SpeakerHandler) input(c *fiber.Ctx) (speakers.Input, func(), error) {
	var in speakers.Input
	if err := bind(c, &in); err != nil {
		return in, func() {}, err
	}
	file, err := c.FormFile("image")
	if err != nil {
		return in, func() {}, nil
	}
	f, err := file.Open()
	if err != nil {
		return in, func() {}, apperr.Internal("ERR_SAVE_FAILED", "Failed to read uploaded image.", err)
	}
	in.Image = f
	return in, func() { f.Close() }, nil
}

// Add creates a speaker and returns the full list
func (h *SpeakerHandler) Add(c *fiber.Ctx) error {
	in, done, err := h.input(c)
	defer done()
	if err != nil {
		return err
	}
	if _, err := h.svc.Add(c.UserContext(), in); err != nil {
		return err
	}
	all, err := h.svc.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":  "Speaker added successfully.",
		"speakers": all,
	})
}

// List returns every speaker
func (h *SpeakerHandler) List(c *fiber.Ctx) error {
	all, err := h.svc.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"speakers": all})
}

// Get returns one speaker
func (h *SpeakerHandler) Get(c *fiber.Ctx) error {
	sp, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"speaker": sp})
}

// Update changes a speaker and its avatar
func (h *SpeakerHandler) Update(c *fiber.Ctx) error {
	in, done, err := h.input(c)
	defer done()
	if err != nil {
		return err
	}
	sp, err := h.svc.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Speaker updated successfully.",
		"speaker": sp,
	})
}

// Delete removes a speaker and returns the remaining list
func (h *SpeakerHandler) Delete(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	all, err := h.svc.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":  "Speaker deleted successfully.",
		"speakers": all,
	})
}

// UploadCroppedAvatar stores an avatar cropped by the client
func (h *SpeakerHandler) UploadCroppedAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apperr.Validation("ERR_NO_FILE", "No file uploaded.")
	}
	f, err := file.Open()
	if err != nil {
		return apperr.Internal("ERR_SAVE_FAILED", "Failed to read uploaded file.", err)
	}
	defer f.Close()

	name, url, err := h.svc.SaveCroppedAvatar(c.FormValue("speaker_id"), f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"filename": name, "url": url})
}
