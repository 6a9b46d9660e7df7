// Package handlers exposes the conversation pipeline over HTTP.
package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/conversation"
	"github.com/codebuildervaibhav/conversate/internal/events"
	"github.com/codebuildervaibhav/conversate/internal/hardware"
	"github.com/codebuildervaibhav/conversate/internal/logging"
	"github.com/codebuildervaibhav/conversate/internal/pipeline"
	"github.com/codebuildervaibhav/conversate/internal/queue"
	"github.com/codebuildervaibhav/conversate/internal/speakers"
	"github.com/codebuildervaibhav/conversate/internal/summary"
	"github.com/codebuildervaibhav/conversate/internal/tokens"
)

// Deps are the services behind the HTTP API
type Deps struct {
	Conversations *conversation.Service
	Runner        *pipeline.Runner
	Speakers      *speakers.Service
	Pool          *queue.WorkerPool
	Hub           *events.Hub
	Tokens        *tokens.Store
	Hardware      *hardware.Probe
	Summarizer    summary.Summarizer
	Logs          *logging.LogBuffer
	Log           zerolog.Logger

	ConversationsDir string
	AvatarsDir       string
	MaxFileSizeMB    int
	DefaultModel     string
	Version          string
}

// Register mounts every route on app
func Register(app *fiber.App, d Deps) {
	convs := NewConversationHandler(d.Conversations)
	upload := NewUploadHandler(d.Runner, d.Pool, d.MaxFileSizeMB)
	stages := NewStageHandler(d.Runner, d.Conversations, d.Pool, d.DefaultModel)
	youtube := NewYouTubeHandler(d.Runner, d.Pool)
	gdrive := NewGDriveHandler(d.Runner, d.Log)
	spk := NewSpeakerHandler(d.Speakers)
	stream := NewStreamHandler(d.Hub, d.Log)
	system := NewSystemHandler(d)

	app.Get("/health", system.Health)
	app.Get("/logs", system.Logs)
	app.Get("/hardware", system.Hardware)
	app.Get("/apitokens", system.GetTokens)
	app.Post("/apitokens", system.SetToken)
	app.Post("/analyze", system.Analyze)
	app.Get("/whisper/models", stages.WhisperModels)

	app.Post("/conversation/initialize", convs.Initialize)
	app.Get("/conversations", convs.List)
	app.Post("/conversations", convs.Create)
	app.Get("/conversations/health/:id", convs.FileHealth)
	app.Get("/conversation/health-check/:id", convs.HealthCheck)
	app.Get("/conversation/diarization-details/:id", stages.DiarizationDetails)
	app.Get("/conversation/transcription-details/:id", stages.TranscriptionDetails)
	app.Get("/conversation/audio-metadata/:id", upload.AudioMetadata)
	app.Get("/conversation/speaker-audios/:id", stages.SpeakerAudios)
	app.Post("/conversation/upload_audio", upload.UploadAudio)
	app.Post("/conversation/chatgeneration/:id", stages.Merge)
	app.Get("/conversation/:id", convs.Get)
	app.Delete("/conversation/:id", convs.Delete)
	app.Put("/conversation/:id/update-speakers", convs.UpdateSpeakers)
	app.Put("/conversation/:id/assign-speakers", convs.AssignSpeakers)
	app.Post("/conversation/:id/report", stages.Report)
	app.Post("/conversation/:id/stats", stages.Stats)
	app.Post("/conversation/:id/export", gdrive.Export)
	app.Post("/conversation/:id/import/youtube", youtube.Import)
	app.Post("/conversation/:id/import/gdrive", gdrive.Import)
	app.Get("/audio/:id", upload.AudioURL)

	app.Post("/diarize/:id", stages.Diarize)
	app.Post("/transcribe/:id", stages.Transcribe)
	app.Post("/process", upload.Process)

	app.Post("/speakers", spk.Add)
	app.Get("/speakers", spk.List)
	app.Get("/speakers/:id", spk.Get)
	app.Put("/speakers/:id", spk.Update)
	app.Delete("/speakers/:id", spk.Delete)
	app.Post("/upload-cropped-avatar", spk.UploadCroppedAvatar)

	app.Use("/ws", stream.Upgrade)
	app.Get("/ws/conversations/:id/events", websocket.New(stream.Handle))

	if d.ConversationsDir != "" {
		app.Static("/conversations", d.ConversationsDir)
	}
	if d.AvatarsDir != "" {
		app.Static("/avatars", d.AvatarsDir)
	}
}

// ErrorHandler renders every error as {"error", "code"}
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error": fe.Message,
				"code":  "ERR_HTTP",
			})
		}

		status := apperr.HTTPStatus(err)
		message, code := apperr.Body(err)
		if status >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		}
		return c.Status(status).JSON(fiber.Map{
			"error": message,
			"code":  code,
		})
	}
}

// param copies a route parameter so it outlives the request
func param(c *fiber.Ctx, name string) string {
	return utils.CopyString(c.Params(name))
}

// formValue copies a form field so it outlives the request
func formValue(c *fiber.Ctx, key string, def ...string) string {
	return utils.CopyString(c.FormValue(key, def...))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// check validates a request struct
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return apperr.Validation("ERR_VALIDATION", fmt.Sprintf("%s is required.", fe.Field()))
		}
		return apperr.Validation("ERR_VALIDATION", fmt.Sprintf("%s is invalid.", fe.Field()))
	}
	return apperr.Validation("ERR_VALIDATION", err.Error())
}

// bind parses the body into out and validates it
func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("ERR_INVALID_BODY", "Invalid request body.")
	}
	return check(out)
}
