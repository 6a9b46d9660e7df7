package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/pipeline"
)

// DriveDownloadURL fetches a shared Drive file by id
const DriveDownloadURL = "https://drive.google.com/uc?export=download&id=%s"

var (
	driveFilePathRE = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveIDParamRE  = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	driveBareIDRE   = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
)

// GDriveHandler moves conversation files to and from Google Drive
type GDriveHandler struct {
	runner      *pipeline.Runner
	client      *http.Client
	downloadURL string
	log         zerolog.Logger
}

// NewGDriveHandler creates a new Google Drive handler
func NewGDriveHandler(runner *pipeline.Runner, log zerolog.Logger) *GDriveHandler {
	return &GDriveHandler{
		runner:      runner,
		client:      &http.Client{Timeout: 30 * time.Minute},
		downloadURL: DriveDownloadURL,
		log:         log.With().Str("component", "gdrive").Logger(),
	}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL string `json:"url" form:"url" validate:"required"`
}

// Export uploads the merged transcript, report and stats to Drive
func (h *GDriveHandler) Export(c *fiber.Ctx) error {
	link, err := h.runner.Export(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Conversation exported to Google Drive.",
		"url":     link,
	})
}

// Import downloads a shared Drive file and stores it as the conversation
// audio
func (h *GDriveHandler) Import(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	fileID := extractGDriveFileID(req.URL)
	if fileID == "" {
		return apperr.Validation("ERR_INVALID_URL", "Invalid Google Drive URL.")
	}

	httpReq, err := http.NewRequestWithContext(c.UserContext(), http.MethodGet, fmt.Sprintf(h.downloadURL, fileID), nil)
	if err != nil {
		return apperr.Validation("ERR_INVALID_URL", "Invalid Google Drive URL.")
	}
	h.log.Info().Str("file_id", fileID).Msg("Downloading from Google Drive")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return apperr.Upstream("ERR_DOWNLOAD_FAILED", "Failed to download file from Google Drive.", err)
	}
	defer resp.Body.Close()

	// Drive answers private files and large-file confirmations with HTML
	if resp.StatusCode != http.StatusOK || strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		return apperr.Validation("ERR_FILE_NOT_ACCESSIBLE", "File not accessible (may be private or doesn't exist).")
	}

	res, err := h.runner.UploadAudio(c.UserContext(), c.Params("id"), driveFilename(resp.Header.Get("Content-Disposition")), resp.Body)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// driveFilename reads the file name Drive sends, defaulting to an mp3
func driveFilename(disposition string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return "gdrive_audio.mp3"
}

// extractGDriveFileID extracts the file ID from the usual Google Drive URL
// formats or a bare id
func extractGDriveFileID(url string) string {
	for _, re := range []*regexp.Regexp{driveFilePathRE, driveIDParamRE, driveBareIDRE} {
		if m := re.FindStringSubmatch(url); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
