package transcription

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// VideoInfo is what the headless browser reads from a watch page
type VideoInfo struct {
	Title    string
	Duration float64
}

// YouTubeImporter downloads the audio track of a video with yt-dlp
type YouTubeImporter struct {
	tempDir string
	log     zerolog.Logger
}

// NewYouTubeImporter creates an importer writing downloads to tempDir
func NewYouTubeImporter(tempDir string, log zerolog.Logger) *YouTubeImporter {
	return &YouTubeImporter{
		tempDir: tempDir,
		log:     log.With().Str("component", "youtube").Logger(),
	}
}

// Inspect opens the page in headless Chrome and reads title and duration
func (y *YouTubeImporter) Inspect(ctx context.Context, url string) (*VideoInfo, error) {
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, time.Minute)
	defer cancel()

	var info VideoInfo
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Title(&info.Title),
		chromedp.Evaluate(`(() => { const v = document.querySelector('video'); return v && isFinite(v.duration) ? v.duration : 0; })()`,
			&info.Duration, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open video page: %w", err)
	}
	info.Title = strings.TrimSuffix(strings.TrimSpace(info.Title), " - YouTube")
	return &info, nil
}

// Download extracts the audio of url as an mp3 in the temp dir. The caller
// moves or removes the returned file.
func (y *YouTubeImporter) Download(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(y.tempDir, 0o755); err != nil {
		return "", err
	}
	base := filepath.Join(y.tempDir, "yt_"+uuid.New().String())

	y.log.Info().Str("url", url).Msg("Using yt-dlp to download")

	cmd := exec.CommandContext(ctx, "yt-dlp",
		"-x",
		"--audio-format", "mp3",
		"--no-playlist",
		"-o", base+".%(ext)s",
		url,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w\nOutput: %s", err, truncate(string(output), 2000))
	}

	path := base + ".mp3"
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("yt-dlp produced no mp3: %w", err)
	}
	return path, nil
}
