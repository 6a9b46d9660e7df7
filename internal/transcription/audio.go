package transcription

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

// AudioTools wraps the ffmpeg and ffprobe binaries
type AudioTools struct {
	tempDir string
}

// NewAudioTools creates audio helpers writing scratch files to tempDir
func NewAudioTools(tempDir string) *AudioTools {
	return &AudioTools{tempDir: tempDir}
}

func runFFmpeg(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, truncate(string(output), 2000))
	}
	return nil
}

// replaceWith runs produce against a temp path next to out and renames it
// into place on success.
func replaceWith(out string, produce func(tmp string) error) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(filepath.Dir(out), fmt.Sprintf(".%s%s", uuid.New().String(), filepath.Ext(out)))
	defer os.Remove(tmp)

	if err := produce(tmp); err != nil {
		return err
	}
	return os.Rename(tmp, out)
}

// Normalize converts any audio file to a temporary 16kHz mono WAV. The caller
// removes the returned file.
func (a *AudioTools) Normalize(ctx context.Context, inputPath string) (string, error) {
	if err := os.MkdirAll(a.tempDir, 0o755); err != nil {
		return "", err
	}
	outputPath := filepath.Join(a.tempDir, fmt.Sprintf("normalized_%s.wav", uuid.New().String()))

	err := runFFmpeg(ctx,
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	)
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

// ToMP3 encodes inputPath as mp3 at outputPath
func (a *AudioTools) ToMP3(ctx context.Context, inputPath, outputPath string) error {
	return replaceWith(outputPath, func(tmp string) error {
		return runFFmpeg(ctx, "-i", inputPath, "-codec:a", "libmp3lame", "-qscale:a", "2", "-y", tmp)
	})
}

// Duration probes the length of an audio file in seconds
func (a *AudioTools) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned %q: %w", strings.TrimSpace(string(output)), err)
	}
	return d, nil
}

// ExtractIntervals concatenates the given intervals of inputPath, in order,
// into an mp3 at outputPath.
func (a *AudioTools) ExtractIntervals(ctx context.Context, inputPath, outputPath string, intervals []types.DiarizationInterval) error {
	if len(intervals) == 0 {
		return fmt.Errorf("no intervals to extract")
	}
	return replaceWith(outputPath, func(tmp string) error {
		return runFFmpeg(ctx,
			"-i", inputPath,
			"-filter_complex", concatFilter(intervals),
			"-map", "[out]",
			"-codec:a", "libmp3lame",
			"-y", tmp,
		)
	})
}

// concatFilter builds an ffmpeg filter graph trimming each interval and
// concatenating the pieces into [out].
func concatFilter(intervals []types.DiarizationInterval) string {
	var b strings.Builder
	for i, iv := range intervals {
		fmt.Fprintf(&b, "[0:a]atrim=start=%.3f:end=%.3f,asetpts=PTS-STARTPTS[a%d];", iv.Start, iv.End, i)
	}
	for i := range intervals {
		fmt.Fprintf(&b, "[a%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=0:a=1[out]", len(intervals))
	return b.String()
}

// ValidateAudioFormat checks if the file format is supported for upload
func ValidateAudioFormat(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".mp3":
		return true
	}
	return false
}
