package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

// WhisperModels are the model names accepted by openai-whisper
var WhisperModels = []string{
	"tiny", "tiny.en", "base", "base.en", "small", "small.en",
	"medium", "medium.en", "large-v1", "large-v2", "large-v3", "large",
	"large-v3-turbo", "turbo",
}

// ValidModel reports whether name is a known whisper model
func ValidModel(name string) bool {
	return slices.Contains(WhisperModels, name)
}

// Transcriber turns audio into timestamped text segments
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, model, device string) (*types.RawTranscript, error)
}

// WhisperTranscriber runs openai-whisper as "python -m whisper"
type WhisperTranscriber struct {
	command  string
	language string
	tempDir  string
	log      zerolog.Logger
	mu       sync.Mutex // one model in memory at a time
}

// NewWhisperTranscriber creates a transcriber. language may be empty for
// auto-detection.
func NewWhisperTranscriber(command, language, tempDir string, log zerolog.Logger) *WhisperTranscriber {
	return &WhisperTranscriber{
		command:  command,
		language: language,
		tempDir:  tempDir,
		log:      log.With().Str("component", "whisper").Logger(),
	}
}

// Transcribe processes an audio file and returns the transcript
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, audioPath, model, device string) (*types.RawTranscript, error) {
	if !ValidModel(model) {
		return nil, fmt.Errorf("unknown whisper model %q", model)
	}

	wt.mu.Lock()
	defer wt.mu.Unlock()

	if err := os.MkdirAll(wt.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	outDir, err := os.MkdirTemp(wt.tempDir, "whisper_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	absAudioPath, err := filepath.Abs(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	args := []string{"-m", "whisper", absAudioPath,
		"--model", model,
		"--device", device,
		"--output_dir", outDir,
		"--output_format", "json",
		"--fp16", fp16(device),
	}
	if wt.language != "" {
		args = append(args, "--language", wt.language)
	}

	wt.log.Info().Str("audio", audioPath).Str("model", model).Str("device", device).Msg("Transcribing")

	cmd := exec.CommandContext(ctx, wt.command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w\nOutput: %s", err, truncate(string(output), 2000))
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonData, err := os.ReadFile(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	result, err := ParseWhisperOutput(jsonData)
	if err != nil {
		return nil, err
	}

	wt.log.Info().Int("segments", len(result.Segments)).Msg("Transcription completed")
	return result, nil
}

func fp16(device string) string {
	if device == "cuda" {
		return "True"
	}
	return "False"
}

// whisperOutput matches Python Whisper's JSON output format
type whisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ParseWhisperOutput converts whisper's JSON file into a RawTranscript
func ParseWhisperOutput(data []byte) (*types.RawTranscript, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	segments := make([]types.TranscriptSegment, len(out.Segments))
	for i, seg := range out.Segments {
		segments[i] = types.TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
	}
	return &types.RawTranscript{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Segments: segments,
	}, nil
}
