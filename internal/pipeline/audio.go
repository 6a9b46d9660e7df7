package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/codebuildervaibhav/conversate/internal/alignment"
	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/queue"
	"github.com/codebuildervaibhav/conversate/internal/storage"
	"github.com/codebuildervaibhav/conversate/internal/transcription"
)

// Plausible audio length, in seconds
const (
	minPlausibleDuration = 1
	maxPlausibleDuration = 3600
)

// UploadResult is returned by UploadAudio
type UploadResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	AudioPath string `json:"audio_path"`
}

// UploadAudio stores the audio of a conversation as {id}.wav or {id}.mp3,
// replacing any previous file. A wav upload also gets an mp3 copy for
// playback.
func (r *Runner) UploadAudio(ctx context.Context, id, filename string, body io.Reader) (*UploadResult, error) {
	if !transcription.ValidateAudioFormat(filename) {
		return nil, apperr.Validation("ERR_INVALID_FORMAT", "Invalid file format. Only .wav and .mp3 are allowed.")
	}
	_, paths, err := r.loadPaths(ctx, id)
	if err != nil {
		return nil, err
	}

	target := paths.AudioMP3()
	isWAV := strings.EqualFold(filepath.Ext(filename), ".wav")
	if isWAV {
		target = paths.AudioWAV()
	}
	replaced := storage.Exists(target)

	size, err := r.files().WriteFrom(target, body)
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to save audio file.", err)
	}
	if !isWAV {
		// a stale wav would shadow the new mp3
		os.Remove(paths.AudioWAV())
	}

	duration, err := r.Audio.Duration(ctx, target)
	if err != nil {
		r.log.Warn().Err(err).Str("conversation_id", id).Msg("Failed to probe audio duration")
	}

	msg := fmt.Sprintf("Audio uploaded: %.2f MB, duration: %s", float64(size)/(1024*1024), alignment.SecondsToString(duration))
	if replaced {
		msg += " Warning: previous audio file was replaced."
	}
	if isWAV {
		if err := r.Audio.ToMP3(ctx, target, paths.AudioMP3()); err != nil {
			return nil, apperr.Internal("ERR_AUDIO_PROCESSING", "Error converting WAV to MP3.", err)
		}
		msg += " MP3 file also created."
	}

	if _, err := r.Conversations.SetAudio(ctx, id, duration); err != nil {
		return nil, err
	}
	if duration < minPlausibleDuration || duration > maxPlausibleDuration {
		msg += " Warning: Audio duration is implausible."
	}

	return &UploadResult{Status: "success", Message: msg, AudioPath: target}, nil
}

// AudioMetadata describes the stored audio of a conversation
type AudioMetadata struct {
	AudioPath     string  `json:"audio_path"`
	FileSizeBytes int64   `json:"file_size_bytes"`
	DurationSec   float64 `json:"duration_sec"`
	FileType      string  `json:"file_type"`
}

// AudioMetadata probes the stored audio
func (r *Runner) AudioMetadata(ctx context.Context, id string) (*AudioMetadata, error) {
	_, paths, err := r.loadPaths(ctx, id)
	if err != nil {
		return nil, err
	}
	audio, ok := paths.Audio()
	if !ok {
		return nil, apperr.NotFound("ERR_AUDIO_NOT_FOUND", "Audio file not found.")
	}
	info, err := os.Stat(audio)
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read audio file.", err)
	}
	duration, err := r.Audio.Duration(ctx, audio)
	if err != nil {
		return nil, apperr.Internal("ERR_AUDIO_PROCESSING", "Failed to probe audio duration.", err)
	}
	return &AudioMetadata{
		AudioPath:     audio,
		FileSizeBytes: info.Size(),
		DurationSec:   duration,
		FileType:      strings.TrimPrefix(filepath.Ext(audio), "."),
	}, nil
}

// AudioURL is returned by AudioURL
type AudioURL struct {
	RelativeURL string `json:"relative_url"`
	AbsoluteURL string `json:"absolute_url"`
}

// AudioURL makes sure an mp3 of the conversation audio exists and returns
// where the static route serves it
func (r *Runner) AudioURL(ctx context.Context, id string) (*AudioURL, error) {
	_, paths, err := r.loadPaths(ctx, id)
	if err != nil {
		return nil, err
	}
	mp3 := paths.AudioMP3()
	if !storage.Exists(mp3) {
		if !storage.Exists(paths.AudioWAV()) {
			return nil, apperr.NotFound("ERR_AUDIO_NOT_FOUND", "Audio file not found.")
		}
		if err := r.Audio.ToMP3(ctx, paths.AudioWAV(), mp3); err != nil {
			return nil, apperr.Internal("ERR_AUDIO_PROCESSING", "Error converting WAV to MP3.", err)
		}
	}
	rel := r.conversationURL(mp3)
	return &AudioURL{RelativeURL: rel, AbsoluteURL: r.publicURL + rel}, nil
}

// ImportYouTube downloads the audio track of a video into the conversation.
// Progress is published to the conversation's subscribers.
func (r *Runner) ImportYouTube(ctx context.Context, id, url string, emit queue.Emit) error {
	rp := r.reporter(ctx, id, nil, emit)
	if r.Videos == nil {
		return rp.fail(apperr.Validation("ERR_IMPORT_DISABLED", "Video import is not available."))
	}
	_, paths, err := r.loadPaths(ctx, id)
	if err != nil {
		return rp.fail(err)
	}

	rp.info("Opening video page...")
	if info, err := r.Videos.Inspect(ctx, url); err != nil {
		r.log.Warn().Err(err).Str("url", url).Msg("Failed to inspect video page")
	} else {
		rp.info("Found %q (%s).", info.Title, alignment.SecondsToString(info.Duration))
	}

	rp.info("Downloading audio...")
	downloaded, err := r.Videos.Download(ctx, url)
	if err != nil {
		return rp.fail(err)
	}
	defer os.Remove(downloaded)

	src, err := os.Open(downloaded)
	if err != nil {
		return rp.fail(err)
	}
	replaced := storage.Exists(paths.AudioMP3()) || storage.Exists(paths.AudioWAV())
	size, err := r.files().WriteFrom(paths.AudioMP3(), src)
	src.Close()
	if err != nil {
		return rp.fail(err)
	}
	os.Remove(paths.AudioWAV())

	duration, err := r.Audio.Duration(ctx, paths.AudioMP3())
	if err != nil {
		r.log.Warn().Err(err).Str("conversation_id", id).Msg("Failed to probe audio duration")
	}
	if _, err := r.Conversations.SetAudio(ctx, id, duration); err != nil {
		return rp.fail(err)
	}
	if replaced {
		rp.info("Previous audio file was replaced.")
	}
	rp.success("Audio imported: %.2f MB, duration: %s", float64(size)/(1024*1024), alignment.SecondsToString(duration))
	return nil
}

// Export uploads the merged transcript, and the report and stats when
// present, and returns a link to the uploaded folder
func (r *Runner) Export(ctx context.Context, id string) (string, error) {
	if r.Exporter == nil {
		return "", apperr.Validation("ERR_EXPORT_DISABLED", "Google Drive export is not configured.")
	}
	conv, paths, err := r.loadPaths(ctx, id)
	if err != nil {
		return "", err
	}

	candidates := []struct{ path, mime string }{
		{paths.Merged(), "text/plain"},
		{paths.Report(), "application/json"},
		{paths.Stats(), "application/json"},
	}
	var files []storage.ExportFile
	for i, c := range candidates {
		data, err := os.ReadFile(c.path)
		if os.IsNotExist(err) {
			if i == 0 {
				return "", apperr.NotFound("ERR_MERGED_NOT_FOUND", "Merged transcript not found. Merge the transcript first.")
			}
			continue
		}
		if err != nil {
			return "", apperr.Internal("ERR_STORAGE", "Failed to read export file.", err)
		}
		files = append(files, storage.ExportFile{Name: filepath.Base(c.path), MimeType: c.mime, Data: data})
	}

	var link string
	err = queue.Retry(ctx, 3, func() error {
		var err error
		link, err = r.Exporter.Export(ctx, storage.FolderName(conv.ID, conv.Name), files)
		return err
	})
	if err != nil {
		return "", apperr.Upstream("ERR_EXPORT", "Failed to export to Google Drive.", err)
	}
	r.log.Info().Str("conversation_id", id).Int("files", len(files)).Msg("Exported conversation")
	return link, nil
}
