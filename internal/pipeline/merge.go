package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/codebuildervaibhav/conversate/internal/alignment"
	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/conversation"
	"github.com/codebuildervaibhav/conversate/internal/storage"
	"github.com/codebuildervaibhav/conversate/internal/summary"
	"github.com/codebuildervaibhav/conversate/internal/types"
)

// loadPaths resolves the folder of an existing conversation
func (r *Runner) loadPaths(ctx context.Context, id string) (*types.Conversation, conversation.Paths, error) {
	conv, err := r.Conversations.Get(ctx, id)
	if err != nil {
		return nil, conversation.Paths{}, err
	}
	return conv, r.Conversations.Paths(conv), nil
}

func readIntervals(path string) ([]types.DiarizationInterval, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read diarization file.", err)
	}
	defer f.Close()

	intervals, err := alignment.ParseRTTM(f)
	if err != nil {
		var pe *alignment.ParseError
		if errors.As(err, &pe) {
			return nil, apperr.Validation("ERR_INVALID_RTTM", pe.Error())
		}
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read diarization file.", err)
	}
	return intervals, nil
}

func readRawTranscript(path string) (*types.RawTranscript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read transcription file.", err)
	}
	var raw types.RawTranscript
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Validation("ERR_INVALID_TRANSCRIPT", "Transcription file is not valid JSON.")
	}
	return &raw, nil
}

// Merge aligns the transcript with the diarization, writes
// merged_transcript.txt and sets the merged flag. selected is an optional
// comma list of display names assigned to speakers in order of appearance.
func (r *Runner) Merge(ctx context.Context, id, selected string) ([]types.MergedSegment, error) {
	_, paths, err := r.loadPaths(ctx, id)
	if err != nil {
		return nil, err
	}
	if !storage.Exists(paths.RTTM()) {
		return nil, apperr.NotFound("ERR_DIARIZATION_NOT_FOUND", "Diarization file not found.")
	}
	if !storage.Exists(paths.RawTranscript()) {
		return nil, apperr.NotFound("ERR_TRANSCRIPT_NOT_FOUND", "Transcription file not found.")
	}

	intervals, err := readIntervals(paths.RTTM())
	if err != nil {
		return nil, err
	}
	raw, err := readRawTranscript(paths.RawTranscript())
	if err != nil {
		return nil, err
	}
	if len(raw.Segments) == 0 {
		return nil, apperr.Validation("ERR_NO_SEGMENTS", "No transcript segments found.")
	}

	merged := alignment.Align(raw.Segments, intervals, alignment.SplitNames(selected))
	if err := r.files().WriteFile(paths.Merged(), []byte(alignment.FormatMerged(merged))); err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to save merged transcript.", err)
	}
	if _, err := r.Conversations.SetFlag(ctx, id, func(s *types.States) { s.Merged = true }); err != nil {
		return nil, err
	}
	return merged, nil
}

var speakerFileRe = regexp.MustCompile(`^(SPEAKER_\d+)_`)

// SpeakerAudios returns one audio file per diarized speaker. Files are cut
// from the conversation audio on first use and listed afterwards. A folder
// that does not match the speakers of the current RTTM is rebuilt.
func (r *Runner) SpeakerAudios(ctx context.Context, id string) ([]types.SpeakerAudio, error) {
	_, paths, err := r.loadPaths(ctx, id)
	if err != nil {
		return nil, err
	}

	if !storage.Exists(paths.RTTM()) {
		return nil, apperr.NotFound("ERR_DIARIZATION_NOT_FOUND", "RTTM file not found.")
	}
	groups, err := paths.SpeakerGroups()
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read diarization file.", err)
	}

	if paths.SpeakerAudioComplete(len(groups)) {
		files := make([]string, len(groups))
		for i := range groups {
			files[i] = paths.SpeakerAudio(i)
		}
		return r.listSpeakerAudios(ctx, files), nil
	}

	audio, ok := paths.Audio()
	if !ok {
		return nil, apperr.NotFound("ERR_AUDIO_NOT_FOUND", "Original audio file not found.")
	}

	staged, err := r.files().StageDir(paths.SpeakerAudioDir())
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to create speaker audio folder.", err)
	}
	defer os.RemoveAll(staged) // no-op after ReplaceDir

	out := make([]types.SpeakerAudio, 0, len(groups))
	for i, g := range groups {
		intervals := append([]types.DiarizationInterval(nil), g.Intervals...)
		sort.SliceStable(intervals, func(a, b int) bool { return intervals[a].Start < intervals[b].Start })

		target := paths.SpeakerAudio(i)
		if err := r.Audio.ExtractIntervals(ctx, audio, filepath.Join(staged, filepath.Base(target)), intervals); err != nil {
			return nil, apperr.Internal("ERR_AUDIO_PROCESSING", "Failed to create speaker audio.", err)
		}
		var total float64
		for _, iv := range intervals {
			total += iv.End - iv.Start
		}
		out = append(out, types.SpeakerAudio{
			Speaker:   g.Speaker,
			AudioFile: r.conversationURL(target),
			Duration:  total,
		})
	}

	if err := r.files().ReplaceDir(staged, paths.SpeakerAudioDir()); err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to save speaker audio.", err)
	}
	if _, err := r.Conversations.SetFlag(ctx, id, func(s *types.States) { s.SpeakerAudioSegments = true }); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) listSpeakerAudios(ctx context.Context, files []string) []types.SpeakerAudio {
	out := make([]types.SpeakerAudio, 0, len(files))
	for _, path := range files {
		base := filepath.Base(path)
		speaker := base[:len(base)-len(filepath.Ext(base))]
		if m := speakerFileRe.FindStringSubmatch(base); m != nil {
			speaker = m[1]
		}
		duration, err := r.Audio.Duration(ctx, path)
		if err != nil {
			r.log.Warn().Err(err).Str("file", path).Msg("Failed to probe speaker audio")
		}
		out = append(out, types.SpeakerAudio{
			Speaker:   speaker,
			AudioFile: r.conversationURL(path),
			Duration:  duration,
		})
	}
	return out
}

// readMergedFile loads merged_transcript.txt of a conversation
func (r *Runner) readMergedFile(paths conversation.Paths) ([]types.MergedSegment, error) {
	f, err := os.Open(paths.Merged())
	if os.IsNotExist(err) {
		return nil, apperr.NotFound("ERR_MERGED_NOT_FOUND", "Merged transcript not found. Merge the transcript first.")
	}
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read merged transcript.", err)
	}
	defer f.Close()

	segments, err := alignment.ReadMerged(f)
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read merged transcript.", err)
	}
	return segments, nil
}

// Report is the content of report_{id}.json
type Report struct {
	ConversationID string              `json:"conversation_id"`
	GeneratedAt    time.Time           `json:"generated_at"`
	Summary        string              `json:"summary"`
	Keynotes       map[string][]string `json:"keynotes"`
}

// Report summarizes the merged transcript and stores report_{id}.json
func (r *Runner) Report(ctx context.Context, id string) (*Report, error) {
	_, paths, err := r.loadPaths(ctx, id)
	if err != nil {
		return nil, err
	}
	segments, err := r.readMergedFile(paths)
	if err != nil {
		return nil, err
	}

	lines := make([]summary.Line, 0, len(segments))
	for _, s := range segments {
		lines = append(lines, summary.Line{Speaker: s.Speaker, Text: s.Text})
	}
	analysis, err := r.Summarizer.Analyze(ctx, lines)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ConversationID: id,
		GeneratedAt:    time.Now().UTC(),
		Summary:        analysis.Summary,
		Keynotes:       analysis.Keynotes,
	}
	if err := r.files().WriteJSON(paths.Report(), report); err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to save report.", err)
	}
	if _, err := r.Conversations.SetFlag(ctx, id, func(s *types.States) { s.Report = true }); err != nil {
		return nil, err
	}
	return report, nil
}

// Stats computes speaking statistics from the merged transcript and stores
// stats_{id}.json
func (r *Runner) Stats(ctx context.Context, id string) (*alignment.Stats, error) {
	_, paths, err := r.loadPaths(ctx, id)
	if err != nil {
		return nil, err
	}
	segments, err := r.readMergedFile(paths)
	if err != nil {
		return nil, err
	}

	stats := alignment.ComputeStats(segments)
	if err := r.files().WriteJSON(paths.Stats(), stats); err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to save stats.", err)
	}
	if _, err := r.Conversations.SetFlag(ctx, id, func(s *types.States) { s.Stats = true }); err != nil {
		return nil, err
	}
	return &stats, nil
}
