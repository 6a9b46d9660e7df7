package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event status constants
const (
	StatusInfo    = "info"
	StatusSuccess = "success"
	StatusError   = "error"
)

// UnknownSpeaker labels a transcript segment no diarization interval overlaps
const UnknownSpeaker = "Unknown"

// DiarizationInterval is one speaker-labeled span of a diarization timeline
type DiarizationInterval struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// TranscriptSegment is one text-labeled span produced by transcription
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// CombinedSegment is a transcript segment annotated with its resolved speaker
type CombinedSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// MergedSegment is a maximal run of consecutive same-speaker segments
type MergedSegment = CombinedSegment

// RawTranscript matches the JSON written by the transcription stage
type RawTranscript struct {
	Text     string              `json:"text"`
	Language string              `json:"language,omitempty"`
	Segments []TranscriptSegment `json:"segments"`
}

// Event is a progress message emitted by a long-running stage
type Event struct {
	Status           string          `json:"status"`
	Message          string          `json:"message"`
	MergedTranscript []MergedSegment `json:"merged_transcript,omitempty"`
}

// LogEntry is one line of a stage log
type LogEntry struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ProcessInfo tracks the latest run of a long-running stage
type ProcessInfo struct {
	TimeStarted   *float64   `json:"timeStarted"`
	TimeCompleted *float64   `json:"timeCompleted"`
	Logs          []LogEntry `json:"logs"`
	Device        *string    `json:"device"`
}

// States holds the per-conversation stage flags
type States struct {
	AudioAvailable       bool `json:"audioAvailable"`
	Diarization          bool `json:"diarization"`
	Transcript           bool `json:"transcript"`
	SpeakerAudioSegments bool `json:"speakerAudioSegments"`
	SpeakerAssignment    bool `json:"speakerAssignment"`
	Merged               bool `json:"merged"`
	Report               bool `json:"report"`
	Stats                bool `json:"stats"`
}

// Conversation is the persisted record of one recorded conversation
type Conversation struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Description          string      `json:"description"`
	DateCreated          float64     `json:"dateCreated"`
	DateOfConversation   *float64    `json:"dateOfConversation"`
	Speakers             []string    `json:"speakers"`
	SpeakerCount         int         `json:"speakerCount"`
	Length               Seconds     `json:"length"`
	States               States      `json:"states"`
	DiarizationProcess   ProcessInfo `json:"diarizationProcess"`
	TranscriptionProcess ProcessInfo `json:"transcriptionProcess"`
	BackgroundImage      *string     `json:"backgroundImage"`
}

// Normalize fills collections that older records left out
func (c *Conversation) Normalize() {
	if c.Speakers == nil {
		c.Speakers = []string{}
	}
	if c.DiarizationProcess.Logs == nil {
		c.DiarizationProcess.Logs = []LogEntry{}
	}
	if c.TranscriptionProcess.Logs == nil {
		c.TranscriptionProcess.Logs = []LogEntry{}
	}
}

// Seconds is a duration in seconds that also decodes from a numeric string
type Seconds float64

// UnmarshalJSON accepts 12.5, "12.5", "" and null
func (s *Seconds) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			*s = 0
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("invalid seconds value %q: %w", str, err)
		}
		*s = Seconds(v)
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid seconds value %s: %w", raw, err)
	}
	*s = Seconds(v)
	return nil
}

// Speaker is a known person that can be assigned to conversations
type Speaker struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Color            string  `json:"color"`
	PresetAvatar     string  `json:"presetAvatar"`
	OriginalImageURL *string `json:"originalImageUrl"`
	CroppedImageURL  *string `json:"croppedImageUrl"`
}

// SpeakerAudio describes one per-speaker audio file
type SpeakerAudio struct {
	Speaker   string  `json:"speaker"`
	AudioFile string  `json:"audio_file"`
	Duration  float64 `json:"duration"`
}
