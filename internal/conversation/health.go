package conversation

import (
	"context"
	"strings"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

// HealthReport lists the artifacts a conversation is missing
type HealthReport struct {
	ConversationID string       `json:"conversation_id"`
	Status         string       `json:"status"`
	MissingFiles   []string     `json:"missing_files"`
	States         types.States `json:"states"`
}

// Missing artifact labels
const (
	MissingAudio         = "Audio file (wav or mp3)"
	MissingRTTM          = "RTTM file"
	MissingRawTranscript = "Raw transcript"
	MissingSpeakerAudio  = "Speaker audio segments"
	MissingMerged        = "Merged transcript"
)

// inspect derives the artifact-backed flags of conv from its folder
func inspect(p Paths, conv *types.Conversation) (types.States, []string) {
	states := conv.States
	missing := []string{}

	check := func(ok bool, label string) bool {
		if !ok {
			missing = append(missing, label)
		}
		return ok
	}

	_, hasAudio := p.Audio()
	states.AudioAvailable = check(hasAudio, MissingAudio)
	states.Diarization = check(fileExists(p.RTTM()), MissingRTTM)
	states.Transcript = check(fileExists(p.RawTranscript()), MissingRawTranscript)
	states.Merged = check(fileExists(p.Merged()), MissingMerged)
	groups, _ := p.SpeakerGroups()
	states.SpeakerAudioSegments = check(p.SpeakerAudioComplete(len(groups)), MissingSpeakerAudio)

	// Optional outputs never count as missing.
	states.Report = fileExists(p.Report())
	states.Stats = fileExists(p.Stats())
	states.SpeakerAssignment = len(conv.Speakers) > 0

	return states, missing
}

func healthStatus(missing []string) string {
	if len(missing) == 0 {
		return "All files are present."
	}
	return "Missing: " + strings.Join(missing, ", ")
}

// HealthCheck recomputes every artifact-backed flag from disk and persists it
func (s *Service) HealthCheck(ctx context.Context, id string) (*HealthReport, error) {
	var report *HealthReport
	_, err := s.Mutate(ctx, id, func(c *types.Conversation) error {
		states, missing := inspect(s.Paths(c), c)
		c.States = states
		report = &HealthReport{
			ConversationID: id,
			Status:         healthStatus(missing),
			MissingFiles:   missing,
			States:         states,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("conversation_id", id).Strs("missing", report.MissingFiles).Msg("Health check")
	return report, nil
}

// FileHealth performs the same inspection as HealthCheck without saving
func (s *Service) FileHealth(ctx context.Context, id string) (*HealthReport, error) {
	conv, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	states, missing := inspect(s.Paths(conv), conv)
	return &HealthReport{
		ConversationID: id,
		Status:         healthStatus(missing),
		MissingFiles:   missing,
		States:         states,
	}, nil
}
