package alignment

import (
	"strings"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

// SpeakerStats summarizes the participation of one speaker
type SpeakerStats struct {
	Speaker       string  `json:"speaker"`
	Turns         int     `json:"turns"`
	Words         int     `json:"words"`
	SpeakingTime  float64 `json:"speakingTime"`
	ShareOfSpeech float64 `json:"shareOfSpeech"`
	LongestTurn   float64 `json:"longestTurn"`
}

// Stats summarizes a merged transcript
type Stats struct {
	Duration   float64        `json:"duration"`
	TotalTurns int            `json:"totalTurns"`
	TotalWords int            `json:"totalWords"`
	Speakers   []SpeakerStats `json:"speakers"`
}

// ComputeStats aggregates merged segments per speaker, in order of first
// appearance.
func ComputeStats(segments []types.MergedSegment) Stats {
	stats := Stats{Speakers: []SpeakerStats{}}
	index := make(map[string]int)

	var talkTotal float64
	for _, seg := range segments {
		i, ok := index[seg.Speaker]
		if !ok {
			i = len(stats.Speakers)
			index[seg.Speaker] = i
			stats.Speakers = append(stats.Speakers, SpeakerStats{Speaker: seg.Speaker})
		}

		length := seg.End - seg.Start
		if length < 0 {
			length = 0
		}
		words := len(strings.Fields(seg.Text))

		sp := &stats.Speakers[i]
		sp.Turns++
		sp.Words += words
		sp.SpeakingTime += length
		if length > sp.LongestTurn {
			sp.LongestTurn = length
		}

		stats.TotalTurns++
		stats.TotalWords += words
		talkTotal += length
		if seg.End > stats.Duration {
			stats.Duration = seg.End
		}
	}

	if talkTotal > 0 {
		for i := range stats.Speakers {
			stats.Speakers[i].ShareOfSpeech = stats.Speakers[i].SpeakingTime / talkTotal
		}
	}
	return stats
}
