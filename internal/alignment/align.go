package alignment

import (
	"sort"
	"strings"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

// ResolveSpeaker returns the speaker of the interval with the largest positive
// overlap with seg. Ties keep the earliest interval; no overlap yields
// types.UnknownSpeaker.
func ResolveSpeaker(seg types.TranscriptSegment, intervals []types.DiarizationInterval) string {
	best := types.UnknownSpeaker
	maxOverlap := 0.0

	for _, iv := range intervals {
		overlap := min(seg.End, iv.End) - max(seg.Start, iv.Start)
		if overlap > 0 && overlap > maxOverlap {
			maxOverlap = overlap
			best = iv.Speaker
		}
	}
	return best
}

// Combine assigns a speaker to every transcript segment and orders the result
// by start time. The output has exactly one entry per input segment.
func Combine(segments []types.TranscriptSegment, intervals []types.DiarizationInterval) []types.CombinedSegment {
	combined := make([]types.CombinedSegment, 0, len(segments))
	for _, seg := range segments {
		combined = append(combined, types.CombinedSegment{
			Start:   seg.Start,
			End:     seg.End,
			Speaker: ResolveSpeaker(seg, intervals),
			Text:    seg.Text,
		})
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Start < combined[j].Start
	})
	return combined
}

// RemapSpeakers renames speakers in place. The i-th distinct label, in order
// of first appearance, becomes names[i]; labels beyond len(names) are kept.
func RemapSpeakers(combined []types.CombinedSegment, names []string) []types.CombinedSegment {
	mapping := make(map[string]string)
	next := 0
	for _, seg := range combined {
		if _, seen := mapping[seg.Speaker]; seen {
			continue
		}
		if next < len(names) {
			mapping[seg.Speaker] = names[next]
		} else {
			mapping[seg.Speaker] = seg.Speaker
		}
		next++
	}

	for i := range combined {
		combined[i].Speaker = mapping[combined[i].Speaker]
	}
	return combined
}

// MergeConsecutive collapses adjacent segments that share a speaker.
// Merged text is the trimmed member texts joined by a single space.
func MergeConsecutive(segments []types.CombinedSegment) []types.MergedSegment {
	merged := []types.MergedSegment{}
	if len(segments) == 0 {
		return merged
	}

	merged = append(merged, segments[0])
	for _, seg := range segments[1:] {
		last := &merged[len(merged)-1]
		if seg.Speaker == last.Speaker {
			last.End = seg.End
			last.Text = strings.TrimSpace(last.Text) + " " + strings.TrimSpace(seg.Text)
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

// Align runs combine, optional remap and merge. Remapping is skipped when
// names is empty.
func Align(segments []types.TranscriptSegment, intervals []types.DiarizationInterval, names []string) []types.MergedSegment {
	combined := Combine(segments, intervals)
	if len(names) > 0 {
		combined = RemapSpeakers(combined, names)
	}
	return MergeConsecutive(combined)
}

// SplitNames turns "Alice, Bob,," into [Alice Bob]
func SplitNames(raw string) []string {
	names := []string{}
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// UniqueNames is SplitNames without duplicates, keeping first occurrences
func UniqueNames(raw string) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, name := range SplitNames(raw) {
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
