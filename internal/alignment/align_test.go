package alignment

import (
	"reflect"
	"strings"
	"testing"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

func iv(start, end float64, speaker string) types.DiarizationInterval {
	return types.DiarizationInterval{Start: start, End: end, Speaker: speaker}
}

func seg(start, end float64, text string) types.TranscriptSegment {
	return types.TranscriptSegment{Start: start, End: end, Text: text}
}

func speakersOf(segments []types.CombinedSegment) []string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = s.Speaker
	}
	return out
}

func TestResolveSpeaker(t *testing.T) {
	cases := []struct {
		name      string
		seg       types.TranscriptSegment
		intervals []types.DiarizationInterval
		want      string
	}{
		{
			name:      "largest overlap wins",
			seg:       seg(2, 6, "there"),
			intervals: []types.DiarizationInterval{iv(0, 5, "A"), iv(5, 10, "B")},
			want:      "A",
		},
		{
			name:      "tie keeps first listed interval",
			seg:       seg(4, 6, "x"),
			intervals: []types.DiarizationInterval{iv(5, 10, "B"), iv(0, 5, "A")},
			want:      "B",
		},
		{
			name:      "touching intervals do not overlap",
			seg:       seg(5, 6, "x"),
			intervals: []types.DiarizationInterval{iv(0, 5, "A")},
			want:      types.UnknownSpeaker,
		},
		{
			name:      "no intervals",
			seg:       seg(0, 1, "x"),
			intervals: nil,
			want:      types.UnknownSpeaker,
		},
		{
			name:      "later larger overlap replaces earlier",
			seg:       seg(0, 10, "x"),
			intervals: []types.DiarizationInterval{iv(0, 2, "A"), iv(2, 9, "B"), iv(9, 10, "A")},
			want:      "B",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveSpeaker(tc.seg, tc.intervals); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCombine_NoOverlapIsUnknown(t *testing.T) {
	intervals := []types.DiarizationInterval{iv(100, 110, "A"), iv(120, 130, "B")}
	segments := []types.TranscriptSegment{seg(0, 1, "a"), seg(2, 3, "b"), seg(50, 60, "c")}

	for _, c := range Combine(segments, intervals) {
		if c.Speaker != types.UnknownSpeaker {
			t.Errorf("expected Unknown for %q, got %q", c.Text, c.Speaker)
		}
	}
}

func TestCombine_SortsByStart(t *testing.T) {
	intervals := []types.DiarizationInterval{iv(0, 5, "A"), iv(5, 10, "B")}
	segments := []types.TranscriptSegment{seg(6, 9, "bye"), seg(0, 2, "hi"), seg(2, 6, "there")}

	combined := Combine(segments, intervals)
	if len(combined) != len(segments) {
		t.Fatalf("expected %d segments, got %d", len(segments), len(combined))
	}
	for i := 1; i < len(combined); i++ {
		if combined[i-1].Start > combined[i].Start {
			t.Fatalf("output not sorted at %d: %v", i, combined)
		}
	}
	if got := combined[0].Text; got != "hi" {
		t.Errorf("expected first text 'hi', got %q", got)
	}
}

func TestAlign_Example(t *testing.T) {
	intervals := []types.DiarizationInterval{iv(0, 5, "A"), iv(5, 10, "B")}
	segments := []types.TranscriptSegment{seg(0, 2, "hi"), seg(2, 6, "there"), seg(6, 9, "bye")}

	combined := Combine(segments, intervals)
	if got, want := speakersOf(combined), []string{"A", "A", "B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected speakers %v, got %v", want, got)
	}

	merged := MergeConsecutive(combined)
	want := []types.MergedSegment{
		{Start: 0, End: 6, Speaker: "A", Text: "hi there"},
		{Start: 6, End: 9, Speaker: "B", Text: "bye"},
	}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("expected %v, got %v", want, merged)
	}

	if got := Align(segments, intervals, nil); !reflect.DeepEqual(got, want) {
		t.Errorf("Align: expected %v, got %v", want, got)
	}
}

func TestRemapSpeakers_FewerNamesThanSpeakers(t *testing.T) {
	combined := []types.CombinedSegment{
		{Speaker: "SPEAKER_01"},
		{Speaker: "SPEAKER_00"},
		{Speaker: "SPEAKER_01"},
		{Speaker: "SPEAKER_02"},
		{Speaker: "SPEAKER_00"},
	}

	RemapSpeakers(combined, []string{"Alice", "Bob"})

	want := []string{"Alice", "Bob", "Alice", "SPEAKER_02", "Bob"}
	if got := speakersOf(combined); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRemapSpeakers_UnknownIsPositional(t *testing.T) {
	combined := []types.CombinedSegment{{Speaker: types.UnknownSpeaker}, {Speaker: "SPEAKER_00"}}
	RemapSpeakers(combined, []string{"Alice", "Bob"})

	if got, want := speakersOf(combined), []string{"Alice", "Bob"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestAlign_RemapBeforeMerge(t *testing.T) {
	intervals := []types.DiarizationInterval{iv(0, 5, "SPEAKER_01"), iv(5, 10, "SPEAKER_00")}
	segments := []types.TranscriptSegment{seg(0, 2, "hi"), seg(2, 4, "there"), seg(6, 9, "bye")}

	merged := Align(segments, intervals, []string{"Alice", "Bob"})
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged segments, got %d", len(merged))
	}
	if merged[0].Speaker != "Alice" || merged[1].Speaker != "Bob" {
		t.Errorf("expected Alice then Bob, got %q then %q", merged[0].Speaker, merged[1].Speaker)
	}
}

func TestMergeConsecutive_Empty(t *testing.T) {
	merged := MergeConsecutive(nil)
	if merged == nil || len(merged) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", merged)
	}
}

func TestMergeConsecutive_TrimsOnlyWhenMerging(t *testing.T) {
	combined := []types.CombinedSegment{
		{Start: 0, End: 1, Speaker: "A", Text: " Hello"},
		{Start: 1, End: 2, Speaker: "A", Text: " world "},
		{Start: 2, End: 3, Speaker: "B", Text: " Hi"},
	}

	merged := MergeConsecutive(combined)
	if merged[0].Text != "Hello world" {
		t.Errorf("expected 'Hello world', got %q", merged[0].Text)
	}
	if merged[1].Text != " Hi" {
		t.Errorf("expected single-member run untouched, got %q", merged[1].Text)
	}
	if combined[0].Text != " Hello" || combined[0].End != 1 {
		t.Errorf("input was mutated: %+v", combined[0])
	}
}

func TestMergeConsecutive_NoAdjacentEqualAndIdempotent(t *testing.T) {
	combined := []types.CombinedSegment{
		{Start: 0, End: 1, Speaker: "A", Text: "one"},
		{Start: 1, End: 2, Speaker: "A", Text: "two"},
		{Start: 2, End: 3, Speaker: "B", Text: "three"},
		{Start: 3, End: 4, Speaker: "A", Text: "four"},
		{Start: 4, End: 5, Speaker: "A", Text: "five"},
		{Start: 5, End: 6, Speaker: "A", Text: "six"},
		{Start: 6, End: 7, Speaker: "C", Text: "seven"},
	}

	merged := MergeConsecutive(combined)
	if len(merged) != 4 {
		t.Fatalf("expected 4 runs, got %d", len(merged))
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Speaker == merged[i-1].Speaker {
			t.Errorf("adjacent runs %d and %d share speaker %q", i-1, i, merged[i].Speaker)
		}
	}

	again := MergeConsecutive(merged)
	if !reflect.DeepEqual(again, merged) {
		t.Errorf("merging a merged list changed it: %v -> %v", merged, again)
	}

	var original, joined []string
	for _, c := range combined {
		original = append(original, c.Text)
	}
	for _, m := range merged {
		joined = append(joined, m.Text)
	}
	if strings.Join(original, " ") != strings.Join(joined, " ") {
		t.Errorf("words lost or duplicated: %q vs %q", strings.Join(original, " "), strings.Join(joined, " "))
	}
	if merged[2].End != 6 {
		t.Errorf("expected run end 6, got %v", merged[2].End)
	}
}

func TestSplitNames(t *testing.T) {
	if got, want := SplitNames(" Alice, Bob,, ,Alice "), []string{"Alice", "Bob", "Alice"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := SplitNames(""); len(got) != 0 {
		t.Errorf("expected no names, got %v", got)
	}
	if got, want := UniqueNames("b,a,b,c,a"), []string{"b", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
