package alignment

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

var mergedLineRe = regexp.MustCompile(`^\[(-?[0-9.]+)-(-?[0-9.]+)\] ([^:]*): ?(.*)$`)

// FormatMergedLine renders one merged transcript line without a newline
func FormatMergedLine(seg types.MergedSegment) string {
	return fmt.Sprintf("[%.2f-%.2f] %s: %s", seg.Start, seg.End, seg.Speaker, seg.Text)
}

// WriteMerged writes one line per segment
func WriteMerged(w io.Writer, segments []types.MergedSegment) error {
	bw := bufio.NewWriter(w)
	for _, seg := range segments {
		if _, err := bw.WriteString(FormatMergedLine(seg) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FormatMerged renders the whole merged transcript
func FormatMerged(segments []types.MergedSegment) string {
	var b strings.Builder
	_ = WriteMerged(&b, segments)
	return b.String()
}

// ParseMergedLine reads back a line produced by FormatMergedLine
func ParseMergedLine(line string) (types.MergedSegment, bool) {
	m := mergedLineRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return types.MergedSegment{}, false
	}
	start, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return types.MergedSegment{}, false
	}
	end, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return types.MergedSegment{}, false
	}
	return types.MergedSegment{Start: start, End: end, Speaker: m[3], Text: m[4]}, true
}

// ReadMerged parses a merged transcript, ignoring lines it does not recognize
func ReadMerged(r io.Reader) ([]types.MergedSegment, error) {
	segments := []types.MergedSegment{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if seg, ok := ParseMergedLine(scanner.Text()); ok {
			segments = append(segments, seg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read merged transcript: %w", err)
	}
	return segments, nil
}

// SecondsToString formats 3672 as "1h 1m 12s"
func SecondsToString(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}
