// Package alignment merges a diarization timeline and a transcription
// timeline into a single speaker-attributed transcript.
package alignment

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

// RTTM column positions
const (
	fieldStart    = 3
	fieldDuration = 4
	fieldSpeaker  = 7
	minFields     = fieldSpeaker + 1
)

// ParseError reports an RTTM line that could not be parsed
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rttm line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// SpeakerIntervals groups every interval of one speaker
type SpeakerIntervals struct {
	Speaker   string
	Intervals []types.DiarizationInterval
}

// parseLine parses one non-blank RTTM line
func parseLine(lineNo int, line string) (types.DiarizationInterval, error) {
	parts := strings.Fields(line)
	if len(parts) < minFields {
		return types.DiarizationInterval{}, &ParseError{
			Line:   lineNo,
			Text:   line,
			Reason: fmt.Sprintf("expected at least %d fields, got %d", minFields, len(parts)),
		}
	}

	start, err := strconv.ParseFloat(parts[fieldStart], 64)
	if err != nil {
		return types.DiarizationInterval{}, &ParseError{Line: lineNo, Text: line, Reason: "non-numeric start"}
	}
	duration, err := strconv.ParseFloat(parts[fieldDuration], 64)
	if err != nil {
		return types.DiarizationInterval{}, &ParseError{Line: lineNo, Text: line, Reason: "non-numeric duration"}
	}

	return types.DiarizationInterval{
		Start:   start,
		End:     start + duration,
		Speaker: parts[fieldSpeaker],
	}, nil
}

// scanLines calls fn for every non-blank line with its 1-based line number
func scanLines(r io.Reader, fn func(lineNo int, line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read rttm: %w", err)
	}
	return nil
}

// ParseRTTM parses a diarization record for alignment.
// Parsing is strict: the first malformed line aborts with a *ParseError.
func ParseRTTM(r io.Reader) ([]types.DiarizationInterval, error) {
	intervals := []types.DiarizationInterval{}
	err := scanLines(r, func(lineNo int, line string) error {
		iv, err := parseLine(lineNo, line)
		if err != nil {
			return err
		}
		intervals = append(intervals, iv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return intervals, nil
}

// GroupBySpeaker collects intervals per speaker for audio extraction.
// Malformed lines are skipped. Groups are ordered by the first appearance of
// each speaker and keep file order within a group.
func GroupBySpeaker(r io.Reader) ([]SpeakerIntervals, error) {
	var groups []SpeakerIntervals
	index := make(map[string]int)

	err := scanLines(r, func(lineNo int, line string) error {
		iv, err := parseLine(lineNo, line)
		if err != nil {
			return nil
		}
		i, ok := index[iv.Speaker]
		if !ok {
			i = len(groups)
			index[iv.Speaker] = i
			groups = append(groups, SpeakerIntervals{Speaker: iv.Speaker})
		}
		groups[i].Intervals = append(groups[i].Intervals, iv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// WriteRTTM writes intervals as RTTM SPEAKER lines for fileID
func WriteRTTM(w io.Writer, fileID string, intervals []types.DiarizationInterval) error {
	bw := bufio.NewWriter(w)
	for _, iv := range intervals {
		_, err := fmt.Fprintf(bw, "SPEAKER %s 1 %.3f %.3f <NA> <NA> %s <NA> <NA>\n",
			fileID, iv.Start, iv.End-iv.Start, iv.Speaker)
		if err != nil {
			return fmt.Errorf("write rttm: %w", err)
		}
	}
	return bw.Flush()
}
