package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codebuildervaibhav/conversate/internal/alignment"
)

const testRTTM = `SPEAKER call 1 0.000 2.000 <NA> <NA> SPEAKER_00 <NA> <NA>
SPEAKER call 1 2.000 1.500 <NA> <NA> SPEAKER_01 <NA> <NA>
SPEAKER call 1 3.500 1.000 <NA> <NA> SPEAKER_00 <NA> <NA>
`

const testTranscript = `{
  "text": "hello there how are you fine",
  "language": "en",
  "segments": [
    {"id": 0, "start": 0.0, "end": 0.9, "text": " hello"},
    {"id": 1, "start": 1.0, "end": 1.8, "text": " there"},
    {"id": 2, "start": 2.1, "end": 3.2, "text": " how are you"},
    {"id": 3, "start": 3.6, "end": 4.4, "text": " fine"}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAlign(t *testing.T) {
	dir := t.TempDir()
	rttm := writeFile(t, dir, "call.rttm", testRTTM)
	transcript := writeFile(t, dir, "call.json", testTranscript)

	out, err := execute(t, "align", "--rttm", rttm, "--transcript", transcript, "--speakers", "Ann, Ben")
	if err != nil {
		t.Fatalf("align failed: %v", err)
	}

	expected := "[0.00-1.80] Ann: hello there\n" +
		"[2.10-3.20] Ben: how are you\n" +
		"[3.60-4.40] Ann: fine\n"
	if out != expected {
		t.Errorf("expected:\n%s\ngot:\n%s", expected, out)
	}
}

func TestAlign_WritesFile(t *testing.T) {
	dir := t.TempDir()
	rttm := writeFile(t, dir, "call.rttm", testRTTM)
	transcript := writeFile(t, dir, "call.json", testTranscript)
	target := filepath.Join(dir, "out", "merged_transcript.txt")

	out, err := execute(t, "align", "--rttm", rttm, "--transcript", transcript, "--out", target)
	if err != nil {
		t.Fatalf("align failed: %v", err)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}

	f, err := os.Open(target)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	segments, err := alignment.ReadMerged(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 3 || segments[0].Speaker != "SPEAKER_00" {
		t.Errorf("expected unrenamed turns, got %+v", segments)
	}
}

func TestAlign_Errors(t *testing.T) {
	dir := t.TempDir()
	rttm := writeFile(t, dir, "call.rttm", testRTTM)
	badRTTM := writeFile(t, dir, "bad.rttm", "SPEAKER call 1 zero 1.0 <NA> <NA> S <NA> <NA>\n")
	transcript := writeFile(t, dir, "call.json", testTranscript)
	empty := writeFile(t, dir, "empty.json", `{"text": "", "segments": []}`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing flag", []string{"align", "--rttm", rttm}, "transcript"},
		{"malformed rttm", []string{"align", "--rttm", badRTTM, "--transcript", transcript}, "non-numeric start"},
		{"no segments", []string{"align", "--rttm", rttm, "--transcript", empty}, "no timestamped segments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSpeakers(t *testing.T) {
	rttm := writeFile(t, t.TempDir(), "call.rttm", testRTTM)

	out, err := execute(t, "speakers", "--rttm", rttm)
	if err != nil {
		t.Fatalf("speakers failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 speakers, got %q", out)
	}
	if fields := strings.Fields(lines[1]); fields[0] != "SPEAKER_00" || fields[1] != "2" || fields[2] != "3.00s" {
		t.Errorf("unexpected first speaker row %q", lines[1])
	}
}

func TestStats(t *testing.T) {
	merged := writeFile(t, t.TempDir(), "merged_transcript.txt",
		"[0.00-2.00] Ann: hello there\n[2.00-3.00] Ben: hi\n")

	out, err := execute(t, "stats", merged)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	var stats alignment.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if stats.TotalTurns != 2 || len(stats.Speakers) != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
