package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codebuildervaibhav/conversate/internal/alignment"
)

// SpeakerAudioDirName holds the per-speaker audio files
const SpeakerAudioDirName = "speakerAudioSegments"

// Paths names every artifact of one conversation
type Paths struct {
	ID  string
	Dir string
}

func (p Paths) AudioWAV() string { return filepath.Join(p.Dir, p.ID+".wav") }
func (p Paths) AudioMP3() string { return filepath.Join(p.Dir, p.ID+".mp3") }
func (p Paths) RTTM() string     { return filepath.Join(p.Dir, p.ID+".rttm") }

func (p Paths) RawTranscript() string {
	return filepath.Join(p.Dir, fmt.Sprintf("rawTranscript_%s.json", p.ID))
}

func (p Paths) Merged() string { return filepath.Join(p.Dir, "merged_transcript.txt") }

func (p Paths) Report() string { return filepath.Join(p.Dir, fmt.Sprintf("report_%s.json", p.ID)) }
func (p Paths) Stats() string  { return filepath.Join(p.Dir, fmt.Sprintf("stats_%s.json", p.ID)) }

func (p Paths) SpeakerAudioDir() string { return filepath.Join(p.Dir, SpeakerAudioDirName) }

// SpeakerLabel is the generic label of the idx-th diarized speaker
func SpeakerLabel(idx int) string { return fmt.Sprintf("SPEAKER_%02d", idx) }

// SpeakerAudio is the file for the idx-th diarized speaker
func (p Paths) SpeakerAudio(idx int) string {
	return filepath.Join(p.SpeakerAudioDir(), fmt.Sprintf("%s_%s.mp3", SpeakerLabel(idx), p.ID))
}

// Audio returns the uploaded audio, preferring wav over mp3
func (p Paths) Audio() (string, bool) {
	for _, path := range []string{p.AudioWAV(), p.AudioMP3()} {
		if fileExists(path) {
			return path, true
		}
	}
	return "", false
}

// SpeakerAudioFiles lists the mp3 files in the speaker audio folder, sorted
func (p Paths) SpeakerAudioFiles() []string {
	entries, err := os.ReadDir(p.SpeakerAudioDir())
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".mp3") {
			files = append(files, filepath.Join(p.SpeakerAudioDir(), e.Name()))
		}
	}
	return files
}

// SpeakerGroups reads the per-speaker intervals of the current RTTM
func (p Paths) SpeakerGroups() ([]alignment.SpeakerIntervals, error) {
	f, err := os.Open(p.RTTM())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return alignment.GroupBySpeaker(f)
}

// SpeakerAudioComplete reports whether the speaker audio folder holds exactly
// one file for each of n speakers
func (p Paths) SpeakerAudioComplete(n int) bool {
	files := p.SpeakerAudioFiles()
	if n == 0 || len(files) != n {
		return false
	}
	have := make(map[string]bool, len(files))
	for _, f := range files {
		have[f] = true
	}
	for i := 0; i < n; i++ {
		if !have[p.SpeakerAudio(i)] {
			return false
		}
	}
	return true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
