package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codebuildervaibhav/conversate/internal/logging"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	mod := time.Now().Add(-age)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()

	oldFile := filepath.Join(dir, "yt_old.mp3")
	newFile := filepath.Join(dir, "yt_new.mp3")
	oldJob := filepath.Join(dir, "process_old")
	for _, p := range []string{oldFile, newFile} {
		if err := os.WriteFile(p, []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(oldJob, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(oldJob, "input.wav"), []byte("RIFF...."), 0o644); err != nil {
		t.Fatal(err)
	}
	touch(t, oldFile, 48*time.Hour)
	touch(t, oldJob, 48*time.Hour)

	s := NewScheduler(dir, 60, 24, logging.Nop())
	res := s.Sweep()

	if res.Removed != 2 {
		t.Errorf("expected 2 entries removed, got %d", res.Removed)
	}
	if res.Bytes != int64(len("audio")+len("RIFF....")) {
		t.Errorf("expected freed bytes to include the job folder, got %d", res.Bytes)
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Errorf("expected recent file to survive: %v", err)
	}
	for _, p := range []string{oldFile, oldJob} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s removed", p)
		}
	}
}

func TestSweep_MissingDir(t *testing.T) {
	s := NewScheduler(filepath.Join(t.TempDir(), "absent"), 60, 24, logging.Nop())
	if res := s.Sweep(); res.Removed != 0 {
		t.Errorf("expected nothing removed, got %d", res.Removed)
	}
}

func TestStopTwice(t *testing.T) {
	s := NewScheduler(t.TempDir(), 60, 24, logging.Nop())
	s.Start()
	s.Stop()
	s.Stop()
}
