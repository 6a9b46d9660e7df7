// Package cleanup removes stale job folders and downloads from the temp
// directory.
package cleanup

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler periodically sweeps the temp directory
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	log      zerolog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// Result counts what one sweep removed
type Result struct {
	Removed int
	Bytes   int64
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tempDir:  tempDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		log:      log.With().Str("component", "cleanup").Logger(),
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start sweeps once, then again on every tick until Stop
func (s *Scheduler) Start() {
	s.log.Info().Str("dir", s.tempDir).Msg("Running initial temp file cleanup")
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				return
			}
		}
	}()

	s.log.Info().Dur("interval", s.interval).Dur("max_age", s.maxAge).Msg("Cleanup scheduler started")
}

// Stop ends the periodic sweep. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.log.Info().Msg("Cleanup scheduler stopped")
	})
}

// Sweep removes every top-level entry of the temp directory last modified
// more than maxAge ago. Job folders go as a whole.
func (s *Scheduler) Sweep() Result {
	var res Result
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Msg("Error during cleanup")
		}
		return res
	}

	now := s.now()
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			continue
		}

		path := filepath.Join(s.tempDir, entry.Name())
		size := info.Size()
		if entry.IsDir() {
			size = dirSize(path)
		}
		if err := os.RemoveAll(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("Failed to delete old temp entry")
			continue
		}
		res.Removed++
		res.Bytes += size
		s.log.Debug().Str("name", entry.Name()).Dur("age", age.Round(time.Hour)).Int64("size_kb", size/1024).Msg("Deleted old temp entry")
	}

	if res.Removed > 0 {
		s.log.Info().Int("removed", res.Removed).Float64("freed_mb", float64(res.Bytes)/(1024*1024)).Msg("Cleanup complete")
	}
	return res
}

func dirSize(dir string) int64 {
	var total int64
	filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0o755)
}
