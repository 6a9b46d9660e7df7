package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Whisper.Model != "large-v3-turbo" {
		t.Errorf("expected default whisper model, got %q", cfg.Whisper.Model)
	}
	if cfg.Server.PublicURL != "http://localhost:8000" {
		t.Errorf("unexpected public url %q", cfg.Server.PublicURL)
	}
}

func TestLoad_OverridesAndValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  port: 9100
storage:
  backend: redis
  redis_addr: "10.0.0.1:6379"
diarization:
  timeout_seconds: 30
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:9100" {
		t.Errorf("unexpected addr %q", cfg.Addr())
	}
	if cfg.Storage.RedisAddr != "10.0.0.1:6379" {
		t.Errorf("unexpected redis addr %q", cfg.Storage.RedisAddr)
	}
	if cfg.DiarizationTimeout() != 30*time.Second {
		t.Errorf("unexpected timeout %v", cfg.DiarizationTimeout())
	}

	if err := os.WriteFile(path, []byte("storage:\n  backend: mongo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("workers:\n  count: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvPath, path)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers.Count != 7 {
		t.Errorf("expected 7 workers, got %d", cfg.Workers.Count)
	}
}
