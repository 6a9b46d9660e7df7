package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath overrides the default config location
const EnvPath = "CONVERSATE_CONFIG"

// DefaultPath is read when EnvPath is unset
const DefaultPath = "config/config.yaml"

// Config represents the application configuration
type Config struct {
	Server struct {
		Port      int    `yaml:"port"`
		Host      string `yaml:"host"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`

	Storage struct {
		Backend                 string `yaml:"backend"` // sqlite or redis
		Database                string `yaml:"database"`
		RedisAddr               string `yaml:"redis_addr"`
		ConversationsDir        string `yaml:"conversations_dir"`
		AvatarsDir              string `yaml:"avatars_dir"`
		TempDir                 string `yaml:"temp_dir"`
		LegacyConversationsFile string `yaml:"legacy_conversations_file"`
	} `yaml:"storage"`

	Whisper struct {
		Command  string `yaml:"command"`
		Model    string `yaml:"model"`
		Language string `yaml:"language"`
	} `yaml:"whisper"`

	Diarization struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"diarization"`

	Summarization struct {
		BaseURL        string `yaml:"base_url"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"summarization"`

	Tokens struct {
		EnvFile string `yaml:"env_file"`
	} `yaml:"tokens"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"logging"`
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads the file named by CONVERSATE_CONFIG, or DefaultPath
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "conversate.db"
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = "localhost:6379"
	}
	if c.Storage.ConversationsDir == "" {
		c.Storage.ConversationsDir = "conversations"
	}
	if c.Storage.AvatarsDir == "" {
		c.Storage.AvatarsDir = "avatars"
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "temp"
	}

	if c.Whisper.Command == "" {
		c.Whisper.Command = "python"
	}
	if c.Whisper.Model == "" {
		c.Whisper.Model = "large-v3-turbo"
	}
	if c.Whisper.Language == "" {
		c.Whisper.Language = "en"
	}

	if c.Diarization.URL == "" {
		c.Diarization.URL = "http://localhost:8388"
	}
	if c.Diarization.TimeoutSeconds == 0 {
		c.Diarization.TimeoutSeconds = 3600
	}

	if c.Summarization.BaseURL == "" {
		c.Summarization.BaseURL = "https://api.openai.com/v1"
	}
	if c.Summarization.Model == "" {
		c.Summarization.Model = "gpt-4o-mini"
	}
	if c.Summarization.TimeoutSeconds == 0 {
		c.Summarization.TimeoutSeconds = 90
	}

	if c.Tokens.EnvFile == "" {
		c.Tokens.EnvFile = ".env"
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = 2
	}
	if c.Cleanup.IntervalMinutes == 0 {
		c.Cleanup.IntervalMinutes = 60
	}
	if c.Cleanup.MaxAgeHours == 0 {
		c.Cleanup.MaxAgeHours = 24
	}
	if c.GoogleDrive.FolderName == "" {
		c.GoogleDrive.FolderName = "Conversate"
	}
	if c.Limits.MaxFileSizeMB == 0 {
		c.Limits.MaxFileSizeMB = 500
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("storage.backend must be sqlite or redis (got: %s)", c.Storage.Backend)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got: %s)", c.Logging.Format)
	}
	if c.Workers.Count < 1 {
		return fmt.Errorf("workers.count must be positive (got: %d)", c.Workers.Count)
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DiarizationTimeout is the HTTP timeout for the diarization sidecar
func (c *Config) DiarizationTimeout() time.Duration {
	return time.Duration(c.Diarization.TimeoutSeconds) * time.Second
}

// SummarizationTimeout bounds one chat completion call
func (c *Config) SummarizationTimeout() time.Duration {
	return time.Duration(c.Summarization.TimeoutSeconds) * time.Second
}
