// Package tokens keeps third-party API tokens in a .env file and the process
// environment.
package tokens

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
)

// Supported token names
const (
	HuggingFace = "Hugging Face"
	OpenAI      = "OpenAI"
)

var envVars = map[string]string{
	HuggingFace: "HUGGINGFACE_TOKEN",
	OpenAI:      "OPENAI_API_KEY",
}

// Names lists the supported tokens in display order
var Names = []string{HuggingFace, OpenAI}

// EnvVar maps a token name to its environment variable
func EnvVar(name string) (string, bool) {
	v, ok := envVars[name]
	return v, ok
}

// Mask keeps the first and last three characters: "hf_****...****QWX".
// Tokens shorter than seven characters are returned unchanged.
func Mask(token string) string {
	if len(token) < 7 {
		return token
	}
	return token[:3] + "****...****" + token[len(token)-3:]
}

// Store reads and writes tokens
type Store struct {
	envFile string
	mu      sync.Mutex
}

// NewStore loads envFile into the environment without overriding variables
// that are already set. A missing file is fine.
func NewStore(envFile string) (*Store, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return &Store{envFile: envFile}, nil
}

// Get returns the raw token for name, or "" when unset
func (s *Store) Get(name string) string {
	envVar, ok := EnvVar(name)
	if !ok {
		return ""
	}
	return os.Getenv(envVar)
}

// Masked returns every supported token masked; unset tokens are nil
func (s *Store) Masked() map[string]*string {
	out := make(map[string]*string, len(Names))
	for _, name := range Names {
		if v := s.Get(name); v != "" {
			masked := Mask(v)
			out[name] = &masked
		} else {
			out[name] = nil
		}
	}
	return out
}

// Set persists token under name in the env file and the environment
func (s *Store) Set(name, token string) error {
	if name == "" || token == "" {
		return apperr.Validation("ERR_MISSING_TOKEN", "Token name and value must be provided.")
	}
	envVar, ok := EnvVar(name)
	if !ok {
		return apperr.Validation("ERR_UNSUPPORTED_TOKEN", "Unsupported token name.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := godotenv.Read(s.envFile)
	if errors.Is(err, os.ErrNotExist) {
		env = map[string]string{}
	} else if err != nil {
		return apperr.Internal("ERR_TOKEN_STORE", "Failed to read token file.", err)
	}
	env[envVar] = token
	if err := godotenv.Write(env, s.envFile); err != nil {
		return apperr.Internal("ERR_TOKEN_STORE", "Failed to save token.", err)
	}
	if err := os.Chmod(s.envFile, 0o600); err != nil {
		return apperr.Internal("ERR_TOKEN_STORE", "Failed to save token.", err)
	}
	return os.Setenv(envVar, token)
}
