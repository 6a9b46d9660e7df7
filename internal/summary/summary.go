// Package summary asks an OpenAI-compatible chat model for a conversation
// summary and per-speaker keynotes.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
)

// Line is one speaker turn of a transcript
type Line struct {
	Speaker string `json:"speaker" validate:"required"`
	Text    string `json:"text" validate:"required"`
}

// Analysis is the result of Analyze
type Analysis struct {
	Summary  string              `json:"summary"`
	Keynotes map[string][]string `json:"keynotes"`
}

// Summarizer analyzes transcripts
type Summarizer interface {
	Analyze(ctx context.Context, lines []Line) (*Analysis, error)
}

const (
	summaryPrompt = "You are a conversation analysis assistant. " +
		"Given a transcript of a conversation formatted as chat lines with speaker and text, " +
		"generate a concise summary that captures the main points and overall sentiment of the conversation. " +
		"Provide only the summary with no extra commentary. " +
		"Don't format the text for markdown, just return the text."

	keynotesPrompt = "You are a conversation analysis assistant. " +
		"Given a transcript of a conversation formatted as chat lines (speaker and text), " +
		"produce keynotes for each speaker found in the transcript. For each speaker, generate bullet points that " +
		"highlight key contributions, opinions, or notable points made during the conversation. " +
		"Try to scale the number and length of the keynotes to the speaking time of each speaker and be extensive for the most active speakers. " +
		"Your answer must be formatted as valid JSON where the keys are the speaker names and the values are arrays of bullet point strings. " +
		"Do not include any text outside of a valid JSON object."
)

var (
	fenceRE       = regexp.MustCompile("(?m)^```(?:json)?\n|```$")
	bearerTokenRE = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]+`)
)

// OpenAIClient calls /chat/completions of an OpenAI-compatible API
type OpenAIClient struct {
	baseURL string
	model   string
	timeout time.Duration
	apiKey  func() string
	client  *http.Client
}

// NewOpenAIClient creates a client. apiKey is read on every call so a token
// saved at runtime takes effect immediately.
func NewOpenAIClient(baseURL, model string, timeout time.Duration, apiKey func() string) *OpenAIClient {
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// FormatTranscript renders lines as "speaker: text" rows
func FormatTranscript(lines []Line) string {
	rows := make([]string, len(lines))
	for i, l := range lines {
		rows[i] = l.Speaker + ": " + l.Text
	}
	return strings.Join(rows, "\n")
}

// UniqueSpeakers returns the sorted distinct speakers of lines
func UniqueSpeakers(lines []Line) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lines {
		if !seen[l.Speaker] {
			seen[l.Speaker] = true
			out = append(out, l.Speaker)
		}
	}
	sort.Strings(out)
	return out
}

// ParseKeynotes decodes the keynotes answer, tolerating markdown code fences.
// Unparsable output is reported under the "error" key.
func ParseKeynotes(text string) map[string][]string {
	cleaned := fenceRE.ReplaceAllString(text, "")
	var keynotes map[string][]string
	if err := json.Unmarshal([]byte(cleaned), &keynotes); err != nil || keynotes == nil {
		return map[string][]string{
			"error": {"Failed to parse keynotes JSON. Raw response: " + text},
		}
	}
	return keynotes
}

// Analyze produces a summary and keynotes for the transcript
func (c *OpenAIClient) Analyze(ctx context.Context, lines []Line) (*Analysis, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("ERR_EMPTY_TRANSCRIPT", "Transcript must be a non-empty list of chat lines.")
	}
	for _, l := range lines {
		if l.Speaker == "" || l.Text == "" {
			return nil, apperr.Validation("ERR_INVALID_LINE", "Each chat line must have a speaker and text.")
		}
	}
	key := c.apiKey()
	if key == "" {
		return nil, apperr.Validation("ERR_MISSING_API_KEY", "OpenAI API key not set.")
	}

	transcript := FormatTranscript(lines)

	summary, err := c.complete(ctx, key, summaryPrompt, "Transcript:\n\n"+transcript)
	if err != nil {
		return nil, apperr.Upstream("ERR_SUMMARY", "Error creating summary.", err)
	}

	user := fmt.Sprintf("Transcript:\n\n%s\n\nSpeakers: %s", transcript, strings.Join(UniqueSpeakers(lines), ", "))
	keynotes, err := c.complete(ctx, key, keynotesPrompt, user)
	if err != nil {
		return nil, apperr.Upstream("ERR_KEYNOTES", "Error creating keynotes.", err)
	}

	return &Analysis{
		Summary:  strings.TrimSpace(summary),
		Keynotes: ParseKeynotes(keynotes),
	}, nil
}

func (c *OpenAIClient) complete(ctx context.Context, key, system, user string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("chat completion timeout after %s (model=%s)", c.timeout, c.model)
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat completion status %d: %s", resp.StatusCode, truncate(redact(string(rb), key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return raw.Choices[0].Message.Content, nil
}

func redact(s, key string) string {
	if key != "" {
		s = strings.ReplaceAll(s, key, "[REDACTED]")
	}
	return bearerTokenRE.ReplaceAllString(s, "Bearer [REDACTED]")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
