package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codebuildervaibhav/conversate/internal/alignment"
	"github.com/codebuildervaibhav/conversate/internal/types"
)

// DiarizeRequest is one diarization call
type DiarizeRequest struct {
	AudioPath   string
	Token       string // Hugging Face token for the pyannote pipeline
	Device      string
	NumSpeakers int // 0 lets the model decide
}

// Diarizer returns the RTTM record of who spoke when
type Diarizer interface {
	Diarize(ctx context.Context, req DiarizeRequest) ([]byte, error)
}

// PyannoteDiarizer calls the pyannote HTTP sidecar
type PyannoteDiarizer struct {
	baseURL string
	client  *http.Client
}

// NewPyannoteDiarizer creates a client for the sidecar at baseURL
func NewPyannoteDiarizer(baseURL string, timeout time.Duration) *PyannoteDiarizer {
	return &PyannoteDiarizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsAvailable checks if the sidecar is reachable
func (p *PyannoteDiarizer) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Diarize uploads the audio and converts the sidecar's answer to RTTM. The
// sidecar may answer with RTTM text or with JSON segments.
func (p *PyannoteDiarizer) Diarize(ctx context.Context, req DiarizeRequest) ([]byte, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if req.Token != "" {
		_ = writer.WriteField("hf_token", req.Token)
	}
	if req.Device != "" {
		_ = writer.WriteField("device", req.Device)
	}
	if req.NumSpeakers > 0 {
		_ = writer.WriteField("num_speakers", strconv.Itoa(req.NumSpeakers))
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/diarize", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("diarization request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read diarization response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("diarization error (status %d): %s", resp.StatusCode, truncate(string(body), 500))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if _, err := alignment.ParseRTTM(bytes.NewReader(body)); err != nil {
			return nil, fmt.Errorf("diarization returned invalid rttm: %w", err)
		}
		return body, nil
	}

	var result pyannoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("diarization error: %s", result.Error)
	}

	fileID := strings.TrimSuffix(filepath.Base(req.AudioPath), filepath.Ext(req.AudioPath))
	var rttm bytes.Buffer
	if err := alignment.WriteRTTM(&rttm, fileID, result.intervals()); err != nil {
		return nil, err
	}
	return rttm.Bytes(), nil
}

type pyannoteResponse struct {
	Segments    []pyannoteSegment `json:"segments"`
	NumSpeakers int               `json:"num_speakers"`
	Error       string            `json:"error,omitempty"`
}

type pyannoteSegment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func (r *pyannoteResponse) intervals() []types.DiarizationInterval {
	out := make([]types.DiarizationInterval, len(r.Segments))
	for i, seg := range r.Segments {
		out[i] = types.DiarizationInterval{Start: seg.StartTime, End: seg.EndTime, Speaker: seg.SpeakerID}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
