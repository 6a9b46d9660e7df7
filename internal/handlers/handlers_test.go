package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/conversate/internal/conversation"
	"github.com/codebuildervaibhav/conversate/internal/events"
	"github.com/codebuildervaibhav/conversate/internal/hardware"
	"github.com/codebuildervaibhav/conversate/internal/logging"
	"github.com/codebuildervaibhav/conversate/internal/pipeline"
	"github.com/codebuildervaibhav/conversate/internal/queue"
	"github.com/codebuildervaibhav/conversate/internal/speakers"
	"github.com/codebuildervaibhav/conversate/internal/storage"
	"github.com/codebuildervaibhav/conversate/internal/summary"
	"github.com/codebuildervaibhav/conversate/internal/tokens"
	"github.com/codebuildervaibhav/conversate/internal/transcription"
	"github.com/codebuildervaibhav/conversate/internal/types"
)

type stubDiarizer struct{}

func (stubDiarizer) Diarize(ctx context.Context, req transcription.DiarizeRequest) ([]byte, error) {
	return []byte("SPEAKER c 1 0.000 2.000 <NA> <NA> SPEAKER_00 <NA> <NA>\n" +
		"SPEAKER c 1 2.000 2.000 <NA> <NA> SPEAKER_01 <NA> <NA>\n"), nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audioPath, model, device string) (*types.RawTranscript, error) {
	return &types.RawTranscript{Segments: []types.TranscriptSegment{
		{Start: 0, End: 1.5, Text: "hi"},
		{Start: 2.2, End: 3.5, Text: "hello"},
	}}, nil
}

type stubAudio struct{}

func (stubAudio) Normalize(ctx context.Context, in string) (string, error) {
	out := in + ".wav"
	return out, os.WriteFile(out, []byte("wav"), 0o644)
}

func (stubAudio) ToMP3(ctx context.Context, in, out string) error {
	return os.WriteFile(out, []byte("mp3"), 0o644)
}

func (stubAudio) Duration(ctx context.Context, path string) (float64, error) { return 12, nil }

func (stubAudio) ExtractIntervals(ctx context.Context, in, out string, intervals []types.DiarizationInterval) error {
	return os.WriteFile(out, []byte("mp3"), 0o644)
}

type stubSummarizer struct{}

func (stubSummarizer) Analyze(ctx context.Context, lines []summary.Line) (*summary.Analysis, error) {
	return &summary.Analysis{Summary: fmt.Sprintf("%d lines", len(lines)), Keynotes: map[string][]string{}}, nil
}

type stubDevices struct{}

func (stubDevices) Device(context.Context) string     { return "cpu" }
func (stubDevices) DeviceName(context.Context) string { return "Test CPU" }

type testServer struct {
	app   *fiber.App
	convs *conversation.Service
	dir   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("HUGGINGFACE_TOKEN", "hf_env_token")
	t.Setenv("OPENAI_API_KEY", "")

	dir := t.TempDir()
	db, err := storage.OpenSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	convStore, err := storage.NewSQLiteCollection[types.Conversation](db, storage.KindConversations)
	if err != nil {
		t.Fatal(err)
	}
	speakerStore, err := storage.NewSQLiteCollection[types.Speaker](db, storage.KindSpeakers)
	if err != nil {
		t.Fatal(err)
	}

	log := logging.Nop()
	files := storage.NewLocalStorage(filepath.Join(dir, "conversations"))
	convs := conversation.NewService(convStore, files, log)
	hub := events.NewHub(log)
	tokenStore, err := tokens.NewStore(filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatal(err)
	}

	pool := queue.NewWorkerPool(1, log)
	pool.Start()
	t.Cleanup(func() { pool.Stop(context.Background()) })

	runner := pipeline.NewRunner(pipeline.Deps{
		Conversations: convs,
		Diarizer:      stubDiarizer{},
		Transcriber:   stubTranscriber{},
		Audio:         stubAudio{},
		Summarizer:    stubSummarizer{},
		Devices:       stubDevices{},
		Tokens:        tokenStore,
		Events:        hub,
	}, filepath.Join(dir, "temp"), "http://localhost:8000", log)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(log)})
	Register(app, Deps{
		Conversations:    convs,
		Runner:           runner,
		Speakers:         speakers.NewService(speakerStore, files, filepath.Join(dir, "avatars"), log),
		Pool:             pool,
		Hub:              hub,
		Tokens:           tokenStore,
		Hardware:         hardware.NewProbe(),
		Summarizer:       stubSummarizer{},
		Logs:             logging.NewLogBuffer(10),
		Log:              log,
		ConversationsDir: filepath.Join(dir, "conversations"),
		AvatarsDir:       filepath.Join(dir, "avatars"),
		MaxFileSizeMB:    1,
	})
	return &testServer{app: app, convs: convs, dir: dir}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	return req
}

func jsonRequest(method, target string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return req
}

func multipartRequest(t *testing.T, target string, fields map[string]string, fileField, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(content)
	}
	w.Close()
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, body []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
}

func readEvents(t *testing.T, body []byte) []types.Event {
	t.Helper()
	var evs []types.Event
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		var ev types.Event
		decode(t, scanner.Bytes(), &ev)
		evs = append(evs, ev)
	}
	return evs
}

// initialize creates conversation id with a stored wav
func (s *testServer) initialize(t *testing.T, id string) {
	t.Helper()
	resp, body := s.do(t, formRequest(http.MethodPost, "/conversation/initialize", url.Values{"name": {"Standup"}, "conv_id": {id}}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("initialize: %d %s", resp.StatusCode, body)
	}
	conv, err := s.convs.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.convs.Paths(conv).AudioWAV(), []byte("wav"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestConversationRoutes(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, formRequest(http.MethodPost, "/conversation/initialize", url.Values{"name": {"Standup"}}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.StatusCode, body)
	}
	var created struct {
		Conversation types.Conversation `json:"conversation"`
	}
	decode(t, body, &created)
	if created.Conversation.ID != conversation.IDFromName("Standup") {
		t.Errorf("expected md5 id, got %s", created.Conversation.ID)
	}

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/conversation/"+created.Conversation.ID, nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/conversation/nope", nil))
	var errBody struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	decode(t, body, &errBody)
	if resp.StatusCode != http.StatusNotFound || errBody.Code != "ERR_CONVERSATION_NOT_FOUND" {
		t.Errorf("expected 404 ERR_CONVERSATION_NOT_FOUND, got %d %+v", resp.StatusCode, errBody)
	}

	resp, body = s.do(t, formRequest(http.MethodPost, "/conversations", url.Values{"name": {"No id"}}))
	decode(t, body, &errBody)
	if resp.StatusCode != http.StatusBadRequest || errBody.Error != "id is required." {
		t.Errorf("expected validation error, got %d %+v", resp.StatusCode, errBody)
	}

	resp, _ = s.do(t, formRequest(http.MethodPost, "/conversations", url.Values{"id": {created.Conversation.ID}, "name": {"Dup"}}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate id, got %d", resp.StatusCode)
	}

	resp, body = s.do(t, formRequest(http.MethodPut, "/conversation/"+created.Conversation.ID+"/update-speakers", url.Values{"speakers": {"a, b, a"}}))
	var speakersBody struct {
		Speakers []string `json:"speakers"`
	}
	decode(t, body, &speakersBody)
	if resp.StatusCode != http.StatusOK || len(speakersBody.Speakers) != 2 {
		t.Errorf("expected de-duplicated speakers, got %d %s", resp.StatusCode, body)
	}

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/conversation/health-check/"+created.Conversation.ID, nil))
	var report conversation.HealthReport
	decode(t, body, &report)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(report.Status, "Missing: ") || !report.States.SpeakerAssignment {
		t.Errorf("unexpected health report %d %+v", resp.StatusCode, report)
	}

	resp, _ = s.do(t, httptest.NewRequest(http.MethodDelete, "/conversation/"+created.Conversation.ID, nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected delete 200, got %d", resp.StatusCode)
	}
}

func TestDiarizeStreamsNDJSON(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t, "c1")

	resp, body := s.do(t, formRequest(http.MethodPost, "/diarize/c1", url.Values{"media_type": {"audio"}, "num_speakers": {"2"}}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != NDJSONContentType {
		t.Errorf("expected ndjson, got %s", ct)
	}

	evs := readEvents(t, body)
	if len(evs) < 2 {
		t.Fatalf("expected several events, got %+v", evs)
	}
	if evs[0].Message != "Hugging Face token obtained from environment." {
		t.Errorf("unexpected first event %+v", evs[0])
	}
	if last := evs[len(evs)-1]; last.Status != types.StatusSuccess || last.Message != "Files saved to conversation." {
		t.Errorf("unexpected last event %+v", last)
	}

	conv, _ := s.convs.Get(context.Background(), "c1")
	if !conv.States.Diarization || len(conv.DiarizationProcess.Logs) != len(evs) {
		t.Errorf("expected persisted run log matching the stream, got %+v", conv.DiarizationProcess)
	}
}

func TestDiarize_StreamsErrorForUnknownConversation(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, formRequest(http.MethodPost, "/diarize/ghost", url.Values{}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected streamed response, got %d", resp.StatusCode)
	}
	evs := readEvents(t, body)
	if len(evs) != 1 || evs[0].Status != types.StatusError || evs[0].Message != "Conversation not initialized." {
		t.Errorf("unexpected events %+v", evs)
	}
}

func TestStageInputValidation(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t, "c1")

	tests := []struct {
		name   string
		target string
		form   url.Values
	}{
		{"video media", "/diarize/c1", url.Values{"media_type": {"video"}}},
		{"bad speaker count", "/diarize/c1", url.Values{"num_speakers": {"two"}}},
		{"unknown model", "/transcribe/c1", url.Values{"model_string": {"gigantic"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, formRequest(http.MethodPost, tt.target, tt.form))
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d %s", resp.StatusCode, body)
			}
		})
	}
}

func TestTranscribeThenMerge(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t, "c1")

	resp, body := s.do(t, formRequest(http.MethodPost, "/conversation/chatgeneration/c1", url.Values{}))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before stages, got %d %s", resp.StatusCode, body)
	}

	s.do(t, formRequest(http.MethodPost, "/diarize/c1", url.Values{}))
	_, body = s.do(t, formRequest(http.MethodPost, "/transcribe/c1", url.Values{"model_string": {"base"}}))
	if evs := readEvents(t, body); evs[len(evs)-1].Message != "Transcript saved to conversation." {
		t.Fatalf("unexpected transcription events %+v", evs)
	}

	resp, body = s.do(t, formRequest(http.MethodPost, "/conversation/chatgeneration/c1", url.Values{"selected_speakers": {"Ann,Ben"}}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.StatusCode, body)
	}
	var merged struct {
		Message  string                `json:"message"`
		Segments []types.MergedSegment `json:"merged_segments"`
	}
	decode(t, body, &merged)
	if merged.Message != "Merging complete." || len(merged.Segments) != 2 || merged.Segments[1].Speaker != "Ben" {
		t.Errorf("unexpected merge response %s", body)
	}

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/conversation/diarization-details/c1", nil))
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "SPEAKER_01") {
		t.Errorf("unexpected diarization details %d %s", resp.StatusCode, body)
	}
	resp, body = s.do(t, httptest.NewRequest(http.MethodPost, "/conversation/c1/stats", nil))
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"totalTurns":2`) {
		t.Errorf("unexpected stats %d %s", resp.StatusCode, body)
	}
}

func TestUploadAudio(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t, "c1")

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		content  []byte
		status   int
	}{
		{"missing conv id", map[string]string{}, "a.wav", []byte("RIFF"), http.StatusBadRequest},
		{"video", map[string]string{"conv_id": "c1", "media_type": "video"}, "a.wav", []byte("RIFF"), http.StatusBadRequest},
		{"wrong format", map[string]string{"conv_id": "c1"}, "a.flac", []byte("fLaC"), http.StatusBadRequest},
		{"unknown conversation", map[string]string{"conv_id": "zz"}, "a.wav", []byte("RIFF"), http.StatusNotFound},
		{"ok", map[string]string{"conv_id": "c1", "media_type": "audio"}, "a.mp3", []byte("ID3"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, multipartRequest(t, "/conversation/upload_audio", tt.fields, "file", tt.filename, tt.content))
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d %s", tt.status, resp.StatusCode, body)
			}
		})
	}

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/audio/c1", nil))
	var urls pipeline.AudioURL
	decode(t, body, &urls)
	if resp.StatusCode != http.StatusOK || urls.RelativeURL != "/conversations/c1_Standup/c1.mp3" {
		t.Errorf("unexpected audio url %d %+v", resp.StatusCode, urls)
	}

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, urls.RelativeURL, nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected static mp3 to be served, got %d", resp.StatusCode)
	}
}

func TestProcessStreamsMergedTranscript(t *testing.T) {
	s := newTestServer(t)

	req := multipartRequest(t, "/process", map[string]string{"speaker_names": "Ann,Ben"}, "file", "call.wav", []byte("RIFF"))
	resp, body := s.do(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.StatusCode, body)
	}
	evs := readEvents(t, body)
	last := evs[len(evs)-1]
	if last.Message != "Processing complete." || len(last.MergedTranscript) != 2 || last.MergedTranscript[0].Speaker != "Ann" {
		t.Errorf("unexpected final event %+v", last)
	}

	entries, _ := os.ReadDir(filepath.Join(s.dir, "temp"))
	if len(entries) != 0 {
		t.Errorf("expected job folder removed, found %d entries", len(entries))
	}
}

func TestTokens(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, jsonRequest(http.MethodPost, "/apitokens", map[string]string{"name": "GitHub", "token": "x"}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported token, got %d %s", resp.StatusCode, body)
	}

	resp, body = s.do(t, jsonRequest(http.MethodPost, "/apitokens", map[string]string{"name": tokens.OpenAI, "token": "sk-abcdefghijkl"}))
	var out struct {
		Message string             `json:"message"`
		Tokens  map[string]*string `json:"tokens"`
	}
	decode(t, body, &out)
	if resp.StatusCode != http.StatusOK || out.Message != "OpenAI token updated." {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}
	if masked := out.Tokens[tokens.OpenAI]; masked == nil || *masked != tokens.Mask("sk-abcdefghijkl") {
		t.Errorf("expected masked token, got %v", masked)
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, jsonRequest(http.MethodPost, "/analyze", map[string]any{"transcript": []any{}}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty transcript, got %d", resp.StatusCode)
	}
	resp, _ = s.do(t, jsonRequest(http.MethodPost, "/analyze", map[string]any{"transcript": []map[string]string{{"speaker": "A"}}}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for incomplete line, got %d", resp.StatusCode)
	}

	resp, body := s.do(t, jsonRequest(http.MethodPost, "/analyze", map[string]any{
		"transcript": []map[string]string{{"speaker": "A", "text": "hi"}, {"speaker": "B", "text": "yo"}},
	}))
	var analysis summary.Analysis
	decode(t, body, &analysis)
	if resp.StatusCode != http.StatusOK || analysis.Summary != "2 lines" {
		t.Errorf("unexpected analysis %d %s", resp.StatusCode, body)
	}
}

func TestSpeakerRoutes(t *testing.T) {
	s := newTestServer(t)

	fields := map[string]string{"id": "s1", "name": "Ann", "color": "#ff0000", "presetAvatar": "owl"}
	resp, body := s.do(t, multipartRequest(t, "/speakers", fields, "", "", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.StatusCode, body)
	}
	resp, _ = s.do(t, multipartRequest(t, "/speakers", fields, "", "", nil))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate speaker, got %d", resp.StatusCode)
	}
	resp, _ = s.do(t, multipartRequest(t, "/speakers", map[string]string{"id": "s2", "color": "#000"}, "", "", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without name, got %d", resp.StatusCode)
	}

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/speakers/s1", nil))
	var got struct {
		Speaker types.Speaker `json:"speaker"`
	}
	decode(t, body, &got)
	if resp.StatusCode != http.StatusOK || got.Speaker.PresetAvatar != "owl" {
		t.Errorf("unexpected speaker %d %s", resp.StatusCode, body)
	}

	resp, _ = s.do(t, httptest.NewRequest(http.MethodDelete, "/speakers/s1", nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected delete 200, got %d", resp.StatusCode)
	}
	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/speakers/s1", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestSystemRoutes(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "healthy") {
		t.Errorf("unexpected health %d %s", resp.StatusCode, body)
	}
	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/whisper/models", nil))
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "large-v3-turbo") {
		t.Errorf("unexpected models %d %s", resp.StatusCode, body)
	}
	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/ws/conversations/c1/events", nil))
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("expected 426 without upgrade, got %d", resp.StatusCode)
	}
}

func TestExtractGDriveFileID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://drive.google.com/file/d/1AbC_def-123/view?usp=sharing", "1AbC_def-123"},
		{"https://drive.google.com/open?id=XyZ987", "XyZ987"},
		{"1234567890abcdefghijklmnopqrstu", "1234567890abcdefghijklmnopqrstu"},
		{"https://example.com/audio.mp3", ""},
	}
	for _, tt := range tests {
		if got := extractGDriveFileID(tt.url); got != tt.want {
			t.Errorf("extractGDriveFileID(%q): expected %q, got %q", tt.url, tt.want, got)
		}
	}
}

func TestGDriveImport(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t, "c1")

	drive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "private") {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>sign in</html>"))
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Disposition", `attachment; filename="meeting.mp3"`)
		w.Write([]byte("ID3"))
	}))
	defer drive.Close()

	runner := s.runner(t)
	h := NewGDriveHandler(runner, logging.Nop())
	h.client = drive.Client()
	h.downloadURL = drive.URL + "/%s"

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Nop())})
	app.Post("/conversation/:id/import/gdrive", h.Import)

	tests := []struct {
		url    string
		status int
	}{
		{"https://example.com/nothing", http.StatusBadRequest},
		{"https://drive.google.com/file/d/private/view", http.StatusBadRequest},
		{"https://drive.google.com/file/d/public/view", http.StatusOK},
	}
	for _, tt := range tests {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/conversation/c1/import/gdrive", map[string]string{"url": tt.url}), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.status {
			body, _ := io.ReadAll(resp.Body)
			t.Errorf("%s: expected %d, got %d %s", tt.url, tt.status, resp.StatusCode, body)
		}
		resp.Body.Close()
	}

	conv, _ := s.convs.Get(context.Background(), "c1")
	if !storage.Exists(s.convs.Paths(conv).AudioMP3()) {
		t.Error("expected imported mp3")
	}
}

// runner builds a pipeline runner over the same conversations
func (s *testServer) runner(t *testing.T) *pipeline.Runner {
	t.Helper()
	return pipeline.NewRunner(pipeline.Deps{
		Conversations: s.convs,
		Audio:         stubAudio{},
		Devices:       stubDevices{},
	}, filepath.Join(s.dir, "temp"), "", logging.Nop())
}
