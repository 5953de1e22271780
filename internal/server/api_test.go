package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sjawhar/interview-practice/internal/audio"
	"github.com/sjawhar/interview-practice/internal/llm"
	"github.com/sjawhar/interview-practice/internal/metadata"
	"github.com/sjawhar/interview-practice/internal/recording"
	"github.com/sjawhar/interview-practice/internal/session"
	"github.com/sjawhar/interview-practice/internal/storage"
	"github.com/sjawhar/interview-practice/internal/transcribe"
)

type practiceStub struct {
	snap  session.Snapshot
	calls []string
	audio []byte
	typed string
	next  bool
	err   error
}

func (p *practiceStub) call(name string) error {
	p.calls = append(p.calls, name)
	return p.err
}

func (p *practiceStub) UserID() string                    { return "user1" }
func (p *practiceStub) Snapshot() session.Snapshot        { return p.snap }
func (p *practiceStub) Start(context.Context) error       { return p.call("start") }
func (p *practiceStub) Back() error                       { return p.call("back") }
func (p *practiceStub) NewQuestion(context.Context) error { return p.call("new_question") }
func (p *practiceStub) TranscribePending(context.Context) error {
	return p.call("transcribe")
}
func (p *practiceStub) Evaluate(context.Context) error { return p.call("evaluate") }

func (p *practiceStub) AddRecording(data []byte) error {
	p.audio = data
	return p.call("record")
}

func (p *practiceStub) SetTypedResponse(text string) error {
	p.typed = text
	return p.call("type")
}

func (p *practiceStub) Submit(_ context.Context, next bool) error {
	p.next = next
	return p.call("submit")
}

type historyStub struct {
	attempts []storage.Attempt
	limit    int
}

func (h *historyStub) ListAttempts(_ string, limit int) ([]storage.Attempt, error) {
	h.limit = limit
	return h.attempts, nil
}

func (h *historyStub) Stats(string) (storage.Stats, error) {
	return storage.Stats{Attempts: len(h.attempts)}, nil
}

type apiFixture struct {
	handler  http.Handler
	practice *practiceStub
	history  *historyStub
	manager  *recording.Manager
	dir      string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	dir := t.TempDir()
	f := &apiFixture{
		practice: &practiceStub{snap: session.Snapshot{UserID: "user1", State: session.QuestionDisplayed, QuestionID: 1, ResponseID: 1, Question: "Why?"}},
		history:  &historyStub{},
		manager:  recording.NewManager(dir, metadata.NewStore(dir), nil),
		dir:      dir,
	}

	h, err := Handler(NewHub(nil), Options{
		Practice:   f.practice,
		Recordings: f.manager,
		History:    f.history,
		Warnings:   func() []string { return []string{"Deepgram API key not configured"} },
	})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	f.handler = h
	return f
}

func (f *apiFixture) do(t *testing.T, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestHandlerRequiresPractice(t *testing.T) {
	if _, err := Handler(NewHub(nil), Options{}); err == nil {
		t.Fatal("expected error without practice session")
	}
}

func TestAPISessionSnapshot(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/api/session", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected application/json content-type, got %q", got)
	}

	var snap map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap["state"] != "question_displayed" || snap["question"] != "Why?" {
		t.Fatalf("unexpected snapshot %s", rr.Body.String())
	}
}

func TestAPIActionsCallController(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/api/session/start", "start"},
		{"/api/session/back", "back"},
		{"/api/question", "new_question"},
		{"/api/transcribe", "transcribe"},
		{"/api/evaluate", "evaluate"},
		{"/api/submit?next=true", "submit"},
	}

	for _, tt := range tests {
		f := newAPIFixture(t)
		rr := f.do(t, http.MethodPost, tt.target, nil, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d: %s", tt.target, rr.Code, rr.Body.String())
		}
		if len(f.practice.calls) != 1 || f.practice.calls[0] != tt.want {
			t.Fatalf("%s: expected call %q, got %#v", tt.target, tt.want, f.practice.calls)
		}
		if tt.want == "submit" && !f.practice.next {
			t.Fatal("expected next=true to be passed to Submit")
		}
	}
}

func TestAPIErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: evaluate", session.ErrBusy), http.StatusConflict},
		{fmt.Errorf("%w: evaluate from idle", session.ErrInvalidTransition), http.StatusConflict},
		{session.ErrNoResponse, http.StatusBadRequest},
		{session.ErrNoTranscript, http.StatusBadRequest},
		{recording.ErrEmptyAudio, http.StatusBadRequest},
		{&llm.GenerationError{Op: "rate response", Err: errors.New("503")}, http.StatusBadGateway},
		{&transcribe.TranscriptionError{Path: "a.wav", Err: errors.New("quota")}, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		f := newAPIFixture(t)
		f.practice.err = tt.err

		rr := f.do(t, http.MethodPost, "/api/evaluate", nil, "")
		if rr.Code != tt.want {
			t.Fatalf("%v: expected status %d, got %d", tt.err, tt.want, rr.Code)
		}

		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["error"] == "" || body["session"] == nil {
			t.Fatalf("expected error and session in body: %s", rr.Body.String())
		}
	}
}

func TestAPIRecordingUploadRaw(t *testing.T) {
	f := newAPIFixture(t)
	wav, _ := audio.WrapPCM([]byte{1, 2, 3, 4}, 16000)

	rr := f.do(t, http.MethodPost, "/api/recording", wav, "audio/wav")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !bytes.Equal(f.practice.audio, wav) {
		t.Fatal("expected wav payload passed through unchanged")
	}
	if strings.Join(f.practice.calls, ",") != "record,transcribe" {
		t.Fatalf("expected record then transcribe, got %#v", f.practice.calls)
	}
}

func TestAPIRecordingUploadPCMIsWrapped(t *testing.T) {
	f := newAPIFixture(t)
	pcm := []byte{9, 8, 7, 6}

	rr := f.do(t, http.MethodPost, "/api/recording?transcribe=false", pcm, "audio/L16; rate=48000")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !audio.IsWAV(f.practice.audio) {
		t.Fatal("expected pcm to be wrapped into wav")
	}
	if got := binary.LittleEndian.Uint32(f.practice.audio[24:28]); got != 48000 {
		t.Fatalf("expected sample rate 48000, got %d", got)
	}
	if strings.Join(f.practice.calls, ",") != "record" {
		t.Fatalf("expected no transcription, got %#v", f.practice.calls)
	}
}

func TestAPIRecordingUploadMultipart(t *testing.T) {
	f := newAPIFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "answer.wav")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("RIFF0000WAVEdata"))
	_ = mw.Close()

	rr := f.do(t, http.MethodPost, "/api/recording?transcribe=false", buf.Bytes(), mw.FormDataContentType())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if string(f.practice.audio) != "RIFF0000WAVEdata" {
		t.Fatalf("unexpected payload %q", f.practice.audio)
	}
}

func TestAPIRecordingUploadEmpty(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/api/recording", nil, "audio/wav")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if len(f.practice.calls) != 0 {
		t.Fatalf("expected controller untouched, got %#v", f.practice.calls)
	}
}

func TestAPITypedResponse(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/api/response", []byte(`{"text":"I would listen first."}`), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if f.practice.typed != "I would listen first." {
		t.Fatalf("unexpected typed response %q", f.practice.typed)
	}

	rr = f.do(t, http.MethodPost, "/api/response", []byte(`not json`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAPIRecordingsListAndAudio(t *testing.T) {
	f := newAPIFixture(t)

	path, rec, err := f.manager.Save([]byte(strings.Repeat("a", 4096)), "user1", 1, 1, "Why?")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rr := f.do(t, http.MethodGet, "/api/recordings", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var list []recordingInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Filename != rec.Filename || list[0].SizeBytes != 4096 {
		t.Fatalf("unexpected list %#v", list)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/recordings/"+rec.Filename+"/audio", nil)
	req.Header.Set("Range", "bytes=0-1023")
	audioRR := httptest.NewRecorder()
	f.handler.ServeHTTP(audioRR, req)

	if audioRR.Code != http.StatusPartialContent {
		t.Fatalf("expected status 206, got %d", audioRR.Code)
	}
	if audioRR.Header().Get("Content-Type") != "audio/wav" {
		t.Fatalf("expected audio/wav, got %q", audioRR.Header().Get("Content-Type"))
	}
	if audioRR.Header().Get("Content-Range") == "" {
		t.Fatal("expected Content-Range header")
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove audio: %v", err)
	}
	rr = f.do(t, http.MethodGet, "/api/recordings/"+rec.Filename+"/audio", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for missing file, got %d", rr.Code)
	}
}

func TestAPIAudioPathTraversalBlocked(t *testing.T) {
	f := newAPIFixture(t)
	if err := os.WriteFile(filepath.Join(f.dir, ".secret"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	rr := f.do(t, http.MethodGet, "/api/recordings/.secret/audio", nil, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestAPIHistory(t *testing.T) {
	f := newAPIFixture(t)
	f.history.attempts = []storage.Attempt{{ID: 1, UserID: "user1", QuestionID: 1, ResponseID: 1, Question: "Why?"}}

	rr := f.do(t, http.MethodGet, "/api/history?limit=5", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if f.history.limit != 5 {
		t.Fatalf("expected limit 5, got %d", f.history.limit)
	}
	if !strings.Contains(rr.Body.String(), `"attempts"`) || !strings.Contains(rr.Body.String(), `"stats"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}

	rr = f.do(t, http.MethodGet, "/api/history?limit=abc", nil, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAPIStatusWarnings(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/api/status", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Deepgram API key not configured") {
		t.Fatalf("expected warnings in body, got %s", rr.Body.String())
	}
}

func TestMetricsRouteMounted(t *testing.T) {
	dir := t.TempDir()
	h, err := Handler(NewHub(nil), Options{
		Practice:   &practiceStub{},
		Recordings: recording.NewManager(dir, metadata.NewStore(dir), nil),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("interview_practice_calls_total 3\n"))
		}),
	})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "interview_practice_calls_total") {
		t.Fatalf("expected metrics body, got %d %q", rr.Code, rr.Body.String())
	}
}
