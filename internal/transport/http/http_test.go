package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nadzzz/securecall/internal/dispatch"
	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/persona"
	"github.com/nadzzz/securecall/internal/session"
	"github.com/nadzzz/securecall/internal/storage/sqlite"
	"github.com/nadzzz/securecall/internal/telephony"
	"github.com/nadzzz/securecall/internal/voice"
)

const (
	testPublicURL = "https://securecall.example.com"
	testAuthToken = "test-auth-token"
	wavDataURI    = "data:audio/wav;base64,UklGRiQAAABXQVZF"
)

type stubVoice struct {
	mu   sync.Mutex
	last voice.Request
}

func (s *stubVoice) Name() string { return "stub" }

func (s *stubVoice) Transform(_ context.Context, req voice.Request) (*voice.Result, error) {
	s.mu.Lock()
	s.last = req
	s.mu.Unlock()
	return &voice.Result{AudioDataURI: wavDataURI, Transcript: "hola"}, nil
}

func (s *stubVoice) Close() error { return nil }

func (s *stubVoice) lastRequest() voice.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func newTestHandler(t *testing.T, opts Options) (http.Handler, *stubVoice) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "securecall.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	v := &stubVoice{}
	d := dispatch.New(dispatch.Options{
		Voice:     v,
		Store:     store,
		CallerID:  "+15550001111",
		PublicURL: testPublicURL,
	})
	if opts.PublicURL == "" {
		opts.PublicURL = testPublicURL
	}
	return New(opts).Handler(d), v
}

func do(t *testing.T, h http.Handler, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	return do(t, h, method, target, "application/json", payload)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestAlterVoiceAndProfileLifecycle(t *testing.T) {
	h, v := newTestHandler(t, Options{})

	rec := doJSON(t, h, http.MethodPost, "/api/voice/alter", message.AlterVoiceRequest{Gender: "robot", Text: "hola"})
	if rec.Code != http.StatusOK {
		t.Fatalf("alter status = %d: %s", rec.Code, rec.Body)
	}
	altered := decode[message.AlterVoiceResult](t, rec)
	if altered.AudioDataURI != wavDataURI || v.lastRequest().Persona != persona.Robot {
		t.Fatalf("unexpected alter result: %+v", altered)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/profiles", message.SaveProfileRequest{UserID: "u1", Gender: "robot", AudioSrc: altered.AudioDataURI})
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body)
	}
	saved := decode[message.SaveProfileResult](t, rec)
	if !saved.Success || saved.ProfileName != "Mi Voz robot" || saved.ProfileID == "" {
		t.Fatalf("unexpected save result: %+v", saved)
	}

	rec = do(t, h, http.MethodGet, "/api/users/u1/profiles", "", nil)
	list := decode[message.ListProfilesResult](t, rec)
	if len(list.Profiles) != 1 || list.Profiles[0].ID != saved.ProfileID {
		t.Fatalf("unexpected list: %+v", list)
	}

	rec = do(t, h, http.MethodGet, "/api/users/u1/profiles/"+saved.ProfileID+"/audio", "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "audio/wav" {
		t.Fatalf("audio status = %d type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("RIFF")) {
		t.Fatalf("audio body = %q", rec.Body.Bytes())
	}

	rec = do(t, h, http.MethodDelete, "/api/users/u1/profiles/"+saved.ProfileID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodGet, "/api/users/u1/profiles/"+saved.ProfileID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestAlterVoiceValidation(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	rec := doJSON(t, h, http.MethodPost, "/api/voice/alter", message.AlterVoiceRequest{Text: "hola"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	result := decode[message.AlterVoiceResult](t, rec)
	if result.Error != persona.RequiredMessage || result.Kind != message.KindInvalid {
		t.Fatalf("unexpected failure: %+v", result)
	}

	rec = do(t, h, http.MethodPost, "/api/voice/alter", "text/plain", []byte("hola"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-json status = %d", rec.Code)
	}
}

func TestTokenWithoutTelephony(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	rec := doJSON(t, h, http.MethodPost, "/api/telephony/token", message.TokenRequest{Identity: "u1"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
}

func signedForm(t *testing.T, path string, form url.Values, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set(telephony.SignatureHeader, telephony.Signature(token, testPublicURL+path, form))
	}
	return req
}

func TestTwilioWebhooks(t *testing.T) {
	h, _ := newTestHandler(t, Options{WebhookAuthToken: testAuthToken})

	voiceForm := url.Values{"CallSid": {"CA1"}, "From": {"client:u1"}, "To": {"+34600000000"}}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedForm(t, "/twilio/voice", voiceForm, "wrong-token"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("bad signature status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signedForm(t, "/twilio/voice", voiceForm, testAuthToken))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/xml") {
		t.Fatalf("voice status = %d type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "+34600000000") || !strings.Contains(rec.Body.String(), "<Dial") {
		t.Fatalf("twiml = %s", rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `statusCallback="https://securecall.example.com/twilio/status"`) {
		t.Fatalf("dialed leg does not report its status: %s", rec.Body)
	}

	snap := decode[message.SessionResult](t, do(t, h, http.MethodGet, "/api/sessions/u1", "", nil))
	if snap.Session.Call == nil || snap.Session.Call.SID != "CA1" {
		t.Fatalf("call not tracked: %+v", snap.Session)
	}

	// Status callbacks of the dialed leg name the SDK call as ParentCallSid.
	answered := url.Values{"CallSid": {"CAleg"}, "ParentCallSid": {"CA1"}, "CallStatus": {"in-progress"}}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signedForm(t, "/twilio/status", answered, testAuthToken))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status callback = %d", rec.Code)
	}
	snap = decode[message.SessionResult](t, do(t, h, http.MethodGet, "/api/sessions/u1", "", nil))
	if snap.Session.Call == nil || snap.Session.Call.Status != "in-progress" {
		t.Fatalf("dialed leg status not applied: %+v", snap.Session.Call)
	}

	completed := url.Values{"CallSid": {"CAleg"}, "ParentCallSid": {"CA1"}, "CallStatus": {"completed"}, "CallDuration": {"12"}}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signedForm(t, "/twilio/status", completed, testAuthToken))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status callback = %d", rec.Code)
	}

	snap = decode[message.SessionResult](t, do(t, h, http.MethodGet, "/api/sessions/u1", "", nil))
	if snap.Session.Call != nil {
		t.Fatalf("call should have ended: %+v", snap.Session.Call)
	}

	// The next browser call is dialed, not refused as busy.
	next := url.Values{"CallSid": {"CA2"}, "From": {"client:u1"}, "To": {"+34600000001"}}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signedForm(t, "/twilio/voice", next, testAuthToken))
	if !strings.Contains(rec.Body.String(), "<Dial") || strings.Contains(rec.Body.String(), "<Say") {
		t.Fatalf("second browser call twiml = %s", rec.Body)
	}
}

func TestPersonasAndSessionFlags(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	rec := do(t, h, http.MethodGet, "/api/personas", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("personas status = %d", rec.Code)
	}
	list := decode[message.PersonasResult](t, rec)
	if len(list.Personas) != 3 || list.Personas[0].ID != "hero" || list.Personas[0].Label != "Héroe" || list.Personas[1].Label != "Incógnito" {
		t.Fatalf("unexpected personas %+v", list.Personas)
	}

	raw := decode[map[string]map[string]any](t, do(t, h, http.MethodGet, "/api/sessions/u1", "", nil))
	if raw["session"]["canSelectPersona"] != true || raw["session"]["canRecord"] != true {
		t.Fatalf("idle session flags = %v", raw["session"])
	}

	do(t, h, http.MethodPost, "/api/sessions/u1/recording", "", nil)
	raw = decode[map[string]map[string]any](t, do(t, h, http.MethodGet, "/api/sessions/u1", "", nil))
	if raw["session"]["canSelectPersona"] != false || raw["session"]["canRecord"] != true {
		t.Fatalf("recording session flags = %v", raw["session"])
	}
}

func TestRecordingWithRawAudioBody(t *testing.T) {
	h, v := newTestHandler(t, Options{})

	rec := doJSON(t, h, http.MethodPost, "/api/sessions/u1/persona", personaRequest{Gender: "incognito"})
	if rec.Code != http.StatusOK {
		t.Fatalf("persona status = %d: %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodPost, "/api/sessions/u1/recording", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodPost, "/api/sessions/u1/recording", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second start status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/sessions/u1/recording/stop", "audio/webm;codecs=opus", []byte("webm-bytes"))
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d: %s", rec.Code, rec.Body)
	}
	result := decode[message.SessionResult](t, rec)
	if result.Session.State != session.StatePlaying || result.Session.AudioDataURI != wavDataURI {
		t.Fatalf("unexpected session: %+v", result.Session)
	}
	req := v.lastRequest()
	if req.Persona != persona.Incognito || req.Audio == nil || string(req.Audio.Data) != "webm-bytes" {
		t.Fatalf("unexpected voice request: %+v", req)
	}

	rec = do(t, h, http.MethodPost, "/api/sessions/u1/save", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodPost, "/api/sessions/u1/save", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second save status = %d", rec.Code)
	}
}

func TestRecordingTooLarge(t *testing.T) {
	h, _ := newTestHandler(t, Options{MaxAudioBytes: 8})

	do(t, h, http.MethodPost, "/api/sessions/u1/recording", "", nil)
	rec := do(t, h, http.MethodPost, "/api/sessions/u1/recording/stop", "audio/wav", bytes.Repeat([]byte{1}, 64))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
}

func TestSessionEventsWebSocket(t *testing.T) {
	h, _ := newTestHandler(t, Options{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/u1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readEvent := func() session.Event {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var evt session.Event
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("read event: %v", err)
		}
		return evt
	}

	if evt := readEvent(); evt.Snapshot.State != session.StateIdle || evt.Snapshot.UserID != "u1" {
		t.Fatalf("unexpected initial event: %+v", evt)
	}

	body := strings.NewReader(`{"gender":"robot"}`)
	resp, err := http.Post(srv.URL+"/api/sessions/u1/persona", "application/json", body)
	if err != nil {
		t.Fatalf("post persona: %v", err)
	}
	_ = resp.Body.Close()

	if evt := readEvent(); evt.Snapshot.Persona != persona.Robot {
		t.Fatalf("unexpected persona event: %+v", evt)
	}
}

func TestCheckOrigin(t *testing.T) {
	same := New(Options{})
	allowList := New(Options{AllowedOrigins: []string{"https://app.example.com/"}})

	tests := []struct {
		name   string
		t      *Transport
		origin string
		want   bool
	}{
		{"no origin", same, "", true},
		{"same origin", same, "http://securecall.test", true},
		{"cross origin", same, "https://evil.example.com", false},
		{"allowed", allowList, "https://app.example.com", true},
		{"not allowed", allowList, "https://securecall.test", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://securecall.test/api/sessions/u1/events", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := tt.t.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
