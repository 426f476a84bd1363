package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nadzzz/securecall/internal/audio"
	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/persona"
	"github.com/nadzzz/securecall/internal/session"
	"github.com/nadzzz/securecall/internal/storage"
	"github.com/nadzzz/securecall/internal/telephony"
	"github.com/nadzzz/securecall/internal/voice"
)

// --- Fakes ---

type fakeVoice struct {
	mu   sync.Mutex
	got  []voice.Request
	err  error
	wait chan struct{}
}

func (f *fakeVoice) Name() string { return "fake" }
func (f *fakeVoice) Close() error { return nil }
func (f *fakeVoice) Transform(ctx context.Context, req voice.Request) (*voice.Result, error) {
	f.mu.Lock()
	f.got = append(f.got, req)
	f.mu.Unlock()
	if f.wait != nil {
		<-f.wait
	}
	if f.err != nil {
		return nil, f.err
	}
	return &voice.Result{
		AudioDataURI: audio.EncodeDataURI(audio.ContentTypeWAV, audio.PCMToWAV([]byte{1, 2}, 24000, 1, 2)),
		Transcript:   "hola " + string(req.Persona),
	}, nil
}

type memStore struct {
	mu      sync.Mutex
	docs    map[string]storage.VoiceProfile
	putErr  error
	pingErr error
}

func newMemStore() *memStore { return &memStore{docs: make(map[string]storage.VoiceProfile)} }

func (m *memStore) PutVoiceProfile(_ context.Context, r storage.VoiceProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.docs[storage.DocumentPath(r.UserID, r.ID)] = r
	return nil
}

func (m *memStore) GetVoiceProfile(_ context.Context, userID, profileID string) (storage.VoiceProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.docs[storage.DocumentPath(userID, profileID)]
	if !ok {
		return storage.VoiceProfile{}, storage.ErrNotFound
	}
	return r, nil
}

func (m *memStore) ListVoiceProfiles(_ context.Context, userID string) ([]storage.VoiceProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.VoiceProfile
	for _, r := range m.docs {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) DeleteVoiceProfile(_ context.Context, userID, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := storage.DocumentPath(userID, profileID)
	if _, ok := m.docs[path]; !ok {
		return storage.ErrNotFound
	}
	delete(m.docs, path)
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

type fakeTokens struct{ err error }

func (f fakeTokens) Issue(identity string) (*telephony.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &telephony.Token{JWT: "jwt-" + identity, Identity: identity, ExpiresAt: fixedNow.Add(time.Hour)}, nil
}

type fakeCalls struct {
	mu        sync.Mutex
	placed    []telephony.CallParams
	hungUp    []string
	makeErr   error
	hangupErr error
	nextSID   int

	// beforeReturn runs after a call is created and before MakeCall returns.
	beforeReturn func(call *telephony.Call)
}

func (f *fakeCalls) MakeCall(_ context.Context, p telephony.CallParams) (*telephony.Call, error) {
	f.mu.Lock()
	if f.makeErr != nil {
		f.mu.Unlock()
		return nil, f.makeErr
	}
	f.placed = append(f.placed, p)
	f.nextSID++
	call := &telephony.Call{SID: fmt.Sprintf("CA%d", f.nextSID), To: p.To, Status: telephony.CallStatusQueued}
	hook := f.beforeReturn
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return call, nil
}

func (f *fakeCalls) HangupCall(_ context.Context, sid string) (*telephony.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hungUp = append(f.hungUp, sid)
	if f.hangupErr != nil {
		return nil, f.hangupErr
	}
	return &telephony.Call{SID: sid, Status: telephony.CallStatusCompleted}, nil
}

var fixedNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	d     *Dispatcher
	voice *fakeVoice
	store *memStore
	calls *fakeCalls
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{voice: &fakeVoice{}, store: newMemStore(), calls: &fakeCalls{}}
	var ids atomic.Int64
	h.d = New(Options{
		Voice:     h.voice,
		Store:     h.store,
		Tokens:    fakeTokens{},
		Calls:     h.calls,
		CallerID:  "+15005550006",
		PublicURL: "https://securecall.example.com/",
		NewID: func() string {
			return fmt.Sprintf("profile-%d", ids.Add(1))
		},
		Now: func() time.Time { return fixedNow },
	})
	return h
}

var recording = audio.EncodeDataURI("audio/webm", []byte("recorded"))

// --- AlterVoice / SaveProfile ---

func TestAlterVoice(t *testing.T) {
	h := newHarness(t)
	res := h.d.AlterVoice(context.Background(), message.AlterVoiceRequest{Gender: "robot", Text: recording})
	if res.Failed() {
		t.Fatalf("unexpected failure %q", res.Error)
	}
	if !strings.HasPrefix(res.AudioDataURI, "data:audio/wav;base64,") {
		t.Fatalf("unexpected audio %.40s", res.AudioDataURI)
	}
	if got := h.voice.got[0]; got.Persona != persona.Robot || !got.IsAudio() {
		t.Fatalf("unexpected backend request %+v", got)
	}
}

func TestAlterVoiceValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		req  message.AlterVoiceRequest
		want string
	}{
		{message.AlterVoiceRequest{Gender: "villain", Text: "hola"}, "You need to select a voice type."},
		{message.AlterVoiceRequest{Gender: "", Text: ""}, "You need to select a voice type. Text is required."},
		{message.AlterVoiceRequest{Gender: "hero", Text: "  "}, "Text is required."},
		{message.AlterVoiceRequest{Gender: "hero", Text: "data:audio/webm;base64,@@@"}, "The recording could not be read."},
	}
	for _, tt := range tests {
		res := h.d.AlterVoice(context.Background(), tt.req)
		if res.Error != tt.want || res.Kind != message.KindInvalid {
			t.Errorf("AlterVoice(%+v) = %q (%s), want %q", tt.req, res.Error, res.Kind, tt.want)
		}
	}
	if len(h.voice.got) != 0 {
		t.Fatal("invalid requests must not reach the backend")
	}
}

func TestAlterVoiceBackendFailure(t *testing.T) {
	h := newHarness(t)
	h.voice.err = voice.ErrNoMedia
	res := h.d.AlterVoice(context.Background(), message.AlterVoiceRequest{Gender: "hero", Text: "hola"})
	if res.Error != "Failed to generate voice. Please try again later." || res.Kind != message.KindFailed {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSaveProfile(t *testing.T) {
	h := newHarness(t)
	res := h.d.SaveProfile(context.Background(), message.SaveProfileRequest{UserID: "u1", Gender: "incognito", AudioSrc: recording})
	if !res.Success || res.ProfileName != "Mi Voz incognito" || res.ProfileID != "profile-1" {
		t.Fatalf("unexpected result %+v", res)
	}

	got, err := h.store.GetVoiceProfile(context.Background(), "u1", "profile-1")
	if err != nil {
		t.Fatalf("stored profile: %v", err)
	}
	want := storage.VoiceProfile{
		ID: "profile-1", UserID: "u1", Name: "Mi Voz incognito", IsCustom: true, CreatedBy: "u1",
		SecurityLevel: "medium", AudioDataURI: recording, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}
	if got != want {
		t.Fatalf("stored %+v, want %+v", got, want)
	}
}

func TestSaveProfileInvalidInput(t *testing.T) {
	h := newHarness(t)
	for _, req := range []message.SaveProfileRequest{
		{UserID: "", Gender: "hero", AudioSrc: recording},
		{UserID: "u1", Gender: "pirate", AudioSrc: recording},
		{UserID: "u1", Gender: "hero", AudioSrc: "not audio"},
		{UserID: "u1", Gender: "hero", AudioSrc: "data:audio/wav;base64,%%%"},
	} {
		res := h.d.SaveProfile(context.Background(), req)
		if res.Success || res.Error != "Invalid input." {
			t.Errorf("SaveProfile(%+v) = %+v", req, res)
		}
	}
	if h.store.len() != 0 {
		t.Fatal("invalid input must not be stored")
	}
}

func TestSaveProfileStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.putErr = errors.New("disk full")
	res := h.d.SaveProfile(context.Background(), message.SaveProfileRequest{UserID: "u1", Gender: "hero", AudioSrc: recording})
	if res.Success || res.Error != "Failed to save voice profile." {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestProfileQueries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.d.SaveProfile(ctx, message.SaveProfileRequest{UserID: "u1", Gender: "hero", AudioSrc: recording})

	list := h.d.ListProfiles(ctx, "u1")
	if list.Failed() || len(list.Profiles) != 1 || list.Profiles[0].Name != "Mi Voz hero" {
		t.Fatalf("unexpected list %+v", list)
	}
	if other := h.d.ListProfiles(ctx, "u2"); len(other.Profiles) != 0 {
		t.Fatalf("profiles leaked across users: %+v", other)
	}

	got := h.d.GetProfile(ctx, "u1", "profile-1")
	if got.Failed() || got.Profile.AudioDataURI != recording {
		t.Fatalf("unexpected profile %+v", got)
	}
	if miss := h.d.GetProfile(ctx, "u2", "profile-1"); miss.Kind != message.KindNotFound {
		t.Fatalf("expected not found across users, got %+v", miss)
	}

	aud := h.d.ProfileAudio(ctx, "u1", "profile-1")
	if aud.Failed() || aud.ContentType != "audio/webm" || string(aud.Audio) != "recorded" {
		t.Fatalf("unexpected audio %+v", aud)
	}

	if del := h.d.DeleteProfile(ctx, "u1", "profile-1"); !del.Success {
		t.Fatalf("delete: %+v", del)
	}
	if del := h.d.DeleteProfile(ctx, "u1", "profile-1"); del.Kind != message.KindNotFound {
		t.Fatalf("second delete: %+v", del)
	}
}

// --- Telephony ---

func TestIssueToken(t *testing.T) {
	h := newHarness(t)
	res := h.d.IssueToken(context.Background(), message.TokenRequest{Identity: "u1"})
	if res.Failed() || res.Token != "jwt-u1" || res.Identity != "u1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res := h.d.IssueToken(context.Background(), message.TokenRequest{}); res.Kind != message.KindInvalid {
		t.Fatalf("expected invalid, got %+v", res)
	}

	h.d.tokens = fakeTokens{err: fmt.Errorf("missing api_key_sid: %w", telephony.ErrNotConfigured)}
	if res := h.d.IssueToken(context.Background(), message.TokenRequest{Identity: "u1"}); res.Kind != message.KindUnavailable {
		t.Fatalf("expected unavailable, got %+v", res)
	}
}

func TestPlaceCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.d.SaveProfile(ctx, message.SaveProfileRequest{UserID: "u1", Gender: "hero", AudioSrc: recording})

	res := h.d.PlaceCall(ctx, message.CallRequest{UserID: "u1", To: "+34 600 000 000", ProfileID: "profile-1"})
	if res.Failed() || res.CallSID != "CA1" || res.To != "+34600000000" {
		t.Fatalf("unexpected result %+v", res)
	}
	placed := h.calls.placed[0]
	if placed.From != "+15005550006" || placed.StatusCallback != "https://securecall.example.com/twilio/status" {
		t.Fatalf("unexpected call params %+v", placed)
	}
	if !strings.Contains(placed.Twiml, "<Play>https://securecall.example.com/api/users/u1/profiles/profile-1/audio</Play>") {
		t.Fatalf("unexpected twiml %s", placed.Twiml)
	}

	snap := h.d.Session("u1").Session
	if snap.Call == nil || snap.Call.SID != "CA1" || snap.CallTime != "00:00" {
		t.Fatalf("call not tracked in session: %+v", snap)
	}

	again := h.d.PlaceCall(ctx, message.CallRequest{UserID: "u1", To: "+34600000001", ProfileID: "profile-1"})
	if again.Kind != message.KindConflict || len(h.calls.placed) != 1 {
		t.Fatalf("second concurrent call should be rejected: %+v", again)
	}
}

func TestPlaceCallValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tests := []struct {
		req  message.CallRequest
		kind message.ErrorKind
	}{
		{message.CallRequest{UserID: "u1", To: "600", ProfileID: "p"}, message.KindInvalid},
		{message.CallRequest{UserID: "u1", To: "+34600000000"}, message.KindInvalid},
		{message.CallRequest{UserID: "u1", To: "+34600000000", ProfileID: "missing"}, message.KindNotFound},
	}
	for _, tt := range tests {
		if res := h.d.PlaceCall(ctx, tt.req); res.Kind != tt.kind {
			t.Errorf("PlaceCall(%+v) kind = %q, want %q", tt.req, res.Kind, tt.kind)
		}
	}

	h.d.SaveProfile(ctx, message.SaveProfileRequest{UserID: "u1", Gender: "hero", AudioSrc: recording})
	h.calls.makeErr = fmt.Errorf("no auth token: %w", telephony.ErrNotConfigured)
	res := h.d.PlaceCall(ctx, message.CallRequest{UserID: "u1", To: "+34600000000", ProfileID: "profile-1"})
	if res.Kind != message.KindUnavailable || res.Error != "Calling is not configured. Please contact support." {
		t.Fatalf("unexpected result %+v", res)
	}
	if snap := h.d.Session("u1").Session; snap.Call != nil {
		t.Fatal("failed call must not be tracked")
	}
}

func TestHangupAndStatusCallbacks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.d.SaveProfile(ctx, message.SaveProfileRequest{UserID: "u1", Gender: "hero", AudioSrc: recording})
	placed := h.d.PlaceCall(ctx, message.CallRequest{UserID: "u1", To: "+34600000000", ProfileID: "profile-1"})

	h.d.CallStatusChanged(ctx, message.CallStatusEvent{CallSID: placed.CallSID, CallStatus: telephony.CallStatusInProgress})
	if snap := h.d.Session("u1").Session; snap.Call.Status != telephony.CallStatusInProgress {
		t.Fatalf("status not applied: %+v", snap.Call)
	}

	if res := h.d.HangupCall(ctx, message.HangupRequest{UserID: "u2", CallSID: placed.CallSID}); res.Kind != message.KindNotFound {
		t.Fatalf("other users must not hang up the call: %+v", res)
	}
	res := h.d.HangupCall(ctx, message.HangupRequest{UserID: "u1", CallSID: placed.CallSID})
	if res.Failed() || res.Status != telephony.CallStatusCompleted {
		t.Fatalf("unexpected hangup %+v", res)
	}
	if snap := h.d.Session("u1").Session; snap.Call != nil {
		t.Fatal("call should be cleared after hangup")
	}

	// Completed callback after hangup is ignored.
	h.d.CallStatusChanged(ctx, message.CallStatusEvent{CallSID: placed.CallSID, CallStatus: telephony.CallStatusCompleted})
}

func TestVoiceTwiML(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	twiml := h.d.VoiceTwiML(ctx, message.VoiceWebhook{CallSID: "CA9", From: "client:u1", To: "+34600000000"})
	want := `<Dial callerId="+15005550006"><Number statusCallback="https://securecall.example.com/twilio/status" statusCallbackEvent="answered completed">+34600000000</Number></Dial>`
	if !strings.Contains(twiml, want) {
		t.Fatalf("unexpected twiml %s", twiml)
	}
	if snap := h.d.Session("u1").Session; snap.Call == nil || snap.Call.SID != "CA9" {
		t.Fatalf("sdk call not tracked: %+v", snap)
	}

	busy := h.d.VoiceTwiML(ctx, message.VoiceWebhook{CallSID: "CA10", From: "client:u1", To: "+34600000001"})
	if !strings.Contains(busy, "<Say") || strings.Contains(busy, "<Dial") {
		t.Fatalf("second call should be refused: %s", busy)
	}

	bad := h.d.VoiceTwiML(ctx, message.VoiceWebhook{CallSID: "CA11", From: "client:u2", To: "12"})
	if !strings.Contains(bad, "<Say") {
		t.Fatalf("invalid number should be announced: %s", bad)
	}

	h.d.CallStatusChanged(ctx, message.CallStatusEvent{CallSID: "CA9", CallStatus: telephony.CallStatusNoAnswer})
	if snap := h.d.Session("u1").Session; snap.Call != nil {
		t.Fatal("final status should end the call")
	}
}

func TestDialedLegStatusEndsBrowserCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.VoiceTwiML(ctx, message.VoiceWebhook{CallSID: "CA9", From: "client:u1", To: "+34600000000"})

	h.d.CallStatusChanged(ctx, message.CallStatusEvent{CallSID: "CAleg", ParentCallSID: "CA9", CallStatus: telephony.CallStatusInProgress})
	if snap := h.d.Session("u1").Session; snap.Call == nil || snap.Call.Status != telephony.CallStatusInProgress {
		t.Fatalf("dialed leg status not applied: %+v", snap.Call)
	}

	h.d.CallStatusChanged(ctx, message.CallStatusEvent{CallSID: "CAleg", ParentCallSID: "CA9", CallStatus: telephony.CallStatusCompleted})
	if snap := h.d.Session("u1").Session; snap.Call != nil {
		t.Fatalf("dialed leg completion should end the call: %+v", snap.Call)
	}

	next := h.d.VoiceTwiML(ctx, message.VoiceWebhook{CallSID: "CA10", From: "client:u1", To: "+34600000001"})
	if !strings.Contains(next, "<Dial") || strings.Contains(next, "<Say") {
		t.Fatalf("next browser call should be dialed: %s", next)
	}
}

func TestFinalStatusBeforeCallIsTracked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.d.SaveProfile(ctx, message.SaveProfileRequest{UserID: "u1", Gender: "hero", AudioSrc: recording})

	h.calls.beforeReturn = func(call *telephony.Call) {
		h.d.CallStatusChanged(ctx, message.CallStatusEvent{CallSID: call.SID, CallStatus: telephony.CallStatusFailed})
	}
	res := h.d.PlaceCall(ctx, message.CallRequest{UserID: "u1", To: "+34600000000", ProfileID: "profile-1"})
	if res.Failed() || res.CallSID != "CA1" || res.Status != telephony.CallStatusFailed {
		t.Fatalf("unexpected result %+v", res)
	}
	if snap := h.d.Session("u1").Session; snap.Call != nil {
		t.Fatalf("finished call must not stay in the session: %+v", snap.Call)
	}

	h.calls.beforeReturn = nil
	again := h.d.PlaceCall(ctx, message.CallRequest{UserID: "u1", To: "+34600000000", ProfileID: "profile-1"})
	if again.Failed() || again.CallSID != "CA2" {
		t.Fatalf("next call should be placed: %+v", again)
	}
}

func TestHangupOfEndedCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.d.SaveProfile(ctx, message.SaveProfileRequest{UserID: "u1", Gender: "hero", AudioSrc: recording})
	placed := h.d.PlaceCall(ctx, message.CallRequest{UserID: "u1", To: "+34600000000", ProfileID: "profile-1"})

	h.calls.hangupErr = errors.New("connection reset")
	if res := h.d.HangupCall(ctx, message.HangupRequest{UserID: "u1", CallSID: placed.CallSID}); res.Kind != message.KindFailed {
		t.Fatalf("expected failure, got %+v", res)
	}
	if snap := h.d.Session("u1").Session; snap.Call == nil {
		t.Fatal("call should be kept when the hangup could not be delivered")
	}

	h.calls.hangupErr = &telephony.APIError{Code: telephony.ErrCodeCallNotInProgress, Message: "Call is not in-progress. Cannot redirect.", Status: 400}
	res := h.d.HangupCall(ctx, message.HangupRequest{UserID: "u1", CallSID: placed.CallSID})
	if res.Failed() || res.Status != telephony.CallStatusCompleted || res.To != "+34600000000" {
		t.Fatalf("unexpected hangup %+v", res)
	}
	if snap := h.d.Session("u1").Session; snap.Call != nil {
		t.Fatalf("ended call should be cleared: %+v", snap.Call)
	}

	h.calls.hangupErr = nil
	if again := h.d.PlaceCall(ctx, message.CallRequest{UserID: "u1", To: "+34600000000", ProfileID: "profile-1"}); again.Failed() {
		t.Fatalf("next call should be placed: %+v", again)
	}
}

// --- Session workflow ---

func TestRecordingWorkflow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	events, cancel, err := h.d.Subscribe("u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if res := h.d.SelectPersona("u1", "robot"); res.Failed() {
		t.Fatalf("select persona: %+v", res)
	}
	if res := h.d.StartRecording("u1"); res.Failed() || res.Session.State != session.StateRecording {
		t.Fatalf("start: %+v", res)
	}
	if res := h.d.SelectPersona("u1", "hero"); res.Kind != message.KindConflict {
		t.Fatalf("persona change while recording should be rejected: %+v", res)
	}

	res := h.d.StopRecording(ctx, "u1", recording)
	if res.Failed() || res.Session.State != session.StatePlaying {
		t.Fatalf("stop: %+v", res)
	}
	if h.voice.got[0].Persona != persona.Robot {
		t.Fatalf("transform used persona %q", h.voice.got[0].Persona)
	}

	var toast *session.Notification
	for i := 0; i < 4; i++ {
		evt := <-events
		if evt.Notification != nil {
			toast = evt.Notification
		}
	}
	if toast == nil || toast.Title != "Success!" || toast.Description != "Your altered voice has been generated." {
		t.Fatalf("unexpected toast %+v", toast)
	}

	if res := h.d.PlaybackEnded("u1"); res.Session.State != session.StateIdle {
		t.Fatalf("playback ended: %+v", res)
	}

	saved := h.d.SaveSession(ctx, "u1")
	if saved.Failed() || saved.Session.State != session.StateSaved || saved.Session.ProfileID != "profile-1" {
		t.Fatalf("save: %+v", saved)
	}
	if again := h.d.SaveSession(ctx, "u1"); again.Error != "This voice has already been saved." {
		t.Fatalf("second save: %+v", again)
	}
	if h.store.len() != 1 {
		t.Fatalf("expected exactly one stored profile, got %d", h.store.len())
	}
}

func TestStopRecordingFailure(t *testing.T) {
	h := newHarness(t)
	h.voice.err = errors.New("backend down")

	h.d.StartRecording("u1")
	res := h.d.StopRecording(context.Background(), "u1", recording)
	if res.Error != "Failed to generate voice. Please try again later." || res.Session.State != session.StateIdle {
		t.Fatalf("unexpected result %+v", res)
	}

	h.d.StartRecording("u1")
	res = h.d.StopRecording(context.Background(), "u1", "data:audio/webm;base64,")
	if res.Error != "The recording is empty." || res.Kind != message.KindInvalid || res.Session.State != session.StateIdle {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAbortRecording(t *testing.T) {
	h := newHarness(t)
	events, cancel, _ := h.d.Subscribe("u1")
	defer cancel()

	h.d.StartRecording("u1")
	res := h.d.AbortRecording("u1", "")
	if res.Failed() || res.Session.State != session.StateIdle {
		t.Fatalf("abort: %+v", res)
	}
	<-events // recording
	evt := <-events
	if evt.Notification == nil || evt.Notification.Title != "Microphone Error" {
		t.Fatalf("unexpected notification %+v", evt.Notification)
	}
}

func TestProtectionGatesRecording(t *testing.T) {
	h := newHarness(t)
	if res := h.d.SetProtection("u1", false); res.Failed() || res.Session.Protection {
		t.Fatalf("disable protection: %+v", res)
	}
	if res := h.d.StartRecording("u1"); res.Error != "Turn on voice protection first." {
		t.Fatalf("expected protection error, got %+v", res)
	}
	if res := h.d.SelectPersona("u1", "nobody"); res.Error != persona.RequiredMessage {
		t.Fatalf("expected persona error, got %+v", res)
	}
	if res := h.d.Session(" "); res.Kind != message.KindInvalid {
		t.Fatalf("expected invalid user, got %+v", res)
	}
}

func TestSaveSessionWithoutAudio(t *testing.T) {
	h := newHarness(t)
	if res := h.d.SaveSession(context.Background(), "u1"); res.Error != "Record your voice first." {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestConcurrentSaveKeepsOneProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.d.StartRecording("u1")
	h.d.StopRecording(ctx, "u1", recording)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.d.SaveSession(ctx, "u1")
		}()
	}
	wg.Wait()
	if h.store.len() != 1 {
		t.Fatalf("expected one stored profile, got %d", h.store.len())
	}
}

// blockingStore holds PutVoiceProfile until release is closed.
type blockingStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) PutVoiceProfile(ctx context.Context, r storage.VoiceProfile) error {
	close(b.entered)
	<-b.release
	return b.memStore.PutVoiceProfile(ctx, r)
}

func TestRecordingDuringSaveKeepsProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	store := &blockingStore{memStore: h.store, entered: make(chan struct{}), release: make(chan struct{})}
	h.d.store = store

	h.d.StartRecording("u1")
	h.d.StopRecording(ctx, "u1", recording)
	h.d.PlaybackEnded("u1")

	done := make(chan *message.SessionResult)
	go func() { done <- h.d.SaveSession(ctx, "u1") }()
	<-store.entered

	if res := h.d.StartRecording("u1"); res.Error != "This voice is being saved." || res.Kind != message.KindConflict {
		t.Fatalf("recording during save should be rejected: %+v", res)
	}
	if res := h.d.SaveSession(ctx, "u1"); res.Error != "This voice is being saved." {
		t.Fatalf("second save should be rejected: %+v", res)
	}

	close(store.release)
	saved := <-done
	if saved.Failed() || saved.Session.State != session.StateSaved || saved.Session.ProfileID != "profile-1" {
		t.Fatalf("save: %+v", saved)
	}
	if h.store.len() != 1 {
		t.Fatalf("saved profile must be kept, got %d profiles", h.store.len())
	}
	if res := h.d.StartRecording("u1"); res.Failed() {
		t.Fatalf("recording after save: %+v", res)
	}
}

func TestSaveSessionStoreFailureReleasesReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.d.StartRecording("u1")
	h.d.StopRecording(ctx, "u1", recording)

	h.store.putErr = errors.New("disk full")
	if res := h.d.SaveSession(ctx, "u1"); res.Kind != message.KindFailed || res.Session.Saving {
		t.Fatalf("unexpected result %+v", res)
	}

	h.store.putErr = nil
	if res := h.d.SaveSession(ctx, "u1"); res.Failed() || res.Session.State != session.StateSaved {
		t.Fatalf("retry after store failure: %+v", res)
	}
}

func TestPersonas(t *testing.T) {
	h := newHarness(t)
	got := h.d.Personas().Personas
	if len(got) != 3 {
		t.Fatalf("expected three personas, got %+v", got)
	}
	want := []message.PersonaInfo{
		{ID: "hero", Label: "Héroe", Description: persona.Hero.Description()},
		{ID: "incognito", Label: "Incógnito", Description: persona.Incognito.Description()},
		{ID: "robot", Label: "Robot", Description: persona.Robot.Description()},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("persona %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
