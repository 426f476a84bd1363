// Package http implements the HTTP/WebSocket transport for securecall.
//
// This transport exposes the REST API used by the call screen, the Twilio
// webhooks, and a WebSocket endpoint streaming session events. It is the
// transport browsers talk to.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/securecall/docs"
	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/transport"
)

// DefaultMaxAudioBytes bounds request bodies when Options.MaxAudioBytes is unset.
const DefaultMaxAudioBytes = 25 << 20

// Options configures the HTTP transport.
type Options struct {
	Port int

	// PublicURL is the base URL Twilio uses to reach the webhooks. It is
	// part of the signed payload.
	PublicURL string

	// AllowedOrigins lists browser origins accepted on the WebSocket
	// endpoint. Empty allows same-origin requests only.
	AllowedOrigins []string

	MaxAudioBytes int64

	// WebhookAuthToken enables X-Twilio-Signature checks when set.
	WebhookAuthToken string
}

// Transport implements transport.Transport over HTTP and WebSocket.
type Transport struct {
	opts     Options
	server   *http.Server
	upgrader websocket.Upgrader
}

// New creates a new HTTP transport.
func New(opts Options) *Transport {
	if opts.MaxAudioBytes <= 0 {
		opts.MaxAudioBytes = DefaultMaxAudioBytes
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	t := &Transport{opts: opts}
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     t.checkOrigin,
	}
	return t
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler builds the request router for actions.
func (t *Transport) Handler(actions transport.Actions) http.Handler {
	mux := http.NewServeMux()
	h := &handlers{t: t, actions: actions}

	// Voice and profiles.
	mux.HandleFunc("GET /api/personas", h.personas)
	mux.HandleFunc("POST /api/voice/alter", h.alterVoice)
	mux.HandleFunc("POST /api/profiles", h.saveProfile)
	mux.HandleFunc("GET /api/users/{userID}/profiles", h.listProfiles)
	mux.HandleFunc("GET /api/users/{userID}/profiles/{profileID}", h.getProfile)
	mux.HandleFunc("DELETE /api/users/{userID}/profiles/{profileID}", h.deleteProfile)
	mux.HandleFunc("GET /api/users/{userID}/profiles/{profileID}/audio", h.profileAudio)

	// Telephony.
	mux.HandleFunc("POST /api/telephony/token", h.issueToken)
	mux.HandleFunc("POST /api/calls", h.placeCall)
	mux.HandleFunc("DELETE /api/calls/{callSID}", h.hangupCall)
	mux.Handle("POST /twilio/voice", t.requireTwilioSignature(http.HandlerFunc(h.voiceWebhook)))
	mux.Handle("POST /twilio/status", t.requireTwilioSignature(http.HandlerFunc(h.statusWebhook)))

	// Call screen sessions.
	mux.HandleFunc("GET /api/sessions/{userID}", h.session)
	mux.HandleFunc("POST /api/sessions/{userID}/persona", h.selectPersona)
	mux.HandleFunc("POST /api/sessions/{userID}/protection", h.setProtection)
	mux.HandleFunc("POST /api/sessions/{userID}/recording", h.startRecording)
	mux.HandleFunc("POST /api/sessions/{userID}/recording/stop", h.stopRecording)
	mux.HandleFunc("POST /api/sessions/{userID}/recording/abort", h.abortRecording)
	mux.HandleFunc("POST /api/sessions/{userID}/playback/ended", h.playbackEnded)
	mux.HandleFunc("POST /api/sessions/{userID}/save", h.saveSession)
	mux.HandleFunc("GET /api/sessions/{userID}/events", h.sessionEvents)

	// Swagger UI, serves the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}

// Listen starts the HTTP server and routes incoming requests to actions.
func (t *Transport) Listen(ctx context.Context, actions transport.Actions) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.opts.Port),
		Handler:           t.Handler(actions),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.opts.Port, "public_url", t.opts.PublicURL)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

// checkOrigin accepts configured origins, or same-origin requests when none
// are configured. Requests without an Origin header are not from browsers.
func (t *Transport) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(t.opts.AllowedOrigins) == 0 {
		host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
		return strings.EqualFold(host, r.Host)
	}
	for _, allowed := range t.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// errorBody is the JSON body of transport-level errors.
type errorBody struct {
	Error string            `json:"error"`
	Kind  message.ErrorKind `json:"kind"`
}

// writeResult encodes result with the status code of its failure kind.
func writeResult(w http.ResponseWriter, kind message.ErrorKind, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(transport.HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(result)
}

func writeError(w http.ResponseWriter, kind message.ErrorKind, msg string) {
	writeResult(w, kind, errorBody{Error: msg, Kind: kind})
}

// decodeJSON reads a JSON request body into v. An empty body leaves v as is.
func (t *Transport) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			writeError(w, message.KindInvalid, "Content-Type must be application/json.")
			return false
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, t.maxBodyBytes())
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, message.KindInvalid, "Invalid input.")
		return false
	}
	return true
}

// maxBodyBytes leaves room for the base64 expansion of a data URI.
func (t *Transport) maxBodyBytes() int64 {
	return t.opts.MaxAudioBytes*4/3 + 4096
}
