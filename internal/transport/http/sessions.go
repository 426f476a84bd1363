package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nadzzz/securecall/internal/audio"
	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

type personaRequest struct {
	Gender string `json:"gender"`
}

type protectionRequest struct {
	Enabled bool `json:"enabled"`
}

type stopRecordingRequest struct {
	// Recording is the captured audio as a data URI.
	Recording string `json:"recording"`
}

type abortRecordingRequest struct {
	Reason string `json:"reason"`
}

func writeSession(w http.ResponseWriter, result *message.SessionResult) {
	writeResult(w, result.Kind, result)
}

// session handles GET /api/sessions/{userID}.
//
// @Summary     Get the call screen session
// @Tags        sessions
// @Produce     json
// @Param       userID  path  string  true  "User ID"
// @Success     200  {object}  message.SessionResult
// @Router      /api/sessions/{userID} [get]
func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	writeSession(w, h.actions.Session(r.PathValue("userID")))
}

// selectPersona handles POST /api/sessions/{userID}/persona.
//
// @Summary     Select the voice persona
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       userID   path  string          true  "User ID"
// @Param       request  body  personaRequest  true  "Persona"
// @Success     200  {object}  message.SessionResult
// @Failure     409  {object}  message.SessionResult  "Not allowed in the current state"
// @Router      /api/sessions/{userID}/persona [post]
func (h *handlers) selectPersona(w http.ResponseWriter, r *http.Request) {
	var req personaRequest
	if !h.t.decodeJSON(w, r, &req) {
		return
	}
	writeSession(w, h.actions.SelectPersona(r.PathValue("userID"), req.Gender))
}

// setProtection handles POST /api/sessions/{userID}/protection.
//
// @Summary     Toggle voice protection
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       userID   path  string             true  "User ID"
// @Param       request  body  protectionRequest  true  "Desired state"
// @Success     200  {object}  message.SessionResult
// @Router      /api/sessions/{userID}/protection [post]
func (h *handlers) setProtection(w http.ResponseWriter, r *http.Request) {
	var req protectionRequest
	if !h.t.decodeJSON(w, r, &req) {
		return
	}
	writeSession(w, h.actions.SetProtection(r.PathValue("userID"), req.Enabled))
}

// startRecording handles POST /api/sessions/{userID}/recording.
//
// @Summary     Start recording
// @Tags        sessions
// @Produce     json
// @Param       userID  path  string  true  "User ID"
// @Success     200  {object}  message.SessionResult
// @Failure     409  {object}  message.SessionResult  "A recording is already active"
// @Router      /api/sessions/{userID}/recording [post]
func (h *handlers) startRecording(w http.ResponseWriter, r *http.Request) {
	writeSession(w, h.actions.StartRecording(r.PathValue("userID")))
}

// stopRecording handles POST /api/sessions/{userID}/recording/stop.
//
// @Summary     Stop recording and transform
// @Description Accepts the recording as JSON ({"recording": "data:..."}) or as a raw audio body.
// @Description The session moves to loading, then to playing or back to idle.
// @Tags        sessions
// @Accept      json
// @Accept      audio/webm
// @Accept      audio/wav
// @Produce     json
// @Param       userID   path  string                true  "User ID"
// @Param       request  body  stopRecordingRequest  true  "Recording"
// @Success     200  {object}  message.SessionResult
// @Failure     400  {object}  message.SessionResult  "Unreadable recording"
// @Failure     502  {object}  message.SessionResult  "Voice backend failure"
// @Router      /api/sessions/{userID}/recording/stop [post]
func (h *handlers) stopRecording(w http.ResponseWriter, r *http.Request) {
	var req stopRecordingRequest

	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/json", "":
		if !h.t.decodeJSON(w, r, &req) {
			return
		}
	default:
		// Raw audio body.
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.t.opts.MaxAudioBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, message.KindInvalid, "The recording is too large.")
				return
			}
			writeError(w, message.KindInvalid, "reading audio: "+err.Error())
			return
		}
		req.Recording = audio.EncodeDataURI(contentType, data)
	}

	writeSession(w, h.actions.StopRecording(r.Context(), r.PathValue("userID"), req.Recording))
}

// abortRecording handles POST /api/sessions/{userID}/recording/abort.
//
// @Summary     Abort recording
// @Description Reports a recorder failure such as denied microphone access.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       userID   path  string                 true  "User ID"
// @Param       request  body  abortRecordingRequest  false  "Reason"
// @Success     200  {object}  message.SessionResult
// @Router      /api/sessions/{userID}/recording/abort [post]
func (h *handlers) abortRecording(w http.ResponseWriter, r *http.Request) {
	var req abortRecordingRequest
	if !h.t.decodeJSON(w, r, &req) {
		return
	}
	writeSession(w, h.actions.AbortRecording(r.PathValue("userID"), req.Reason))
}

// playbackEnded handles POST /api/sessions/{userID}/playback/ended.
//
// @Summary     Report end of playback
// @Tags        sessions
// @Produce     json
// @Param       userID  path  string  true  "User ID"
// @Success     200  {object}  message.SessionResult
// @Router      /api/sessions/{userID}/playback/ended [post]
func (h *handlers) playbackEnded(w http.ResponseWriter, r *http.Request) {
	writeSession(w, h.actions.PlaybackEnded(r.PathValue("userID")))
}

// saveSession handles POST /api/sessions/{userID}/save.
//
// @Summary     Save the generated voice
// @Tags        sessions
// @Produce     json
// @Param       userID  path  string  true  "User ID"
// @Success     200  {object}  message.SessionResult
// @Failure     409  {object}  message.SessionResult  "Nothing to save or already saved"
// @Router      /api/sessions/{userID}/save [post]
func (h *handlers) saveSession(w http.ResponseWriter, r *http.Request) {
	writeSession(w, h.actions.SaveSession(r.Context(), r.PathValue("userID")))
}

// sessionEvents handles GET /api/sessions/{userID}/events.
//
// The first message is the current snapshot. Every accepted transition
// follows as a session.Event. Client messages are ignored.
//
// @Summary     Stream session events
// @Tags        sessions
// @Param       userID  path  string  true  "User ID"
// @Success     101  {object}  session.Event
// @Router      /api/sessions/{userID}/events [get]
func (h *handlers) sessionEvents(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	events, cancel, err := h.actions.Subscribe(userID)
	if err != nil {
		writeError(w, message.KindInvalid, "Invalid input.")
		return
	}
	defer cancel()

	conn, err := h.t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		slog.Debug("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	logger := slog.With("user_id", userID, "remote", r.RemoteAddr)
	logger.Debug("session stream opened")

	ctx, stop := context.WithCancel(r.Context())
	defer stop()
	go readPump(conn, stop)

	if current := h.actions.Session(userID); current.Session != nil {
		if err := writeEvent(conn, session.Event{Snapshot: *current.Session}); err != nil {
			return
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("session stream closed")
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, evt); err != nil {
				logger.Debug("session stream write failed", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed, and
// cancels the stream when the peer goes away.
func readPump(conn *websocket.Conn, stop context.CancelFunc) {
	defer stop()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("session stream read failed", "error", err)
			}
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, evt session.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(evt)
}
