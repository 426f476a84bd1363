package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/persona"
	"github.com/nadzzz/securecall/internal/session"
	"github.com/nadzzz/securecall/internal/voice"
)

const (
	msgNotNow         = "That action is not available right now."
	msgProtectionOff  = "Turn on voice protection first."
	msgAlreadySaved   = "This voice has already been saved."
	msgNoAudio        = "Record your voice first."
	msgEmptyRecording = "The recording is empty."
	msgSaveInProgress = "This voice is being saved."
)

// sessionFailure maps session errors to user-facing failures.
func sessionFailure(err error) (message.ErrorKind, string) {
	switch {
	case errors.Is(err, session.ErrProtectionOff):
		return message.KindConflict, msgProtectionOff
	case errors.Is(err, session.ErrAlreadySaved):
		return message.KindConflict, msgAlreadySaved
	case errors.Is(err, session.ErrNoAudio):
		return message.KindConflict, msgNoAudio
	case errors.Is(err, session.ErrSaveInProgress):
		return message.KindConflict, msgSaveInProgress
	case errors.Is(err, session.ErrCallActive):
		return message.KindConflict, msgCallActive
	case errors.Is(err, session.ErrNoCall):
		return message.KindNotFound, msgNoCall
	case errors.Is(err, persona.ErrUnknown):
		return message.KindInvalid, persona.RequiredMessage
	default:
		return message.KindConflict, msgNotNow
	}
}

// sessionResult wraps a transition outcome. Rejected transitions still
// carry the current snapshot so clients can resync.
func sessionResult(snap session.Snapshot, err error) *message.SessionResult {
	result := &message.SessionResult{Session: &snap}
	if err != nil {
		kind, msg := sessionFailure(err)
		result.Fail(kind, msg)
		slog.Debug("session action rejected", "user_id", snap.UserID, "state", snap.State, "error", err)
	}
	return result
}

func (d *Dispatcher) userSession(userID string) (*session.Session, *message.SessionResult) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		result := &message.SessionResult{}
		result.Fail(message.KindInvalid, msgInvalidInput)
		return nil, result
	}
	return d.sessions.Get(userID), nil
}

// Session returns the current workflow state of the user.
func (d *Dispatcher) Session(userID string) *message.SessionResult {
	s, failed := d.userSession(userID)
	if failed != nil {
		return failed
	}
	return sessionResult(s.Snapshot(), nil)
}

// SelectPersona changes the persona used for the next transformation.
func (d *Dispatcher) SelectPersona(userID, gender string) *message.SessionResult {
	s, failed := d.userSession(userID)
	if failed != nil {
		return failed
	}
	p, err := persona.Parse(gender)
	if err != nil {
		return sessionResult(s.Snapshot(), err)
	}
	return sessionResult(s.SelectPersona(p))
}

// SetProtection toggles the voice effect.
func (d *Dispatcher) SetProtection(userID string, enabled bool) *message.SessionResult {
	s, failed := d.userSession(userID)
	if failed != nil {
		return failed
	}
	return sessionResult(s.SetProtection(enabled))
}

// StartRecording marks the single active recording of the user.
func (d *Dispatcher) StartRecording(userID string) *message.SessionResult {
	s, failed := d.userSession(userID)
	if failed != nil {
		return failed
	}
	return sessionResult(s.StartRecording())
}

// AbortRecording reports a recorder failure such as a denied microphone.
func (d *Dispatcher) AbortRecording(userID, reason string) *message.SessionResult {
	s, failed := d.userSession(userID)
	if failed != nil {
		return failed
	}
	snap, err := s.AbortRecording(reason)
	if err == nil {
		slog.Warn("recording aborted", "user_id", snap.UserID, "reason", reason)
	}
	return sessionResult(snap, err)
}

// StopRecording ends the recording and transforms it with the session's
// persona. The session moves to loading while the backend works, then to
// playing on success or back to idle with an error notification.
func (d *Dispatcher) StopRecording(ctx context.Context, userID, recording string) *message.SessionResult {
	s, failed := d.userSession(userID)
	if failed != nil {
		return failed
	}

	snap, err := s.StopRecording()
	if err != nil {
		return sessionResult(snap, err)
	}

	req, err := voice.NewRequest(snap.Persona, recording)
	if err != nil {
		msg := msgInvalidAudio
		if errors.Is(err, voice.ErrEmptyInput) {
			msg = msgEmptyRecording
		}
		return d.failTransform(s, message.KindInvalid, msg)
	}

	res, err := d.transform(ctx, req)
	if err != nil {
		return d.failTransform(s, message.KindFailed, msgVoiceFailed)
	}

	snap, err = s.CompleteTransform(res.AudioDataURI, res.Transcript)
	return sessionResult(snap, err)
}

func (d *Dispatcher) failTransform(s *session.Session, kind message.ErrorKind, msg string) *message.SessionResult {
	snap, err := s.FailTransform(msg)
	result := sessionResult(snap, err)
	if !result.Failed() {
		result.Fail(kind, msg)
	}
	return result
}

// PlaybackEnded returns the session to idle after playback.
func (d *Dispatcher) PlaybackEnded(userID string) *message.SessionResult {
	s, failed := d.userSession(userID)
	if failed != nil {
		return failed
	}
	return sessionResult(s.PlaybackEnded())
}

// SaveSession persists the session's generated audio as a voice profile.
// It succeeds once per generated audio. The audio stays reserved while it is
// written, so recordings and other saves are rejected until it completes.
func (d *Dispatcher) SaveSession(ctx context.Context, userID string) *message.SessionResult {
	s, failed := d.userSession(userID)
	if failed != nil {
		return failed
	}

	audioDataURI, p, err := s.SaveCandidate()
	if err != nil {
		return sessionResult(s.Snapshot(), err)
	}

	snap := s.Snapshot()
	record, err := d.saveProfile(ctx, snap.UserID, p, audioDataURI)
	if err != nil {
		released, relErr := s.ReleaseSave(&session.Notification{Variant: session.VariantDestructive, Title: "Error", Description: msgSaveFailed})
		if relErr != nil {
			slog.Warn("releasing save reservation failed", "user_id", snap.UserID, "error", relErr)
		}
		result := sessionResult(released, nil)
		result.Fail(message.KindFailed, msgSaveFailed)
		return result
	}

	snap, err = s.MarkSaved(record.ID, record.Name)
	if err != nil {
		slog.Error("marking session saved failed", "user_id", snap.UserID, "profile_id", record.ID, "error", err)
	}
	return sessionResult(snap, err)
}

// Subscribe streams the session's events until cancel is called.
func (d *Dispatcher) Subscribe(userID string) (<-chan session.Event, func(), error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil, errors.New("user id is required")
	}
	events, cancel := d.sessions.Get(userID).Subscribe()
	return events, cancel, nil
}
