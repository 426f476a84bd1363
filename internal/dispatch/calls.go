package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/session"
	"github.com/nadzzz/securecall/internal/telephony"
)

const (
	msgNotConfigured  = "Calling is not configured. Please contact support."
	msgInvalidNumber  = "Please enter a valid phone number in international format, e.g. +34600000000."
	msgCallActive     = "A call is already in progress."
	msgNoCall         = "There is no active call."
	msgCallFailed     = "Failed to place the call. Please try again later."
	msgHangupFailed   = "Failed to end the call. Please try again."
	msgTokenFailed    = "Failed to connect to the calling service."
	msgSelectProfile  = "Select a voice profile for the call."
	twimlLanguage     = "es-ES"
	twimlBusyMessage  = "Ya hay una llamada en curso."
	twimlNumberPrompt = "El número marcado no es válido."
	sdkIdentityPrefix = "client:"
	twimlHangup       = "<Response><Hangup/></Response>"
)

// IssueToken signs a Voice SDK capability token for identity.
func (d *Dispatcher) IssueToken(_ context.Context, req message.TokenRequest) *message.TokenResult {
	result := &message.TokenResult{}
	identity := strings.TrimSpace(req.Identity)
	if identity == "" {
		result.Fail(message.KindInvalid, msgInvalidInput)
		return result
	}
	if d.tokens == nil {
		result.Fail(message.KindUnavailable, msgNotConfigured)
		return result
	}

	tok, err := d.tokens.Issue(identity)
	if err != nil {
		slog.Error("issue capability token failed", "identity", identity, "error", err)
		if errors.Is(err, telephony.ErrNotConfigured) {
			result.Fail(message.KindUnavailable, msgNotConfigured)
		} else {
			result.Fail(message.KindFailed, msgTokenFailed)
		}
		return result
	}
	result.Token = tok.JWT
	result.Identity = tok.Identity
	result.ExpiresAt = tok.ExpiresAt
	return result
}

// PlaceCall dials req.To from the server and plays the selected voice
// profile once the call is answered. One call per user can be active.
func (d *Dispatcher) PlaceCall(ctx context.Context, req message.CallRequest) *message.CallResult {
	result := &message.CallResult{}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		result.Fail(message.KindInvalid, msgInvalidInput)
		return result
	}
	to, err := telephony.NormalizeNumber(req.To)
	if err != nil {
		result.Fail(message.KindInvalid, msgInvalidNumber)
		return result
	}
	if strings.TrimSpace(req.ProfileID) == "" {
		result.Fail(message.KindInvalid, msgSelectProfile)
		return result
	}
	if d.calls == nil {
		result.Fail(message.KindUnavailable, msgNotConfigured)
		return result
	}
	if snap := d.sessions.Get(userID).Snapshot(); snap.Call != nil {
		result.Fail(message.KindConflict, msgCallActive)
		return result
	}

	profile, failure := d.loadProfile(ctx, userID, req.ProfileID)
	if failure != nil {
		result.Failure = *failure
		return result
	}

	audioURL := d.publicURL + "/api/users/" + url.PathEscape(userID) + "/profiles/" + url.PathEscape(profile.ID) + "/audio"
	twiml, err := telephony.PlayTwiML(audioURL)
	if err != nil {
		slog.Error("render call twiml failed", "error", err)
		result.Fail(message.KindFailed, msgCallFailed)
		return result
	}

	logger := slog.With("user_id", userID, "profile_id", profile.ID)
	call, err := d.calls.MakeCall(ctx, telephony.CallParams{
		To:             to,
		From:           d.callerID,
		Twiml:          twiml,
		StatusCallback: d.publicURL + "/twilio/status",
	})
	if err != nil {
		logger.Error("place call failed", "error", err)
		if errors.Is(err, telephony.ErrNotConfigured) {
			result.Fail(message.KindUnavailable, msgNotConfigured)
		} else {
			result.Fail(message.KindFailed, msgCallFailed)
		}
		return result
	}

	if _, err := d.sessions.BeginCall(userID, call.SID, to); err != nil {
		var finished *session.CallFinishedError
		if errors.As(err, &finished) {
			// The final status callback beat MakeCall's response.
			logger.Info("call finished before it was tracked", "call_sid", call.SID, "status", finished.Status)
			result.CallSID = call.SID
			result.To = to
			result.Status = finished.Status
			return result
		}
		// Another call won the race; do not leave this one ringing.
		logger.Warn("call placed while another call is active, hanging up", "call_sid", call.SID)
		if _, hangErr := d.calls.HangupCall(ctx, call.SID); hangErr != nil {
			logger.Error("hangup of duplicate call failed", "call_sid", call.SID, "error", hangErr)
		}
		result.Fail(message.KindConflict, msgCallActive)
		return result
	}

	logger.Info("call placed", "call_sid", call.SID, "status", call.Status)
	result.CallSID = call.SID
	result.To = to
	result.Status = call.Status
	return result
}

// HangupCall ends a call owned by the user. A call the provider reports as
// already ended is cleared from the session as well.
func (d *Dispatcher) HangupCall(ctx context.Context, req message.HangupRequest) *message.CallResult {
	result := &message.CallResult{}
	userID, sid := strings.TrimSpace(req.UserID), strings.TrimSpace(req.CallSID)
	if userID == "" || sid == "" {
		result.Fail(message.KindInvalid, msgInvalidInput)
		return result
	}

	s, ok := d.sessions.SessionForCall(sid)
	if !ok {
		result.Fail(message.KindNotFound, msgNoCall)
		return result
	}
	snap := s.Snapshot()
	if snap.UserID != userID || snap.Call == nil {
		result.Fail(message.KindNotFound, msgNoCall)
		return result
	}
	if d.calls == nil {
		result.Fail(message.KindUnavailable, msgNotConfigured)
		return result
	}

	logger := slog.With("user_id", userID, "call_sid", sid)
	result.CallSID = sid
	result.To = snap.Call.To
	call, err := d.calls.HangupCall(ctx, sid)
	switch {
	case err == nil:
		result.Status = call.Status
	case telephony.IsCallNotInProgress(err):
		logger.Info("call already ended at the provider")
		result.Status = telephony.CallStatusCompleted
	default:
		logger.Error("hangup failed", "error", err)
		result.Fail(message.KindFailed, msgHangupFailed)
		return result
	}
	if _, err := d.sessions.EndCall(sid); err != nil && !errors.Is(err, session.ErrNoCall) {
		logger.Warn("clearing ended call failed", "error", err)
	}

	logger.Info("call ended", "status", result.Status)
	return result
}

// VoiceTwiML answers the voice webhook of calls started from the browser SDK:
// it dials the requested number and tracks the call in the caller's session.
// The dialed leg reports its status back so the session call ends with it.
func (d *Dispatcher) VoiceTwiML(_ context.Context, hook message.VoiceWebhook) string {
	logger := slog.With("call_sid", hook.CallSID, "from", hook.From)

	to, err := telephony.NormalizeNumber(hook.To)
	if err != nil {
		logger.Warn("voice webhook with invalid number", "to", hook.To)
		return d.sayTwiML(twimlNumberPrompt)
	}

	var statusCallback string
	if userID, ok := strings.CutPrefix(hook.From, sdkIdentityPrefix); ok && userID != "" && hook.CallSID != "" {
		if _, err := d.sessions.BeginCall(userID, hook.CallSID, to); err != nil {
			var finished *session.CallFinishedError
			if errors.As(err, &finished) {
				logger.Info("sdk call finished before it was answered", "status", finished.Status)
				return twimlHangup
			}
			logger.Warn("rejecting second call", "user_id", userID, "error", err)
			return d.sayTwiML(twimlBusyMessage)
		}
		statusCallback = d.publicURL + "/twilio/status"
	}

	twiml, err := telephony.DialTwiML(d.callerID, to, statusCallback)
	if err != nil {
		logger.Error("render dial twiml failed", "error", err)
		return d.sayTwiML(twimlNumberPrompt)
	}
	logger.Info("dialing from browser", "to", to)
	return twiml
}

func (d *Dispatcher) sayTwiML(msg string) string {
	twiml, err := telephony.SayTwiML(twimlLanguage, msg)
	if err != nil {
		return twimlHangup
	}
	return twiml
}

// trackedCallSID resolves the session call a status callback belongs to.
// Callbacks of a dialed leg carry the SDK call as ParentCallSID.
func (d *Dispatcher) trackedCallSID(evt message.CallStatusEvent) string {
	if _, ok := d.sessions.SessionForCall(evt.CallSID); ok || evt.ParentCallSID == "" {
		return evt.CallSID
	}
	return evt.ParentCallSID
}

// CallStatusChanged applies a Twilio status callback to the owning session.
// Final statuses end the call. A final status for a call that is not tracked
// yet is kept until the call is registered. Other statuses for unknown calls
// are ignored.
func (d *Dispatcher) CallStatusChanged(_ context.Context, evt message.CallStatusEvent) {
	sid := d.trackedCallSID(evt)
	logger := slog.With("call_sid", sid, "status", evt.CallStatus)

	if telephony.IsFinalStatus(evt.CallStatus) {
		if _, err := d.sessions.FinishCall(sid, evt.CallStatus); err != nil {
			if errors.Is(err, session.ErrNoCall) {
				logger.Debug("final status for untracked call")
				return
			}
			logger.Warn("ending call failed", "error", err)
			return
		}
		logger.Info("call finished", "duration", evt.Duration)
		return
	}

	s, ok := d.sessions.SessionForCall(sid)
	if !ok {
		logger.Debug("status for unknown call")
		return
	}
	if _, err := s.UpdateCall(sid, evt.CallStatus); err != nil {
		logger.Warn("updating call failed", "error", err)
	}
}
