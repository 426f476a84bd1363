// Package message defines the request and result types exchanged between the
// transports and the dispatcher.
//
// Results never carry Go errors. A failed action sets Error to a message fit
// for a toast and Kind to a coarse classification transports map to status
// codes.
package message

import (
	"time"

	"github.com/nadzzz/securecall/internal/session"
	"github.com/nadzzz/securecall/internal/storage"
)

// ErrorKind classifies a failed action.
type ErrorKind string

const (
	KindInvalid     ErrorKind = "invalid"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindUnavailable ErrorKind = "unavailable"
	KindFailed      ErrorKind = "failed"
)

// Failure is embedded in every result.
type Failure struct {
	Error string    `json:"error,omitempty"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

// Fail records a user-facing failure.
func (f *Failure) Fail(kind ErrorKind, msg string) {
	f.Kind = kind
	f.Error = msg
}

// Failed reports whether the action failed.
func (f Failure) Failed() bool { return f.Error != "" }

// AlterVoiceRequest asks for a persona version of a recording or of text.
type AlterVoiceRequest struct {
	// Gender is the persona selector ("hero", "incognito", "robot"). The
	// browser form calls it gender.
	Gender string `json:"gender"`

	// Text is plain text to speak, or a "data:" URI carrying a recording.
	Text string `json:"text"`
}

// AlterVoiceResult carries the transformed audio.
type AlterVoiceResult struct {
	AudioDataURI string `json:"audioDataUri,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	Failure
}

// SaveProfileRequest persists generated audio as a voice profile.
type SaveProfileRequest struct {
	UserID   string `json:"userId"`
	Gender   string `json:"gender"`
	AudioSrc string `json:"audioSrc"`
}

// SaveProfileResult reports the saved profile.
type SaveProfileResult struct {
	Success     bool   `json:"success"`
	ProfileName string `json:"profileName,omitempty"`
	ProfileID   string `json:"profileId,omitempty"`
	Failure
}

// ProfileSummary is a voice profile without its audio payload.
type ProfileSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	IsCustom      bool      `json:"isCustom"`
	SecurityLevel string    `json:"securityLevel"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Summarize strips the audio payload from a profile.
func Summarize(p storage.VoiceProfile) ProfileSummary {
	return ProfileSummary{
		ID:            p.ID,
		Name:          p.Name,
		IsCustom:      p.IsCustom,
		SecurityLevel: p.SecurityLevel,
		CreatedAt:     p.CreatedAt,
	}
}

// ListProfilesResult lists a user's profiles, newest first.
type ListProfilesResult struct {
	Profiles []ProfileSummary `json:"profiles"`
	Failure
}

// ProfileResult carries one full profile.
type ProfileResult struct {
	Profile *storage.VoiceProfile `json:"profile,omitempty"`
	Failure
}

// DeleteProfileResult reports a deletion.
type DeleteProfileResult struct {
	Success bool `json:"success"`
	Failure
}

// ProfileAudioResult is the decoded audio of a profile.
type ProfileAudioResult struct {
	Audio       []byte `json:"-"`
	ContentType string `json:"-"`
	Failure
}

// TokenRequest asks for a Voice SDK capability token.
type TokenRequest struct {
	Identity string `json:"identity"`
}

// TokenResult carries a signed capability token.
type TokenResult struct {
	Token     string    `json:"token,omitempty"`
	Identity  string    `json:"identity,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Failure
}

// CallRequest places a server-side call that plays a saved voice profile.
type CallRequest struct {
	UserID    string `json:"userId"`
	To        string `json:"to"`
	ProfileID string `json:"profileId"`
}

// CallResult reports a placed or ended call.
type CallResult struct {
	CallSID string `json:"callSid,omitempty"`
	To      string `json:"to,omitempty"`
	Status  string `json:"status,omitempty"`
	Failure
}

// HangupRequest ends a call owned by the user.
type HangupRequest struct {
	UserID  string `json:"userId"`
	CallSID string `json:"callSid"`
}

// VoiceWebhook is the subset of Twilio's voice webhook parameters used to
// route calls placed from the browser SDK.
type VoiceWebhook struct {
	CallSID string
	From    string // "client:<identity>" for SDK calls
	To      string
}

// CallStatusEvent is a Twilio status callback. ParentCallSID is set for the
// dialed leg of a browser SDK call and names the SDK call.
type CallStatusEvent struct {
	CallSID       string
	ParentCallSID string
	CallStatus    string
	Duration      string
}

// PersonaInfo describes one preset persona for the persona picker.
type PersonaInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// PersonasResult lists the preset personas in display order.
type PersonasResult struct {
	Personas []PersonaInfo `json:"personas"`
}

// SessionResult carries the session state after an action.
type SessionResult struct {
	Session *session.Snapshot `json:"session,omitempty"`
	Failure
}
