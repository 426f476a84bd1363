// Package dispatch implements the securecall server actions.
//
// The dispatcher receives requests from transports, validates their shape,
// and forwards them to the voice backend, the profile store, Twilio and the
// session manager. Every failure is logged and converted into a result with a
// user-facing message; nothing is retried and transports never see a Go error.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/securecall/internal/audio"
	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/persona"
	"github.com/nadzzz/securecall/internal/session"
	"github.com/nadzzz/securecall/internal/storage"
	"github.com/nadzzz/securecall/internal/telephony"
	"github.com/nadzzz/securecall/internal/voice"
)

// User-facing messages.
const (
	msgVoiceFailed     = "Failed to generate voice. Please try again later."
	msgTextRequired    = "Text is required."
	msgInvalidAudio    = "The recording could not be read."
	msgInvalidInput    = "Invalid input."
	msgSaveFailed      = "Failed to save voice profile."
	msgProfileNotFound = "Voice profile not found."
	msgLoadFailed      = "Failed to load voice profiles."
	msgDeleteFailed    = "Failed to delete voice profile."
)

// TokenIssuer signs Voice SDK capability tokens.
type TokenIssuer interface {
	Issue(identity string) (*telephony.Token, error)
}

// CallClient places and ends calls through the telephony provider.
type CallClient interface {
	MakeCall(ctx context.Context, params telephony.CallParams) (*telephony.Call, error)
	HangupCall(ctx context.Context, callSID string) (*telephony.Call, error)
}

// Options wires the dispatcher's collaborators.
type Options struct {
	Voice    voice.Transformer
	Store    storage.VoiceProfileStore
	Tokens   TokenIssuer
	Calls    CallClient
	Sessions *session.Manager

	// CallerID is the verified number calls are placed from.
	CallerID string

	// PublicURL is the externally reachable base URL used in Twilio
	// callbacks and audio links.
	PublicURL string

	// VoiceTimeout bounds a single transformation. Zero means no extra bound.
	VoiceTimeout time.Duration

	NewID func() string
	Now   func() time.Time
}

// Dispatcher is the central action handler.
type Dispatcher struct {
	voice        voice.Transformer
	store        storage.VoiceProfileStore
	tokens       TokenIssuer
	calls        CallClient
	sessions     *session.Manager
	callerID     string
	publicURL    string
	voiceTimeout time.Duration
	newID        func() string
	now          func() time.Time
}

// New creates a new Dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		voice:        opts.Voice,
		store:        opts.Store,
		tokens:       opts.Tokens,
		calls:        opts.Calls,
		sessions:     opts.Sessions,
		callerID:     opts.CallerID,
		publicURL:    strings.TrimRight(opts.PublicURL, "/"),
		voiceTimeout: opts.VoiceTimeout,
		newID:        opts.NewID,
		now:          opts.Now,
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.sessions == nil {
		d.sessions = session.NewManager(d.now)
	}
	return d
}

// AlterVoice transforms a recording (or text) with the requested persona.
// Validation messages are joined with spaces.
func (d *Dispatcher) AlterVoice(ctx context.Context, req message.AlterVoiceRequest) *message.AlterVoiceResult {
	result := &message.AlterVoiceResult{}

	var problems []string
	p, err := persona.Parse(req.Gender)
	if err != nil {
		problems = append(problems, persona.RequiredMessage)
	}
	var vreq voice.Request
	if err == nil {
		vreq, err = voice.NewRequest(p, req.Text)
		switch {
		case errors.Is(err, voice.ErrEmptyInput):
			problems = append(problems, msgTextRequired)
		case err != nil:
			problems = append(problems, msgInvalidAudio)
		}
	} else if strings.TrimSpace(req.Text) == "" {
		problems = append(problems, msgTextRequired)
	}
	if len(problems) > 0 {
		result.Fail(message.KindInvalid, strings.Join(problems, " "))
		return result
	}

	res, err := d.transform(ctx, vreq)
	if err != nil {
		result.Fail(message.KindFailed, msgVoiceFailed)
		return result
	}
	result.AudioDataURI = res.AudioDataURI
	result.Transcript = res.Transcript
	return result
}

// transform runs the voice backend under the configured timeout and logs
// the outcome.
func (d *Dispatcher) transform(ctx context.Context, req voice.Request) (*voice.Result, error) {
	start := d.now()
	logger := slog.With("persona", req.Persona, "backend", d.voice.Name(), "audio_input", req.IsAudio())
	logger.Info("voice transform started")

	if d.voiceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.voiceTimeout)
		defer cancel()
	}
	res, err := d.voice.Transform(ctx, req)
	if err != nil {
		logger.Error("voice transform failed", "error", err)
		return nil, err
	}
	logger.Info("voice transform complete", "duration", d.now().Sub(start), "transcript_length", len(res.Transcript))
	return res, nil
}

// SaveProfile writes the audio as a new custom profile of the user.
func (d *Dispatcher) SaveProfile(ctx context.Context, req message.SaveProfileRequest) *message.SaveProfileResult {
	result := &message.SaveProfileResult{}

	userID := strings.TrimSpace(req.UserID)
	p, err := persona.Parse(req.Gender)
	if userID == "" || err != nil || !audio.IsDataURI(req.AudioSrc) {
		result.Fail(message.KindInvalid, msgInvalidInput)
		return result
	}
	if _, err := audio.ParseDataURI(req.AudioSrc); err != nil {
		result.Fail(message.KindInvalid, msgInvalidInput)
		return result
	}

	record, err := d.saveProfile(ctx, userID, p, req.AudioSrc)
	if err != nil {
		result.Fail(message.KindFailed, msgSaveFailed)
		return result
	}
	result.Success = true
	result.ProfileName = record.Name
	result.ProfileID = record.ID
	return result
}

func (d *Dispatcher) saveProfile(ctx context.Context, userID string, p persona.Persona, audioDataURI string) (storage.VoiceProfile, error) {
	now := d.now().UTC()
	record := storage.VoiceProfile{
		ID:            d.newID(),
		UserID:        userID,
		Name:          p.ProfileName(),
		IsCustom:      true,
		CreatedBy:     userID,
		SecurityLevel: storage.SecurityLevelMedium,
		AudioDataURI:  audioDataURI,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := d.store.PutVoiceProfile(ctx, record); err != nil {
		slog.Error("save voice profile failed", "user_id", userID, "path", storage.DocumentPath(userID, record.ID), "error", err)
		return storage.VoiceProfile{}, err
	}
	slog.Info("voice profile saved", "user_id", userID, "profile_id", record.ID, "name", record.Name)
	return record, nil
}

// ListProfiles returns the user's profiles without their audio.
func (d *Dispatcher) ListProfiles(ctx context.Context, userID string) *message.ListProfilesResult {
	result := &message.ListProfilesResult{Profiles: []message.ProfileSummary{}}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		result.Fail(message.KindInvalid, msgInvalidInput)
		return result
	}

	records, err := d.store.ListVoiceProfiles(ctx, userID)
	if err != nil {
		slog.Error("list voice profiles failed", "user_id", userID, "error", err)
		result.Fail(message.KindFailed, msgLoadFailed)
		return result
	}
	for _, r := range records {
		result.Profiles = append(result.Profiles, message.Summarize(r))
	}
	return result
}

// GetProfile returns one profile including its audio.
func (d *Dispatcher) GetProfile(ctx context.Context, userID, profileID string) *message.ProfileResult {
	result := &message.ProfileResult{}
	record, failure := d.loadProfile(ctx, userID, profileID)
	if failure != nil {
		result.Failure = *failure
		return result
	}
	result.Profile = &record
	return result
}

// ProfileAudio decodes the audio payload of a profile.
func (d *Dispatcher) ProfileAudio(ctx context.Context, userID, profileID string) *message.ProfileAudioResult {
	result := &message.ProfileAudioResult{}
	record, failure := d.loadProfile(ctx, userID, profileID)
	if failure != nil {
		result.Failure = *failure
		return result
	}
	uri, err := audio.ParseDataURI(record.AudioDataURI)
	if err != nil {
		slog.Error("stored profile audio is unreadable", "user_id", record.UserID, "profile_id", record.ID, "error", err)
		result.Fail(message.KindFailed, msgInvalidAudio)
		return result
	}
	result.Audio = uri.Data
	result.ContentType = uri.MIMEType
	return result
}

// DeleteProfile removes one profile.
func (d *Dispatcher) DeleteProfile(ctx context.Context, userID, profileID string) *message.DeleteProfileResult {
	result := &message.DeleteProfileResult{}
	userID, profileID = strings.TrimSpace(userID), strings.TrimSpace(profileID)
	if userID == "" || profileID == "" {
		result.Fail(message.KindInvalid, msgInvalidInput)
		return result
	}

	err := d.store.DeleteVoiceProfile(ctx, userID, profileID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		result.Fail(message.KindNotFound, msgProfileNotFound)
	case err != nil:
		slog.Error("delete voice profile failed", "user_id", userID, "profile_id", profileID, "error", err)
		result.Fail(message.KindFailed, msgDeleteFailed)
	default:
		slog.Info("voice profile deleted", "user_id", userID, "profile_id", profileID)
		result.Success = true
	}
	return result
}

func (d *Dispatcher) loadProfile(ctx context.Context, userID, profileID string) (storage.VoiceProfile, *message.Failure) {
	userID, profileID = strings.TrimSpace(userID), strings.TrimSpace(profileID)
	if userID == "" || profileID == "" {
		return storage.VoiceProfile{}, &message.Failure{Error: msgInvalidInput, Kind: message.KindInvalid}
	}
	record, err := d.store.GetVoiceProfile(ctx, userID, profileID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return storage.VoiceProfile{}, &message.Failure{Error: msgProfileNotFound, Kind: message.KindNotFound}
	case err != nil:
		slog.Error("get voice profile failed", "user_id", userID, "profile_id", profileID, "error", err)
		return storage.VoiceProfile{}, &message.Failure{Error: msgLoadFailed, Kind: message.KindFailed}
	}
	return record, nil
}

// Ping reports whether the profile store is reachable.
func (d *Dispatcher) Ping(ctx context.Context) error {
	return d.store.Ping(ctx)
}

// Personas lists the preset personas with their display labels.
func (d *Dispatcher) Personas() *message.PersonasResult {
	all := persona.All()
	result := &message.PersonasResult{Personas: make([]message.PersonaInfo, 0, len(all))}
	for _, p := range all {
		result.Personas = append(result.Personas, message.PersonaInfo{
			ID:          string(p),
			Label:       p.Label(),
			Description: p.Description(),
		})
	}
	return result
}
