// Package session tracks the per-user call screen workflow.
//
// A session moves through idle → recording → loading → playing, and from
// playing (or idle with generated audio) to saved. Only one recording and one
// call can be active per user. Every accepted transition is published as an
// Event to the session's subscribers.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nadzzz/securecall/internal/persona"
)

// State is the position of a session in the recording workflow.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateLoading   State = "loading"
	StatePlaying   State = "playing"
	StateSaved     State = "saved"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the current state.
	ErrInvalidTransition = errors.New("action not allowed in current state")

	// ErrProtectionOff is returned for voice actions while the effect is disabled.
	ErrProtectionOff = errors.New("voice protection is off")

	// ErrAlreadySaved is returned when the current audio has been saved already.
	ErrAlreadySaved = errors.New("voice profile already saved")

	// ErrNoAudio is returned when saving without generated audio.
	ErrNoAudio = errors.New("no generated audio")

	// ErrCallActive is returned when a second call is started.
	ErrCallActive = errors.New("a call is already active")

	// ErrNoCall is returned when ending a call that is not active.
	ErrNoCall = errors.New("no active call")

	// ErrSaveInProgress is returned while the current audio is being persisted.
	ErrSaveInProgress = errors.New("save in progress")
)

// Call describes the active phone call of a session.
type Call struct {
	SID       string    `json:"sid"`
	To        string    `json:"to"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	UserID       string          `json:"userId"`
	State        State           `json:"state"`
	Protection   bool            `json:"protection"`
	Persona      persona.Persona `json:"persona"`
	AudioDataURI string          `json:"audioDataUri,omitempty"`
	Transcript   string          `json:"transcript,omitempty"`
	ProfileID    string          `json:"profileId,omitempty"`
	Call         *Call           `json:"call,omitempty"`
	CallTime     string          `json:"callTime,omitempty"`
	Saving       bool            `json:"saving,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`

	// CanSelectPersona mirrors the enabled state of the persona picker.
	CanSelectPersona bool `json:"canSelectPersona"`
	// CanRecord mirrors the enabled state of the record button.
	CanRecord bool `json:"canRecord"`
}

// Session is the workflow state of one user. It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	userID     string
	state      State
	protection bool
	persona    persona.Persona
	audio      string
	transcript string
	profileID  string
	saved      bool
	saving     bool
	call       *Call
	updatedAt  time.Time

	now  func() time.Time
	subs subscribers
}

func newSession(userID string, now func() time.Time) *Session {
	return &Session{
		userID:     userID,
		state:      StateIdle,
		protection: true,
		persona:    persona.Default,
		updatedAt:  now(),
		now:        now,
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Persona returns the selected persona.
func (s *Session) Persona() persona.Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona
}

// SelectPersona changes the persona. Disallowed while recording, loading or playing.
func (s *Session) SelectPersona(p persona.Persona) (Snapshot, error) {
	if !p.Valid() {
		return Snapshot{}, persona.ErrUnknown
	}
	return s.transition(func() (*Notification, error) {
		if !s.protection {
			return nil, ErrProtectionOff
		}
		if s.state != StateIdle && s.state != StateSaved {
			return nil, fmt.Errorf("select persona while %s: %w", s.state, ErrInvalidTransition)
		}
		s.persona = p
		return nil, nil
	})
}

// SetProtection toggles the voice effect. It cannot change while a recording
// or transformation is in flight.
func (s *Session) SetProtection(enabled bool) (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if s.state == StateRecording || s.state == StateLoading {
			return nil, fmt.Errorf("toggle protection while %s: %w", s.state, ErrInvalidTransition)
		}
		s.protection = enabled
		return nil, nil
	})
}

// StartRecording begins the single active recording of the session.
func (s *Session) StartRecording() (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if !s.protection {
			return nil, ErrProtectionOff
		}
		if s.state != StateIdle && s.state != StateSaved {
			return nil, fmt.Errorf("start recording while %s: %w", s.state, ErrInvalidTransition)
		}
		if s.saving {
			return nil, ErrSaveInProgress
		}
		s.state = StateRecording
		return nil, nil
	})
}

// AbortRecording returns to idle after the recorder failed (e.g. microphone
// permission denied) and notifies the user.
func (s *Session) AbortRecording(reason string) (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if s.state != StateRecording {
			return nil, fmt.Errorf("abort recording while %s: %w", s.state, ErrInvalidTransition)
		}
		s.state = StateIdle
		if reason == "" {
			reason = "Could not access the microphone. Please check permissions."
		}
		return &Notification{Variant: VariantDestructive, Title: "Microphone Error", Description: reason}, nil
	})
}

// StopRecording moves the session to loading while the audio is transformed.
func (s *Session) StopRecording() (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if s.state != StateRecording {
			return nil, fmt.Errorf("stop recording while %s: %w", s.state, ErrInvalidTransition)
		}
		s.state = StateLoading
		return nil, nil
	})
}

// CompleteTransform stores the generated audio and starts playback.
func (s *Session) CompleteTransform(audioDataURI, transcript string) (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if s.state != StateLoading {
			return nil, fmt.Errorf("complete transform while %s: %w", s.state, ErrInvalidTransition)
		}
		s.state = StatePlaying
		s.audio = audioDataURI
		s.transcript = transcript
		s.profileID = ""
		s.saved = false
		return &Notification{Title: "Success!", Description: "Your altered voice has been generated."}, nil
	})
}

// FailTransform returns to idle and surfaces message to the user.
func (s *Session) FailTransform(message string) (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if s.state != StateLoading {
			return nil, fmt.Errorf("fail transform while %s: %w", s.state, ErrInvalidTransition)
		}
		s.state = StateIdle
		return &Notification{Variant: VariantDestructive, Title: "Error", Description: message}, nil
	})
}

// PlaybackEnded returns to idle once the altered voice finished playing.
func (s *Session) PlaybackEnded() (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if s.state != StatePlaying {
			return nil, fmt.Errorf("end playback while %s: %w", s.state, ErrInvalidTransition)
		}
		s.state = StateIdle
		return nil, nil
	})
}

// SaveCandidate reserves the current audio for persisting and returns it with
// its persona. Until MarkSaved or ReleaseSave is called, new recordings and
// further saves are rejected with ErrSaveInProgress.
func (s *Session) SaveCandidate() (audioDataURI string, p persona.Persona, err error) {
	_, err = s.transition(func() (*Notification, error) {
		if s.saving {
			return nil, ErrSaveInProgress
		}
		if err := s.canSaveLocked(); err != nil {
			return nil, err
		}
		s.saving = true
		audioDataURI, p = s.audio, s.persona
		return nil, nil
	})
	return audioDataURI, p, err
}

// MarkSaved records that the reserved audio was persisted as profileID. It
// succeeds at most once per generated audio.
func (s *Session) MarkSaved(profileID, profileName string) (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if !s.saving {
			return nil, fmt.Errorf("mark saved without a reservation: %w", ErrInvalidTransition)
		}
		if err := s.canSaveLocked(); err != nil {
			return nil, err
		}
		s.saving = false
		s.state = StateSaved
		s.saved = true
		s.profileID = profileID
		return &Notification{Title: "Saved", Description: fmt.Sprintf("Voice profile %q saved.", profileName)}, nil
	})
}

// ReleaseSave drops the reservation taken by SaveCandidate after the profile
// could not be persisted, publishing n when it is not nil.
func (s *Session) ReleaseSave(n *Notification) (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if !s.saving {
			return nil, fmt.Errorf("release save without a reservation: %w", ErrInvalidTransition)
		}
		s.saving = false
		return n, nil
	})
}

func (s *Session) canSaveLocked() error {
	if s.saved {
		return ErrAlreadySaved
	}
	if s.audio == "" {
		return ErrNoAudio
	}
	if s.state != StatePlaying && s.state != StateIdle {
		return fmt.Errorf("save while %s: %w", s.state, ErrInvalidTransition)
	}
	return nil
}

// Notify publishes a notification without changing state.
func (s *Session) Notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.publish(Event{Snapshot: s.snapshotLocked(), Notification: &n})
}

// BeginCall registers the single active call of the session.
func (s *Session) BeginCall(sid, to string) (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if s.call != nil {
			return nil, ErrCallActive
		}
		s.call = &Call{SID: sid, To: to, Status: "queued", StartedAt: s.now()}
		return nil, nil
	})
}

// UpdateCall records a provider status for the active call.
func (s *Session) UpdateCall(sid, status string) (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if s.call == nil || s.call.SID != sid {
			return nil, ErrNoCall
		}
		s.call.Status = status
		return nil, nil
	})
}

// EndCall clears the active call.
func (s *Session) EndCall(sid string) (Snapshot, error) {
	return s.transition(func() (*Notification, error) {
		if s.call == nil || (sid != "" && s.call.SID != sid) {
			return nil, ErrNoCall
		}
		s.call = nil
		return nil, nil
	})
}

// transition runs fn under the lock and publishes the resulting snapshot
// when fn accepts the change. Publishing happens before the lock is released
// so subscribers see events in transition order.
func (s *Session) transition(fn func() (*Notification, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := fn()
	if err != nil {
		return s.snapshotLocked(), err
	}
	s.updatedAt = s.now()
	snap := s.snapshotLocked()
	s.subs.publish(Event{Snapshot: snap, Notification: n})
	return snap, nil
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		UserID:       s.userID,
		State:        s.state,
		Protection:   s.protection,
		Persona:      s.persona,
		AudioDataURI: s.audio,
		Transcript:   s.transcript,
		ProfileID:    s.profileID,
		Saving:       s.saving,
		UpdatedAt:    s.updatedAt,

		CanSelectPersona: s.protection && (s.state == StateIdle || s.state == StateSaved),
		CanRecord:        s.protection && s.state != StatePlaying && s.state != StateLoading && !s.saving,
	}
	if s.call != nil {
		c := *s.call
		snap.Call = &c
		snap.CallTime = FormatDuration(s.now().Sub(c.StartedAt))
	}
	return snap
}

// FormatDuration renders d as mm:ss, the call timer format.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
