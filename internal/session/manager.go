package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// finishedTTL bounds how long a final status for an unregistered call is kept.
const finishedTTL = 10 * time.Minute

// CallFinishedError is returned by BeginCall when the provider already
// reported a final status for the call before it was registered.
type CallFinishedError struct {
	SID    string
	Status string
}

func (e *CallFinishedError) Error() string {
	return fmt.Sprintf("call %s already finished with status %s", e.SID, e.Status)
}

type finishedCall struct {
	status string
	at     time.Time
}

// Manager owns the sessions of all users and the call SID index used by
// provider status callbacks.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	calls    map[string]string       // call SID -> user ID
	finished map[string]finishedCall // final statuses of calls not registered yet
	now      func() time.Time
}

// NewManager creates an empty manager. A nil clock uses time.Now.
func NewManager(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Session),
		calls:    make(map[string]string),
		finished: make(map[string]finishedCall),
		now:      now,
	}
}

// Get returns the session for userID, creating it on first use.
func (m *Manager) Get(userID string) *Session {
	userID = strings.TrimSpace(userID)

	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s = newSession(userID, m.now)
	m.sessions[userID] = s
	return s
}

// Len returns the number of known sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// BeginCall registers sid as the active call of userID. When a final status
// for sid arrived first, the call is not registered and a *CallFinishedError
// is returned with the current snapshot.
func (m *Manager) BeginCall(userID, sid, to string) (Snapshot, error) {
	s := m.Get(userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.finished[sid]; ok {
		delete(m.finished, sid)
		return s.Snapshot(), &CallFinishedError{SID: sid, Status: f.status}
	}
	snap, err := s.BeginCall(sid, to)
	if err != nil {
		return snap, err
	}
	m.calls[sid] = snap.UserID
	return snap, nil
}

// SessionForCall resolves the session that owns a call SID.
func (m *Manager) SessionForCall(sid string) (*Session, bool) {
	m.mu.RLock()
	userID, ok := m.calls[sid]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.Get(userID), true
}

// EndCall clears the call identified by sid from its session.
func (m *Manager) EndCall(sid string) (Snapshot, error) {
	m.mu.Lock()
	userID, ok := m.calls[sid]
	delete(m.calls, sid)
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNoCall
	}
	return m.Get(userID).EndCall(sid)
}

// FinishCall applies a final provider status. A call that is not registered
// yet is remembered so that a later BeginCall for sid does not leave the
// session holding a call that already ended; ErrNoCall is returned then.
func (m *Manager) FinishCall(sid, status string) (Snapshot, error) {
	m.mu.Lock()
	userID, ok := m.calls[sid]
	if !ok {
		now := m.now()
		for k, f := range m.finished {
			if now.Sub(f.at) > finishedTTL {
				delete(m.finished, k)
			}
		}
		m.finished[sid] = finishedCall{status: status, at: now}
		m.mu.Unlock()
		return Snapshot{}, ErrNoCall
	}
	delete(m.calls, sid)
	m.mu.Unlock()
	return m.Get(userID).EndCall(sid)
}
