// Package storage defines the voice profile document model and the store
// contract used by the dispatcher.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a document does not exist.
var ErrNotFound = errors.New("record not found")

// Security level labels attached to voice profiles.
const (
	SecurityLevelLow    = "low"
	SecurityLevelMedium = "medium"
	SecurityLevelHigh   = "high"
)

// VoiceProfile is a saved audio sample plus its display metadata.
// It is always written wholesale.
type VoiceProfile struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	IsCustom      bool      `json:"isCustom"`
	CreatedBy     string    `json:"createdBy"`
	SecurityLevel string    `json:"securityLevel"`
	AudioDataURI  string    `json:"audioDataUri"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DocumentPath is the per-user sub-collection path addressing a profile.
func DocumentPath(userID, profileID string) string {
	return "users/" + userID + "/voice_profiles/" + profileID
}

// VoiceProfileStore persists voice profile documents.
type VoiceProfileStore interface {
	PutVoiceProfile(ctx context.Context, record VoiceProfile) error
	GetVoiceProfile(ctx context.Context, userID, profileID string) (VoiceProfile, error)
	ListVoiceProfiles(ctx context.Context, userID string) ([]VoiceProfile, error)
	DeleteVoiceProfile(ctx context.Context, userID, profileID string) error
	Ping(ctx context.Context) error
}
