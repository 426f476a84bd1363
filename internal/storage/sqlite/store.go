// Package sqlite provides a SQLite-backed voice profile document store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nadzzz/securecall/internal/storage"
	"github.com/nadzzz/securecall/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

var _ storage.VoiceProfileStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides SQLite-backed persistence for voice profiles.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// PutVoiceProfile writes the whole document, replacing any previous version.
// CreatedAt of an existing document is preserved.
func (s *Store) PutVoiceProfile(ctx context.Context, record storage.VoiceProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("profile id is required")
	}
	if strings.TrimSpace(record.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(record.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(record.AudioDataURI) == "" {
		return fmt.Errorf("audio is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO voice_profiles (
	user_id, id, path, name, is_custom, created_by, security_level, audio_data_uri, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, id) DO UPDATE SET
	name = excluded.name,
	is_custom = excluded.is_custom,
	created_by = excluded.created_by,
	security_level = excluded.security_level,
	audio_data_uri = excluded.audio_data_uri,
	updated_at = excluded.updated_at
`,
		record.UserID,
		record.ID,
		storage.DocumentPath(record.UserID, record.ID),
		record.Name,
		record.IsCustom,
		record.CreatedBy,
		record.SecurityLevel,
		record.AudioDataURI,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put voice profile: %w", err)
	}
	return nil
}

// GetVoiceProfile fetches one profile from the user's sub-collection.
func (s *Store) GetVoiceProfile(ctx context.Context, userID, profileID string) (storage.VoiceProfile, error) {
	if err := ctx.Err(); err != nil {
		return storage.VoiceProfile{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.VoiceProfile{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	profileID = strings.TrimSpace(profileID)
	if userID == "" || profileID == "" {
		return storage.VoiceProfile{}, fmt.Errorf("user id and profile id are required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, id, name, is_custom, created_by, security_level, audio_data_uri, created_at, updated_at
FROM voice_profiles
WHERE user_id = ? AND id = ?
`, userID, profileID)

	rec, err := scanVoiceProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.VoiceProfile{}, storage.ErrNotFound
		}
		return storage.VoiceProfile{}, fmt.Errorf("get voice profile: %w", err)
	}
	return rec, nil
}

// ListVoiceProfiles returns the user's profiles, newest first.
func (s *Store) ListVoiceProfiles(ctx context.Context, userID string) ([]storage.VoiceProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id, id, name, is_custom, created_by, security_level, audio_data_uri, created_at, updated_at
FROM voice_profiles
WHERE user_id = ?
ORDER BY created_at DESC, id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list voice profiles: %w", err)
	}
	defer rows.Close()

	var out []storage.VoiceProfile
	for rows.Next() {
		rec, err := scanVoiceProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voice profile: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate voice profiles: %w", err)
	}
	return out, nil
}

// DeleteVoiceProfile removes one profile from the user's sub-collection.
func (s *Store) DeleteVoiceProfile(ctx context.Context, userID, profileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM voice_profiles WHERE user_id = ? AND id = ?`,
		strings.TrimSpace(userID), strings.TrimSpace(profileID))
	if err != nil {
		return fmt.Errorf("delete voice profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete voice profile: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoiceProfile(row rowScanner) (storage.VoiceProfile, error) {
	var (
		rec       storage.VoiceProfile
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&rec.UserID,
		&rec.ID,
		&rec.Name,
		&rec.IsCustom,
		&rec.CreatedBy,
		&rec.SecurityLevel,
		&rec.AudioDataURI,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.VoiceProfile{}, err
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
