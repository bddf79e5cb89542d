// ABOUTME: User and session records backing the "database" session strategy
// ABOUTME: SQLiteStore.Lookup implements session.Source over these tables

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/2389/courier-gateway/internal/session"
)

// ErrSessionNotFound is returned when a session doesn't exist or is expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrUserNotFound is returned when a user doesn't exist.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when a different user already owns the email.
var ErrEmailExists = errors.New("email already registered")

// SessionRecord is a stored session row.
type SessionRecord struct {
	ID          string
	UserID      string
	AccessToken string // empty when the provider issued no upstream token
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Ensure SQLiteStore can serve as a session source.
var _ session.Source = (*SQLiteStore)(nil)

// Lookup implements session.Source. Unknown and expired ids yield (nil, nil).
func (s *SQLiteStore) Lookup(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, nil
	}

	query := `
		SELECT u.id, u.email, u.name, u.image, s.access_token, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ? AND s.expires_at > ?
	`

	var (
		sess                   session.Session
		email, name, image, at sql.NullString
		expiresAtStr           string
	)
	err := s.db.QueryRowContext(ctx, query, token, nowString()).Scan(
		&sess.User.ID,
		&email,
		&name,
		&image,
		&at,
		&expiresAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	sess.User.Email = email.String
	sess.User.Name = name.String
	sess.User.Image = image.String
	sess.AccessToken = at.String
	sess.Expires, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	return &sess, nil
}

// UpsertUser creates the user or refreshes its profile fields.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *session.User) error {
	query := `
		INSERT INTO users (id, email, name, image, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			image = excluded.image
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		nullString(user.Email),
		nullString(user.Name),
		nullString(user.Image),
		nowString(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("upserting user: %w", err)
	}

	s.logger.Debug("upserted user", "id", user.ID)
	return nil
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*session.User, error) {
	query := `SELECT id, email, name, image FROM users WHERE email = ?`

	var user session.User
	var em, name, image sql.NullString
	err := s.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &em, &name, &image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	user.Email = em.String
	user.Name = name.String
	user.Image = image.String
	return &user, nil
}

// CreateSession stores a new session for an existing user.
func (s *SQLiteStore) CreateSession(ctx context.Context, rec *SessionRecord) error {
	query := `
		INSERT INTO sessions (id, user_id, access_token, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		nullString(rec.AccessToken),
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Info("created session", "user_id", rec.UserID, "expires_at", rec.ExpiresAt)
	return nil
}

// GetSession retrieves an unexpired session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	query := `
		SELECT id, user_id, access_token, created_at, expires_at
		FROM sessions
		WHERE id = ? AND expires_at > ?
	`

	var rec SessionRecord
	var at sql.NullString
	var createdAtStr, expiresAtStr string

	err := s.db.QueryRowContext(ctx, query, id, nowString()).Scan(
		&rec.ID,
		&rec.UserID,
		&at,
		&createdAtStr,
		&expiresAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	rec.AccessToken = at.String
	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	return &rec, nil
}

// DeleteSession removes a session (sign-out).
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry and returns
// how many were removed.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, nowString())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Info("deleted expired sessions", "count", n)
	}
	return n, nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
