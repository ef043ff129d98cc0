package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
	"github.com/ericfisherdev/chequescan/internal/domain/port/driven"
)

// timeLayout is fixed-width UTC so stored values compare lexically.
const timeLayout = "2006-01-02T15:04:05Z"

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port interface.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SessionRepo backed by the given DB.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a new session. Returns an error if the ID already exists.
func (r *SessionRepo) Create(ctx context.Context, s model.Session) error {
	const query = `INSERT INTO sessions (id, username, display_name, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`

	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		s.ID, s.Username, s.DisplayName, formatTime(createdAt), formatTime(s.ExpiresAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("create session %s: duplicate id", s.ID)
		}
		return fmt.Errorf("create session %s: %w", s.ID, err)
	}
	return nil
}

// Get retrieves a session by ID. Returns nil, nil if the session does not exist.
func (r *SessionRepo) Get(ctx context.Context, id string) (*model.Session, error) {
	const query = `SELECT id, username, display_name, created_at, expires_at FROM sessions WHERE id = ?`

	var s model.Session
	var createdAt, expiresAt string
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Username, &s.DisplayName, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for session %s: %w", id, err)
	}
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at for session %s: %w", id, err)
	}
	return &s, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return rows, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		"2006-01-02 15:04:05",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
