package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

// SessionStore defines the driven port for server-side session persistence.
type SessionStore interface {
	// Create stores a new session. IDs are unique.
	Create(ctx context.Context, session model.Session) error

	// Get returns the session with the given ID, or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*model.Session, error)

	// Delete removes the session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every session whose expiry is at or before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
