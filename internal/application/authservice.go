package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
	"github.com/ericfisherdev/chequescan/internal/domain/port/driven"
)

// Authenticator is the session contract the extraction flow depends on.
type Authenticator interface {
	Authenticate(ctx context.Context, creds model.Credentials) (*model.Session, error)
	Invalidate(ctx context.Context, session model.Session) error
}

// Compile-time interface satisfaction check.
var _ Authenticator = (*AuthService)(nil)

// sessionClaims is the signed cookie payload. ID carries the session ID.
type sessionClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// AuthService validates credentials against the credential store, persists
// sessions and issues signed session tokens.
type AuthService struct {
	credentials driven.CredentialStore
	sessions    driven.SessionStore
	hasher      PasswordHasher
	signingKey  []byte
	ttl         time.Duration
	logger      *slog.Logger
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates an AuthService. ttl is the session lifetime; zero
// means seven days.
func NewAuthService(
	credentials driven.CredentialStore,
	sessions driven.SessionStore,
	hasher PasswordHasher,
	signingKey []byte,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		credentials: credentials,
		sessions:    sessions,
		hasher:      hasher,
		signingKey:  signingKey,
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
	}
}

// TTL returns the session lifetime.
func (s *AuthService) TTL() time.Duration {
	return s.ttl
}

// Ready reports whether the credential file can be loaded. The login page
// shows the returned error instead of accepting attempts.
func (s *AuthService) Ready(ctx context.Context) error {
	if _, err := s.credentials.Load(ctx); err != nil {
		return err
	}
	return nil
}

// Login runs one login attempt. Empty username and password yield
// LoginStatusPending with a nil error. Bad credentials yield
// LoginStatusFailure with an error wrapping model.ErrAuthentication. A
// missing credential file yields LoginStatusFailure with model.ErrConfiguration.
func (s *AuthService) Login(ctx context.Context, username, password string) (model.LoginResult, error) {
	if username == "" && password == "" {
		return model.LoginResult{Status: model.LoginStatusPending}, nil
	}

	session, err := s.Authenticate(ctx, model.Credentials{Username: username, Password: password})
	if err != nil {
		return model.LoginResult{Status: model.LoginStatusFailure}, err
	}

	token, err := s.sign(*session)
	if err != nil {
		return model.LoginResult{Status: model.LoginStatusFailure}, err
	}

	return model.LoginResult{
		Status:  model.LoginStatusSuccess,
		Session: session,
		Token:   token,
	}, nil
}

// Authenticate verifies creds and creates a new persisted session.
func (s *AuthService) Authenticate(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	record, err := s.credentials.Lookup(ctx, creds.Username)
	if err != nil {
		return nil, err
	}

	if record == nil {
		// Spend the same hashing time as a real comparison.
		_ = s.hasher.Compare(s.dummy(), creds.Password)
		s.logger.Info("login rejected", "reason", "unknown user")
		return nil, fmt.Errorf("unknown user: %w", model.ErrAuthentication)
	}

	if err := s.hasher.Compare(record.Password, creds.Password); err != nil {
		s.logger.Info("login rejected", "username", creds.Username, "reason", "password mismatch")
		return nil, fmt.Errorf("user %q: %w", creds.Username, model.ErrAuthentication)
	}

	now := s.now().UTC()
	session := model.Session{
		ID:          uuid.NewString(),
		Username:    creds.Username,
		DisplayName: record.Name,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("login succeeded", "username", session.Username, "session_id", session.ID)
	return &session, nil
}

// Resolve verifies a session token and returns the live session it names.
func (s *AuthService) Resolve(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, model.ErrSessionNotFound
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", model.ErrSessionExpired, model.ErrAuthentication)
		}
		return nil, fmt.Errorf("invalid session token: %w", model.ErrAuthentication)
	}

	session, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSessionNotFound, model.ErrAuthentication)
	}
	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("failed to delete expired session", "session_id", session.ID, "error", err)
		}
		return nil, fmt.Errorf("%w: %w", model.ErrSessionExpired, model.ErrAuthentication)
	}

	return session, nil
}

// Invalidate ends the session. An already-removed session is not an error.
func (s *AuthService) Invalidate(ctx context.Context, session model.Session) error {
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session %s: %w", session.ID, err)
	}
	s.logger.Info("logout", "username", session.Username, "session_id", session.ID)
	return nil
}

// Logout invalidates the session named by token. Unknown or expired tokens
// are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrAuthentication) || errors.Is(err, model.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return s.Invalidate(ctx, *session)
}

// PurgeExpired removes expired sessions from the store.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}

func (s *AuthService) sign(session model.Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.Username,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		Name: session.DisplayName,
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Warn("failed to precompute dummy hash", "error", err)
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
