package model

import "time"

// LoginStatus is the outcome of a login attempt.
type LoginStatus string

const (
	LoginStatusSuccess LoginStatus = "success"
	LoginStatusFailure LoginStatus = "failure"
	LoginStatusPending LoginStatus = "pending" // nothing submitted yet
)

// Session is an authenticated user's server-side session.
type Session struct {
	ID          string
	Username    string
	DisplayName string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Credentials is a submitted username/password pair.
type Credentials struct {
	Username string
	Password string
}

// LoginResult is returned by a login attempt. Session and Token are set only
// when Status is LoginStatusSuccess.
type LoginResult struct {
	Status  LoginStatus
	Session *Session
	Token   string
}
