package model

import (
	"errors"
	"strings"
)

// Error taxonomy. Adapters and services wrap these with context; callers
// classify with errors.Is.
var (
	// ErrConfiguration covers a missing credential file or API key. Fatal for
	// the interaction that hit it.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthentication is a bad username/password pair or an invalid session.
	ErrAuthentication = errors.New("authentication failed")

	// ErrImageLoad is a corrupt or unsupported upload.
	ErrImageLoad = errors.New("image could not be loaded")

	// ErrUpstream is a failed call to the external model.
	ErrUpstream = errors.New("upstream model call failed")

	// ErrEmptyResponse is a successful upstream call that returned no text.
	ErrEmptyResponse = errors.New("upstream model returned no content")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// UserMessage maps an error to the message shown in the interface.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return strings.TrimPrefix(err.Error(), ErrConfiguration.Error()+": ")
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrSessionNotFound):
		return "Your session has ended. Please log in again."
	case errors.Is(err, ErrAuthentication):
		return "Username/Password is incorrect"
	case errors.Is(err, ErrImageLoad):
		return "Failed to load the image. Please try again."
	case errors.Is(err, ErrEmptyResponse):
		return "The AI did not return any content. Please try again."
	case errors.Is(err, ErrUpstream):
		return "Error generating content: " + err.Error()
	default:
		return "Something went wrong. Please try again."
	}
}

// IsRecoverable reports whether the user may simply retry the interaction.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrImageLoad) ||
		errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrEmptyResponse)
}
