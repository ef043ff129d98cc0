package application

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// PasswordHasher produces and verifies one-way password hashes.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Compare returns nil when plaintext matches hash, and an error wrapping
	// model.ErrAuthentication when it does not.
	Compare(hash, plaintext string) error
}

// Compile-time interface satisfaction check.
var _ PasswordHasher = BcryptHasher{}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	Cost int // bcrypt.DefaultCost..bcrypt.MaxCost; zero means DefaultBcryptCost
}

// Hash returns the bcrypt hash of plaintext.
func (h BcryptHasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare checks plaintext against a bcrypt hash.
func (h BcryptHasher) Compare(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return model.ErrAuthentication
	}
	return fmt.Errorf("%w: compare password: %v", model.ErrAuthentication, err)
}
