package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
	"github.com/ericfisherdev/chequescan/internal/domain/port/driven"
)

// DefaultUsers is the fixed user list seeded by the credential generator.
var DefaultUsers = []model.UserSeed{
	{Name: "Prateek Agarwal", Username: "Prateek", Password: "abc123"},
	{Name: "Anubhav", Username: "Anubhav", Password: "def456"},
}

// Bootstrapper hashes plaintext user seeds into a credential mapping and
// persists it.
type Bootstrapper struct {
	hasher PasswordHasher
	logger *slog.Logger
}

// NewBootstrapper creates a Bootstrapper with the given hasher.
func NewBootstrapper(hasher PasswordHasher, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{hasher: hasher, logger: logger}
}

// HashPasswords returns a hash for each password, in input order. A result
// whose length differs from the input is a configuration error.
func (b *Bootstrapper) HashPasswords(passwords []string) ([]string, error) {
	hashes := make([]string, 0, len(passwords))
	for i, p := range passwords {
		h, err := b.hasher.Hash(p)
		if err != nil {
			return nil, fmt.Errorf("hash password %d: %w", i, err)
		}
		hashes = append(hashes, h)
	}

	if len(hashes) != len(passwords) {
		return nil, fmt.Errorf("%w: expected %d hashed passwords, got %d",
			model.ErrConfiguration, len(passwords), len(hashes))
	}
	return hashes, nil
}

// Generate builds the credential mapping for users. Usernames must be
// non-empty and unique.
func (b *Bootstrapper) Generate(users []model.UserSeed) (model.CredentialFile, error) {
	passwords := make([]string, len(users))
	seen := make(map[string]struct{}, len(users))
	for i, u := range users {
		if strings.TrimSpace(u.Username) == "" {
			return model.CredentialFile{}, fmt.Errorf("%w: user %d has an empty username", model.ErrConfiguration, i)
		}
		if _, dup := seen[u.Username]; dup {
			return model.CredentialFile{}, fmt.Errorf("%w: duplicate username %q", model.ErrConfiguration, u.Username)
		}
		seen[u.Username] = struct{}{}
		passwords[i] = u.Password
	}

	hashes, err := b.HashPasswords(passwords)
	if err != nil {
		return model.CredentialFile{}, err
	}
	if len(hashes) != len(users) {
		return model.CredentialFile{}, fmt.Errorf("%w: expected %d hashed passwords, got %d",
			model.ErrConfiguration, len(users), len(hashes))
	}

	file := model.NewCredentialFile()
	for i, u := range users {
		email := u.Email
		if email == "" {
			email = strings.ToLower(u.Username) + "@example.com"
		}
		file.Usernames[u.Username] = model.CredentialRecord{
			Name:     u.Name,
			Password: hashes[i],
			Email:    email,
		}
	}
	return file, nil
}

// Run generates the mapping for users and overwrites the destination.
func (b *Bootstrapper) Run(ctx context.Context, users []model.UserSeed, dst driven.CredentialWriter) (model.CredentialFile, error) {
	file, err := b.Generate(users)
	if err != nil {
		return model.CredentialFile{}, err
	}
	if err := dst.Save(ctx, file); err != nil {
		return model.CredentialFile{}, fmt.Errorf("save credentials: %w", err)
	}

	b.logger.Info("credentials written", "users", len(file.Usernames))
	return file, nil
}
