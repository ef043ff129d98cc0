// Package credfile implements the credential ports on top of a JSON file.
package credfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
	"github.com/ericfisherdev/chequescan/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.CredentialStore  = (*Store)(nil)
	_ driven.CredentialWriter = (*Store)(nil)
)

// Store reads and writes the credential mapping at a fixed path. The file is
// read on every call, so regenerating it takes effect without a restart.
type Store struct {
	path string
}

// NewStore creates a Store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the credential mapping. A missing or malformed file is a
// configuration error.
func (s *Store) Load(_ context.Context) (model.CredentialFile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.CredentialFile{}, fmt.Errorf(
			"%w: the file %q does not exist. Please ensure you have generated the password file (run genkeys)",
			model.ErrConfiguration, s.path)
	}
	if err != nil {
		return model.CredentialFile{}, fmt.Errorf("%w: read %q: %v", model.ErrConfiguration, s.path, err)
	}

	file, err := decode(data)
	if err != nil {
		return model.CredentialFile{}, fmt.Errorf("%w: parse %q: %v", model.ErrConfiguration, s.path, err)
	}
	return file, nil
}

// Lookup returns the record for username, or (nil, nil) if absent.
func (s *Store) Lookup(ctx context.Context, username string) (*model.CredentialRecord, error) {
	file, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := file.Usernames[username]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Save replaces the file with file's contents, creating parent directories.
// The write is atomic: readers see either the old or the new mapping.
func (s *Store) Save(_ context.Context, file model.CredentialFile) error {
	if file.Usernames == nil {
		file = model.NewCredentialFile()
	}

	data, err := json.MarshalIndent(file, "", "    ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create credentials dir %q: %w", dir, err)
		}
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write credentials %q: %w", s.path, err)
	}
	return nil
}

// decode accepts the wrapped {"usernames": {...}} shape and also a bare
// username mapping.
func decode(data []byte) (model.CredentialFile, error) {
	var wrapped struct {
		Usernames map[string]model.CredentialRecord `json:"usernames"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return model.CredentialFile{}, err
	}
	if wrapped.Usernames != nil {
		return model.CredentialFile{Usernames: wrapped.Usernames}, validate(wrapped.Usernames)
	}

	var bare map[string]model.CredentialRecord
	if err := json.Unmarshal(data, &bare); err != nil {
		return model.CredentialFile{}, err
	}
	if bare == nil {
		bare = map[string]model.CredentialRecord{}
	}
	return model.CredentialFile{Usernames: bare}, validate(bare)
}

func validate(users map[string]model.CredentialRecord) error {
	for name, rec := range users {
		if rec.Password == "" {
			return fmt.Errorf("user %q has no password hash", name)
		}
	}
	return nil
}
