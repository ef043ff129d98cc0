package application

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

// --- Mock implementations shared by application tests ---

type mockCredentialStore struct {
	file model.CredentialFile
	err  error
}

func (m *mockCredentialStore) Load(_ context.Context) (model.CredentialFile, error) {
	return m.file, m.err
}

func (m *mockCredentialStore) Lookup(_ context.Context, username string) (*model.CredentialRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.file.Usernames[username]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

type memoryCredentialWriter struct {
	saves int
	file  model.CredentialFile
	err   error
}

func (m *memoryCredentialWriter) Save(_ context.Context, file model.CredentialFile) error {
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.file = file
	return nil
}

type memorySessionStore struct {
	mu        sync.Mutex
	sessions  map[string]model.Session
	createErr error
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: map[string]model.Session{}}
}

func (m *memorySessionStore) Create(_ context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *memorySessionStore) Get(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memorySessionStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type mockVisionModel struct {
	text      string
	err       error
	wait      bool // block until ctx is done
	gotPrompt string
	gotImage  model.UploadedImage
	calls     int
}

func (m *mockVisionModel) GenerateContent(ctx context.Context, img model.UploadedImage, prompt string) (string, error) {
	m.calls++
	m.gotPrompt = prompt
	m.gotImage = img
	if m.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.text, m.err
}

func (m *mockVisionModel) ModelName() string { return "mock-vision" }
