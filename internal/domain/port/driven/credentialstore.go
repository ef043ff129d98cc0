package driven

import (
	"context"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

// CredentialStore defines the driven port for reading the persisted
// credential mapping. Implementations return model.ErrConfiguration when the
// backing file is missing or unreadable.
type CredentialStore interface {
	// Load returns the complete credential mapping.
	Load(ctx context.Context) (model.CredentialFile, error)

	// Lookup returns the record for username, or (nil, nil) when the user is
	// not present.
	Lookup(ctx context.Context, username string) (*model.CredentialRecord, error)
}

// CredentialWriter defines the driven port used by the bootstrapper. Save
// fully overwrites the destination; there is no merge.
type CredentialWriter interface {
	Save(ctx context.Context, file model.CredentialFile) error
}
