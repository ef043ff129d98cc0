package model

// CredentialRecord is one user's persisted login material. Password holds a
// one-way hash, never the plaintext.
type CredentialRecord struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// CredentialFile is the serialized credential mapping, keyed by username.
type CredentialFile struct {
	Usernames map[string]CredentialRecord `json:"usernames"`
}

// NewCredentialFile returns an empty, non-nil mapping.
func NewCredentialFile() CredentialFile {
	return CredentialFile{Usernames: map[string]CredentialRecord{}}
}

// UserSeed is the plaintext input to the credential bootstrapper.
type UserSeed struct {
	Name     string
	Username string
	Password string
	Email    string // optional; derived from Username when empty
}
