package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables
// This is primarily for non-interactive and CI use
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(bundle *Bundle) error {
	return ErrStoreUnavailable
}

// Retrieve gets a session bundle from environment variables
func (e *EnvironmentStore) Retrieve(account string) (*Bundle, error) {
	cookie := os.Getenv("MSGDUMP_COOKIE")
	userID := os.Getenv("MSGDUMP_USER_ID")
	dtsg := os.Getenv("MSGDUMP_FB_DTSG")

	if cookie == "" || userID == "" || dtsg == "" {
		return nil, ErrCredentialsNotFound
	}

	ajax := os.Getenv("MSGDUMP_AJAX")
	if ajax == "" {
		ajax = "1"
	}

	// Environment variables don't store an account label, so we use
	// the user ID or the provided one
	if account == "" {
		account = userID
	}

	return &Bundle{
		Account:      account,
		Cookie:       cookie,
		UserID:       userID,
		Ajax:         ajax,
		Dyn:          os.Getenv("MSGDUMP_DYN"),
		Req:          os.Getenv("MSGDUMP_REQ"),
		DTSG:         dtsg,
		Revision:     os.Getenv("MSGDUMP_REVISION"),
		UserAgent:    os.Getenv("MSGDUMP_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns a single bundle if environment variables are set
func (e *EnvironmentStore) List() ([]*Bundle, error) {
	bundle, err := e.Retrieve("")
	if err != nil {
		return []*Bundle{}, nil
	}
	return []*Bundle{bundle}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(account string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(account string) bool {
	cookie := os.Getenv("MSGDUMP_COOKIE")
	userID := os.Getenv("MSGDUMP_USER_ID")
	dtsg := os.Getenv("MSGDUMP_FB_DTSG")
	return cookie != "" && userID != "" && dtsg != ""
}
