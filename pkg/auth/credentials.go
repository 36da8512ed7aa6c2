package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Bundle holds everything needed to forge authenticated mercury requests:
// the session cookie header plus the hidden form fields Facebook expects
// on every POST.
type Bundle struct {
	Account      string    `json:"account"`
	Cookie       string    `json:"cookie"`
	UserID       string    `json:"user_id"`
	Ajax         string    `json:"ajax"`
	Dyn          string    `json:"dyn"`
	Req          string    `json:"req"`
	DTSG         string    `json:"fb_dtsg"`
	Revision     string    `json:"revision"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// FormFields returns the bundle's hidden fields keyed by their wire names.
// Every mercury POST carries these alongside the request-specific payload.
func (b *Bundle) FormFields() map[string]string {
	return map[string]string{
		"__user":  b.UserID,
		"__a":     b.Ajax,
		"__dyn":   b.Dyn,
		"__req":   b.Req,
		"fb_dtsg": b.DTSG,
		"__rev":   b.Revision,
	}
}

// CredentialStore is the interface for storing and retrieving session bundles
type CredentialStore interface {
	// Store saves a session bundle for a given account
	Store(bundle *Bundle) error

	// Retrieve gets the session bundle for a specific account
	Retrieve(account string) (*Bundle, error)

	// List returns all stored bundles
	List() ([]*Bundle, error)

	// Delete removes the session bundle for a specific account
	Delete(account string) error

	// Exists checks if a session bundle exists for an account
	Exists(account string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Add environment store as last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves a session bundle using the first available store
func (m *Manager) Store(bundle *Bundle) error {
	if bundle.Account == "" {
		return errors.New("account label is required")
	}
	if bundle.Cookie == "" {
		return errors.New("session cookie is required")
	}
	if bundle.DTSG == "" {
		return errors.New("fb_dtsg token is required")
	}
	if bundle.UserID == "" {
		return errors.New("user ID is required")
	}

	bundle.LastModified = time.Now()

	// Try each store in order
	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(bundle); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session bundle: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the session bundle from the first store that has it
func (m *Manager) Retrieve(account string) (*Bundle, error) {
	for _, store := range m.stores {
		if bundle, err := store.Retrieve(account); err == nil && bundle != nil {
			return bundle, nil
		}
	}
	return nil, fmt.Errorf("session bundle not found for account: %s", account)
}

// RetrieveDefault gets the bundle for the default account or the first available
func (m *Manager) RetrieveDefault() (*Bundle, error) {
	// First try to get from environment (for non-interactive use)
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if bundle, err := envStore.Retrieve(""); err == nil && bundle != nil {
			return bundle, nil
		}
	}

	// Then try to get the first available account
	bundles, err := m.List()
	if err == nil && len(bundles) > 0 {
		return bundles[0], nil
	}

	return nil, errors.New("no session bundle found")
}

// List returns all stored bundles from all stores
func (m *Manager) List() ([]*Bundle, error) {
	bundleMap := make(map[string]*Bundle)

	for _, store := range m.stores {
		bundles, err := store.List()
		if err != nil {
			continue
		}
		for _, bundle := range bundles {
			// Use the most recently modified version
			if existing, ok := bundleMap[bundle.Account]; !ok || bundle.LastModified.After(existing.LastModified) {
				bundleMap[bundle.Account] = bundle
			}
		}
	}

	var result []*Bundle
	for _, bundle := range bundleMap {
		result = append(result, bundle)
	}

	return result, nil
}

// Delete removes the session bundle from all stores
func (m *Manager) Delete(account string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(account); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete session bundle: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("session bundle not found for account: %s", account)
	}

	return nil
}

// DeleteAll removes all stored session bundles
func (m *Manager) DeleteAll() error {
	bundles, err := m.List()
	if err != nil {
		return err
	}

	for _, bundle := range bundles {
		_ = m.Delete(bundle.Account) // Ignore individual errors
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "msgdump")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "msgdump")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "msgdump")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "msgdump")
		}
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeBundle creates a copy of the bundle with sensitive data masked
func SanitizeBundle(bundle *Bundle) *Bundle {
	if bundle == nil {
		return nil
	}

	return &Bundle{
		Account:      bundle.Account,
		Cookie:       maskString(bundle.Cookie),
		UserID:       bundle.UserID,
		Ajax:         bundle.Ajax,
		Dyn:          maskString(bundle.Dyn),
		Req:          bundle.Req,
		DTSG:         maskString(bundle.DTSG),
		Revision:     bundle.Revision,
		UserAgent:    bundle.UserAgent,
		LastModified: bundle.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("session bundle not found")
	ErrInvalidCredentials  = errors.New("invalid session bundle")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
