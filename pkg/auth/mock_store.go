package auth

import (
	"fmt"
	"sync"
)

// MockStore implements CredentialStore for testing purposes
type MockStore struct {
	bundles map[string]*Bundle
	mu      sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		bundles: make(map[string]*Bundle),
	}
}

// Store saves a session bundle to the mock store
func (m *MockStore) Store(bundle *Bundle) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if bundle == nil || bundle.Account == "" {
		return ErrInvalidCredentials
	}

	// Create a copy to avoid external modifications
	bundleCopy := *bundle
	m.bundles[bundle.Account] = &bundleCopy

	return nil
}

// Retrieve gets a session bundle from the mock store
func (m *MockStore) Retrieve(account string) (*Bundle, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if account == "" {
		return nil, ErrInvalidCredentials
	}

	bundle, exists := m.bundles[account]
	if !exists {
		return nil, ErrCredentialsNotFound
	}

	// Return a copy to avoid external modifications
	bundleCopy := *bundle
	return &bundleCopy, nil
}

// List returns all stored bundles from the mock store
func (m *MockStore) List() ([]*Bundle, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var bundles []*Bundle
	for _, bundle := range m.bundles {
		// Create a copy for each bundle
		bundleCopy := *bundle
		bundles = append(bundles, &bundleCopy)
	}

	return bundles, nil
}

// Delete removes a session bundle from the mock store
func (m *MockStore) Delete(account string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if account == "" {
		return ErrInvalidCredentials
	}

	if _, exists := m.bundles[account]; !exists {
		return ErrCredentialsNotFound
	}

	delete(m.bundles, account)
	return nil
}

// Exists checks if a session bundle exists in the mock store
func (m *MockStore) Exists(account string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.bundles[account]
	return exists
}

// Clear removes all bundles from the mock store (useful for test cleanup)
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bundles = make(map[string]*Bundle)
}

// Count returns the number of bundles in the mock store (useful for testing)
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.bundles)
}

// NewMockManager creates a Manager with a mock store for testing
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	manager := &Manager{
		stores: []CredentialStore{mockStore},
	}
	return manager, mockStore
}

// NewMockManagerWithStores creates a Manager with multiple stores for testing
func NewMockManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{
		stores: stores,
	}
}

// GetBundle returns a copy of the bundle for inspection (useful for testing)
func (m *MockStore) GetBundle(account string) (*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bundle, exists := m.bundles[account]
	if !exists {
		return nil, fmt.Errorf("bundle not found: %s", account)
	}

	bundleCopy := *bundle
	return &bundleCopy, nil
}
