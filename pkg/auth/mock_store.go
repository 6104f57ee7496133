package auth

import "sync"

// MockStore is an in-memory CredentialStore with error injection for tests
type MockStore struct {
	accounts map[string]Account
	mu       sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates an empty mock credential store
func NewMockStore() *MockStore {
	return &MockStore{accounts: make(map[string]Account)}
}

// NewMockManager creates a Manager backed only by a mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

func (m *MockStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = *account
	return nil
}

func (m *MockStore) Retrieve(username string) (*Account, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *MockStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		acc := account
		accounts = append(accounts, &acc)
	}
	return accounts, nil
}

func (m *MockStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *MockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[username]
	return ok
}

// Count returns the number of stored accounts
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
