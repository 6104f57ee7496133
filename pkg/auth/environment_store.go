package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvUsername  = "IGCRAWLER_USERNAME"
	EnvPassword  = "IGCRAWLER_PASSWORD"
	EnvSessionID = "IGCRAWLER_SESSION_ID"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. A non-empty username must match
// IGCRAWLER_USERNAME.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	account := &Account{
		Username:     os.Getenv(EnvUsername),
		Password:     os.Getenv(EnvPassword),
		SessionID:    os.Getenv(EnvSessionID),
		LastModified: time.Now(),
	}
	if account.Validate() != nil {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != account.Username {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for username
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
