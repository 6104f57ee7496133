package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "igcrawler"
	// keyringIndex lists the usernames held in the keychain, which cannot
	// be enumerated on every platform
	keyringIndex = "accounts"
)

// Each account is spread over three keychain entries so the password and
// the sessionid cookie can be replaced or revoked independently.
const (
	fieldPassword = "password"
	fieldSession  = "session"
	fieldProfile  = "profile"
)

// keyringProfile is the non-secret part of an account
type keyringProfile struct {
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore returns a keychain store if the platform keychain answers
func NewKeyringStore() (*KeyringStore, error) {
	if _, err := keyring.Get(keyringService, keyringIndex); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	return &KeyringStore{}, nil
}

func keyringKey(username, field string) string {
	return username + "/" + field
}

// Store writes the account's secrets as separate entries. A secret the
// account no longer carries is removed so a stale password or cookie is
// never replayed.
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	secrets := map[string]string{
		fieldPassword: account.Password,
		fieldSession:  account.SessionID,
	}
	for field, value := range secrets {
		key := keyringKey(account.Username, field)
		if value == "" {
			if err := keyring.Delete(keyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
				return fmt.Errorf("failed to clear %s in keyring: %w", field, err)
			}
			continue
		}
		if err := keyring.Set(keyringService, key, value); err != nil {
			return fmt.Errorf("failed to store %s in keyring: %w", field, err)
		}
	}

	profile, err := json.Marshal(keyringProfile{UserAgent: account.UserAgent, LastModified: account.LastModified})
	if err != nil {
		return fmt.Errorf("failed to marshal account profile: %w", err)
	}
	if err := keyring.Set(keyringService, keyringKey(account.Username, fieldProfile), string(profile)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return k.updateIndex(func(names []string) []string {
		if slices.Contains(names, account.Username) {
			return names
		}
		return append(names, account.Username)
	})
}

// Retrieve assembles an account from its keychain entries
func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	account := &Account{Username: username}
	var err error
	if account.Password, err = k.secret(username, fieldPassword); err != nil {
		return nil, err
	}
	if account.SessionID, err = k.secret(username, fieldSession); err != nil {
		return nil, err
	}
	if account.Password == "" && account.SessionID == "" {
		return nil, ErrCredentialsNotFound
	}

	raw, err := k.secret(username, fieldProfile)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		var profile keyringProfile
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal account profile: %w", err)
		}
		account.UserAgent = profile.UserAgent
		account.LastModified = profile.LastModified
	}

	return account, nil
}

// List returns every account named in the keychain index
func (k *KeyringStore) List() ([]*Account, error) {
	names, err := k.index()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(names))
	for _, name := range names {
		account, err := k.Retrieve(name)
		if errors.Is(err, ErrCredentialsNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes every entry of the account from the keychain
func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	var found bool
	for _, field := range []string{fieldPassword, fieldSession, fieldProfile} {
		err := keyring.Delete(keyringService, keyringKey(username, field))
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, keyring.ErrNotFound):
			return fmt.Errorf("failed to delete from keyring: %w", err)
		}
	}
	if !found {
		return ErrCredentialsNotFound
	}

	return k.updateIndex(func(names []string) []string {
		return slices.DeleteFunc(names, func(name string) bool { return name == username })
	})
}

// Exists checks if credentials exist in the keychain
func (k *KeyringStore) Exists(username string) bool {
	if username == "" {
		return false
	}
	account, err := k.Retrieve(username)
	return err == nil && account != nil
}

// secret reads one entry, treating a missing entry as empty
func (k *KeyringStore) secret(username, field string) (string, error) {
	value, err := keyring.Get(keyringService, keyringKey(username, field))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve from keyring: %w", err)
	}
	return value, nil
}

func (k *KeyringStore) index() ([]string, error) {
	raw, err := keyring.Get(keyringService, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("corrupt keyring index: %w", err)
	}
	return names, nil
}

func (k *KeyringStore) updateIndex(change func([]string) []string) error {
	names, err := k.index()
	if err != nil {
		return err
	}
	names = change(names)
	if len(names) == 0 {
		if err := keyring.Delete(keyringService, keyringIndex); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring index: %w", err)
		}
		return nil
	}

	slices.Sort(names)
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, keyringIndex, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring index: %w", err)
	}
	return nil
}
