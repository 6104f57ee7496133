package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize     = 32
	keySize      = 32
	iterations   = 100000
	vaultVersion = 2

	// EnvPassphrase overrides the generated passphrase file
	EnvPassphrase = "IGCRAWLER_PASSPHRASE"
)

// vaultFile is the on-disk layout. Usernames and user agents stay readable;
// each secret is sealed on its own and bound to its account and field, so a
// sealed password cannot be moved into another account's slot.
type vaultFile struct {
	Version  int                   `json:"version"`
	Salt     []byte                `json:"salt"`
	Accounts map[string]vaultEntry `json:"accounts"`
}

type vaultEntry struct {
	Password     []byte    `json:"password,omitempty"`
	SessionID    []byte    `json:"session_id,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// EncryptedFileStore implements CredentialStore using an AES-GCM sealed file
// whose key is derived from a passphrase with PBKDF2.
type EncryptedFileStore struct {
	path       string
	passphrase string
	fromEnv    bool

	mu      sync.Mutex
	key     []byte
	keySalt []byte
}

// NewEncryptedFileStore opens the store at path, generating a passphrase file
// next to it unless IGCRAWLER_PASSPHRASE is set
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	store := &EncryptedFileStore{path: path}
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		store.passphrase, store.fromEnv = pass, true
		return store, nil
	}

	pass, err := readOrCreatePassphrase(store.passphraseFile())
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	store.passphrase = pass
	return store, nil
}

// Store seals the account's secrets and rewrites the file
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	vault, err := e.load()
	if err != nil {
		return err
	}
	key := e.deriveKey(e.passphrase, vault.Salt)

	entry, err := sealAccount(key, account)
	if err != nil {
		return err
	}
	vault.Accounts[account.Username] = entry
	return e.save(vault)
}

// Retrieve opens the secrets of one account
func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	vault, err := e.load()
	if err != nil {
		return nil, err
	}
	entry, ok := vault.Accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return openAccount(e.deriveKey(e.passphrase, vault.Salt), username, entry)
}

// List opens every account in the file
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vault, err := e.load()
	if err != nil {
		return nil, err
	}
	key := e.deriveKey(e.passphrase, vault.Salt)

	accounts := make([]*Account, 0, len(vault.Accounts))
	for username, entry := range vault.Accounts {
		account, err := openAccount(key, username, entry)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes one account; the file goes away with the last one
func (e *EncryptedFileStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	vault, err := e.load()
	if err != nil {
		return err
	}
	if _, ok := vault.Accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(vault.Accounts, username)

	if len(vault.Accounts) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials file: %w", err)
		}
		return nil
	}
	return e.save(vault)
}

// Exists reports whether the account is stored and opens with the current passphrase
func (e *EncryptedFileStore) Exists(username string) bool {
	account, err := e.Retrieve(username)
	return err == nil && account != nil
}

// PassphraseFromEnv reports whether the passphrase came from IGCRAWLER_PASSPHRASE
func (e *EncryptedFileStore) PassphraseFromEnv() bool {
	return e.fromEnv
}

// Rotate re-seals every account under a fresh salt and a new passphrase.
// An empty passphrase generates one into the passphrase file, which is only
// possible when the passphrase does not come from the environment.
func (e *EncryptedFileStore) Rotate(passphrase string) error {
	if passphrase == "" && e.fromEnv {
		return fmt.Errorf("a new passphrase is required when %s is set", EnvPassphrase)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	vault, err := e.load()
	if err != nil {
		return err
	}
	oldKey := e.deriveKey(e.passphrase, vault.Salt)

	accounts := make([]*Account, 0, len(vault.Accounts))
	for username, entry := range vault.Accounts {
		account, err := openAccount(oldKey, username, entry)
		if err != nil {
			return err
		}
		accounts = append(accounts, account)
	}

	if passphrase == "" {
		if passphrase, err = generatePassphrase(); err != nil {
			return err
		}
	}

	salt, err := newSalt()
	if err != nil {
		return err
	}
	rotated := &vaultFile{Version: vaultVersion, Salt: salt, Accounts: make(map[string]vaultEntry, len(accounts))}
	newKey := e.deriveKey(passphrase, salt)
	for _, account := range accounts {
		entry, err := sealAccount(newKey, account)
		if err != nil {
			return err
		}
		rotated.Accounts[account.Username] = entry
	}

	if len(rotated.Accounts) > 0 {
		if err := e.save(rotated); err != nil {
			return err
		}
	}
	if !e.fromEnv {
		if err := writeFileAtomic(e.passphraseFile(), []byte(passphrase)); err != nil {
			return fmt.Errorf("failed to save passphrase: %w", err)
		}
	}
	e.passphrase = passphrase
	return nil
}

func (e *EncryptedFileStore) passphraseFile() string {
	return filepath.Join(filepath.Dir(e.path), ".passphrase")
}

// load reads the vault, returning an empty one with a fresh salt when no file exists
func (e *EncryptedFileStore) load() (*vaultFile, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		salt, err := newSalt()
		if err != nil {
			return nil, err
		}
		return &vaultFile{Version: vaultVersion, Salt: salt, Accounts: map[string]vaultEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var vault vaultFile
	if err := json.Unmarshal(content, &vault); err != nil {
		return nil, fmt.Errorf("corrupt credentials file: %w", err)
	}
	if vault.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported credentials file version %d", vault.Version)
	}
	if len(vault.Salt) != saltSize {
		return nil, errors.New("corrupt credentials file: bad salt")
	}
	if vault.Accounts == nil {
		vault.Accounts = map[string]vaultEntry{}
	}
	return &vault, nil
}

func (e *EncryptedFileStore) save(vault *vaultFile) error {
	content, err := json.MarshalIndent(vault, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return writeFileAtomic(e.path, content)
}

// deriveKey runs PBKDF2 once per passphrase and salt pair
func (e *EncryptedFileStore) deriveKey(passphrase string, salt []byte) []byte {
	if passphrase == e.passphrase && e.key != nil && bytes.Equal(e.keySalt, salt) {
		return e.key
	}
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
	if passphrase == e.passphrase {
		e.key, e.keySalt = key, salt
	}
	return key
}

func sealAccount(key []byte, account *Account) (vaultEntry, error) {
	entry := vaultEntry{UserAgent: account.UserAgent, LastModified: account.LastModified}
	var err error
	if entry.Password, err = seal(key, account.Username, fieldPassword, account.Password); err != nil {
		return entry, err
	}
	if entry.SessionID, err = seal(key, account.Username, fieldSession, account.SessionID); err != nil {
		return entry, err
	}
	return entry, nil
}

func openAccount(key []byte, username string, entry vaultEntry) (*Account, error) {
	account := &Account{Username: username, UserAgent: entry.UserAgent, LastModified: entry.LastModified}
	var err error
	if account.Password, err = open(key, username, fieldPassword, entry.Password); err != nil {
		return nil, err
	}
	if account.SessionID, err = open(key, username, fieldSession, entry.SessionID); err != nil {
		return nil, err
	}
	return account, nil
}

// seal encrypts one secret with AES-GCM, binding it to username and field
func seal(key []byte, username, field, secret string) ([]byte, error) {
	if secret == "" {
		return nil, nil
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, []byte(secret), []byte(username+"/"+field)), nil
}

func open(key []byte, username, field string, sealed []byte) (string, error) {
	if len(sealed) == 0 {
		return "", nil
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", errors.New("sealed secret too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, []byte(username+"/"+field))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s for %s (wrong passphrase?): %w", field, username, err)
	}
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func readOrCreatePassphrase(path string) (string, error) {
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}
	pass, err := generatePassphrase()
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, []byte(pass)); err != nil {
		return "", err
	}
	return pass, nil
}

func generatePassphrase() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func writeFileAtomic(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return os.Rename(tmp, path)
}
