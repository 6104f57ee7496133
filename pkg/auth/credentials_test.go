package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestAccountValidate(t *testing.T) {
	assert.Error(t, (*Account)(nil).Validate())
	assert.Error(t, (&Account{Password: "pw"}).Validate())
	assert.Error(t, (&Account{Username: "crawler"}).Validate())
	assert.NoError(t, (&Account{Username: "crawler", Password: "pw"}).Validate())
	assert.NoError(t, (&Account{Username: "crawler", SessionID: "sid"}).Validate())
}

func TestManagerLifecycle(t *testing.T) {
	manager, store := NewMockManager()

	account := &Account{
		Username:  "crawler",
		Password:  "correct-horse-battery",
		SessionID: "1234567%3Aabcdef%3A12",
		UserAgent: "TestAgent/1.0",
	}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	got, err := manager.Retrieve("crawler")
	require.NoError(t, err)
	assert.Equal(t, account.Password, got.Password)
	assert.Equal(t, account.SessionID, got.SessionID)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	def, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "crawler", def.Username)

	require.NoError(t, manager.Delete("crawler"))
	assert.Equal(t, 0, store.Count())

	_, err = manager.Retrieve("crawler")
	assert.Error(t, err)
	assert.Error(t, manager.Delete("crawler"))
}

func TestManagerStoreRejectsInvalid(t *testing.T) {
	manager, store := NewMockManager()
	assert.Error(t, manager.Store(&Account{Username: "crawler"}))
	assert.Equal(t, 0, store.Count())
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	require.NoError(t, manager.Store(&Account{Username: "crawler", Password: "pw"}))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())
}

func TestManagerListPrefersNewest(t *testing.T) {
	older, newer := NewMockStore(), NewMockStore()
	require.NoError(t, older.Store(&Account{Username: "crawler", Password: "old", LastModified: time.Now().Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Account{Username: "crawler", Password: "new", LastModified: time.Now()}))
	require.NoError(t, newer.Store(&Account{Username: "another", Password: "x", LastModified: time.Now()}))

	accounts, err := NewManagerWithStores(older, newer).List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "another", accounts[0].Username)
	assert.Equal(t, "new", accounts[1].Password)
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")
	t.Setenv(EnvSessionID, "")

	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	t.Setenv(EnvUsername, "crawler")
	t.Setenv(EnvSessionID, "env_session")

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "crawler", account.Username)
	assert.Equal(t, "env_session", account.SessionID)
	assert.True(t, store.Exists("crawler"))
	assert.False(t, store.Exists("someone-else"))

	assert.ErrorIs(t, store.Store(account), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("crawler"), ErrStoreUnavailable)

	manager := NewManagerWithStores(NewMockStore(), store)
	def, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "crawler", def.Username)
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(EnvPassphrase, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	account := &Account{Username: "crawler", Password: "secret-password", SessionID: "sid"}
	require.NoError(t, store.Store(account))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-password")

	got, err := store.Retrieve("crawler")
	require.NoError(t, err)
	assert.Equal(t, "secret-password", got.Password)
	assert.True(t, store.Exists("crawler"))

	// A second store with the same passphrase reads the same file
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	accounts, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, store.Delete("crawler"))
	assert.NoFileExists(t, path)
	_, err = store.Retrieve("crawler")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(EnvPassphrase, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "crawler", Password: "pw"}))

	t.Setenv(EnvPassphrase, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("crawler")
	assert.Error(t, err)
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(EnvPassphrase, "")
	dir := t.TempDir()

	_, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ".passphrase"))
}

func TestEncryptedFileStoreSealsEachSecret(t *testing.T) {
	t.Setenv(EnvPassphrase, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "alice", Password: "alice-pw", UserAgent: "Agent/1"}))
	require.NoError(t, store.Store(&Account{Username: "bob", Password: "bob-pw"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var vault vaultFile
	require.NoError(t, json.Unmarshal(raw, &vault))
	assert.Equal(t, vaultVersion, vault.Version)
	assert.Equal(t, "Agent/1", vault.Accounts["alice"].UserAgent)
	assert.Empty(t, vault.Accounts["alice"].SessionID)

	// A sealed password moved into another account's slot does not open
	bob := vault.Accounts["bob"]
	bob.Password = vault.Accounts["alice"].Password
	vault.Accounts["bob"] = bob
	tampered, err := json.Marshal(vault)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, tampered, 0600))

	_, err = store.Retrieve("bob")
	assert.Error(t, err)
	assert.False(t, store.Exists("bob"))
	alice, err := store.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice-pw", alice.Password)
}

func TestEncryptedFileStoreRotateGenerated(t *testing.T) {
	t.Setenv(EnvPassphrase, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "crawler", SessionID: "sid-before-rotation"}))

	before, err := os.ReadFile(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)

	require.NoError(t, store.Rotate(""))

	after, err := os.ReadFile(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.NotEqual(t, string(before), string(after))

	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Retrieve("crawler")
	require.NoError(t, err)
	assert.Equal(t, "sid-before-rotation", got.SessionID)
}

func TestEncryptedFileStoreRotateFromEnv(t *testing.T) {
	t.Setenv(EnvPassphrase, "old-passphrase")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	assert.True(t, store.PassphraseFromEnv())
	require.NoError(t, store.Store(&Account{Username: "crawler", Password: "pw"}))

	assert.Error(t, store.Rotate(""))
	require.NoError(t, store.Rotate("new-passphrase"))

	got, err := store.Retrieve("crawler")
	require.NoError(t, err)
	assert.Equal(t, "pw", got.Password)

	stale, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = stale.Retrieve("crawler")
	assert.Error(t, err)

	t.Setenv(EnvPassphrase, "new-passphrase")
	fresh, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	got, err = fresh.Retrieve("crawler")
	require.NoError(t, err)
	assert.Equal(t, "pw", got.Password)
}

func TestManagerFileStore(t *testing.T) {
	t.Setenv(EnvPassphrase, "test")
	fileStore, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)

	got, ok := NewManagerWithStores(NewMockStore(), fileStore).FileStore()
	assert.True(t, ok)
	assert.Same(t, fileStore, got)

	_, ok = NewManagerWithStores(NewMockStore()).FileStore()
	assert.False(t, ok)
}

func TestKeyringStoreSeparatesSecrets(t *testing.T) {
	keyring.MockInit()
	store, err := NewKeyringStore()
	require.NoError(t, err)

	modified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Store(&Account{
		Username:     "crawler",
		Password:     "pw",
		SessionID:    "sid",
		UserAgent:    "Agent/1",
		LastModified: modified,
	}))

	password, err := keyring.Get(keyringService, "crawler/password")
	require.NoError(t, err)
	assert.Equal(t, "pw", password)
	session, err := keyring.Get(keyringService, "crawler/session")
	require.NoError(t, err)
	assert.Equal(t, "sid", session)

	got, err := store.Retrieve("crawler")
	require.NoError(t, err)
	assert.Equal(t, "Agent/1", got.UserAgent)
	assert.True(t, modified.Equal(got.LastModified))

	// Switching to cookie-only sign in drops the stored password
	require.NoError(t, store.Store(&Account{Username: "crawler", SessionID: "sid2"}))
	_, err = keyring.Get(keyringService, "crawler/password")
	assert.ErrorIs(t, err, keyring.ErrNotFound)
	got, err = store.Retrieve("crawler")
	require.NoError(t, err)
	assert.Empty(t, got.Password)
	assert.Equal(t, "sid2", got.SessionID)
}

func TestKeyringStoreListAndDelete(t *testing.T) {
	keyring.MockInit()
	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Username: "bob", Password: "b"}))
	require.NoError(t, store.Store(&Account{Username: "alice", SessionID: "a"}))
	require.NoError(t, store.Store(&Account{Username: "alice", SessionID: "a2"}))

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	names := []string{accounts[0].Username, accounts[1].Username}
	assert.Equal(t, []string{"alice", "bob"}, names)

	require.NoError(t, store.Delete("alice"))
	assert.False(t, store.Exists("alice"))
	assert.True(t, store.Exists("bob"))
	assert.ErrorIs(t, store.Delete("alice"), ErrCredentialsNotFound)

	require.NoError(t, store.Delete("bob"))
	accounts, err = store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)
	_, err = keyring.Get(keyringService, keyringIndex)
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestKeyringStoreUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	t.Cleanup(keyring.MockInit)

	_, err := NewKeyringStore()
	assert.Error(t, err)
}

func TestSanitizeAccount(t *testing.T) {
	assert.Nil(t, SanitizeAccount(nil))

	account := &Account{Username: "crawler", Password: "hunter2hunter2", SessionID: "short"}
	sanitized := SanitizeAccount(account)
	assert.Equal(t, "crawler", sanitized.Username)
	assert.Equal(t, "hunt...ter2", sanitized.Password)
	assert.Equal(t, "********", sanitized.SessionID)
	assert.Equal(t, "", SanitizeAccount(&Account{Username: "x"}).Password)
}

func TestShowLoginGuide(t *testing.T) {
	var b strings.Builder
	ShowLoginGuide(&b)
	assert.Contains(t, b.String(), "sessionid")
	assert.Contains(t, b.String(), EnvSessionID)
}
