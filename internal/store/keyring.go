package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/lu-zhengda/inboxsync/internal/domain"
)

const serviceName = "inboxsync"

// KeyringCredentialStore persists credentials in the OS keyring
// (macOS Keychain, Windows Credential Manager, or Linux Secret Service).
type KeyringCredentialStore struct{}

// NewKeyringCredentialStore returns a new KeyringCredentialStore.
func NewKeyringCredentialStore() *KeyringCredentialStore {
	return &KeyringCredentialStore{}
}

// SaveCredential stores the credential in the OS keyring under its account ID.
func (k *KeyringCredentialStore) SaveCredential(_ context.Context, cred *domain.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := keyring.Set(serviceName, cred.AccountID, string(data)); err != nil {
		return fmt.Errorf("failed to save credential to keyring: %w", err)
	}
	return nil
}

// LoadCredential retrieves the credential for the given account ID from the
// OS keyring. It returns ErrNotFound when the account was never linked.
func (k *KeyringCredentialStore) LoadCredential(_ context.Context, accountID string) (*domain.Credential, error) {
	data, err := keyring.Get(serviceName, accountID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("credential for %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential from keyring: %w", err)
	}
	var cred domain.Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// TouchLastSynced stamps the credential's last sync time.
func (k *KeyringCredentialStore) TouchLastSynced(ctx context.Context, accountID string, at time.Time) error {
	cred, err := k.LoadCredential(ctx, accountID)
	if err != nil {
		return err
	}
	at = at.UTC()
	cred.LastSyncedAt = &at
	return k.SaveCredential(ctx, cred)
}

// DeleteCredential removes the credential for the given account ID from the OS keyring.
func (k *KeyringCredentialStore) DeleteCredential(accountID string) error {
	err := keyring.Delete(serviceName, accountID)
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("credential for %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete credential from keyring: %w", err)
	}
	return nil
}

var _ CredentialStore = (*KeyringCredentialStore)(nil)
