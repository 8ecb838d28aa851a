package store

import (
	"context"
	"errors"
	"time"

	"github.com/lu-zhengda/inboxsync/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CredentialStore reads and writes OAuth credentials per account.
type CredentialStore interface {
	LoadCredential(ctx context.Context, accountID string) (*domain.Credential, error)
	SaveCredential(ctx context.Context, cred *domain.Credential) error
	TouchLastSynced(ctx context.Context, accountID string, at time.Time) error
}

// MessageSink writes decoded messages keyed by account and provider ID.
type MessageSink interface {
	UpsertMessages(ctx context.Context, accountID string, msgs []domain.Message) (int, error)
}

// Store defines the persistence interface for the application.
type Store interface {
	CredentialStore
	MessageSink

	// Accounts
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	// Messages
	GetMessage(ctx context.Context, accountID, providerID string) (*domain.Message, error)
	ListMessages(ctx context.Context, opts ListMessageOptions) ([]domain.Message, error)
	CountMessages(ctx context.Context, accountID string) (int, error)

	// API tokens
	CreateAPIToken(ctx context.Context, accountID string) (string, error)
	ResolveAPIToken(ctx context.Context, token string) (string, error)

	// Lifecycle
	Close() error
}

// ListMessageOptions configures message listing queries.
type ListMessageOptions struct {
	AccountID string
	Category  string
	Limit     int
	Offset    int
}
