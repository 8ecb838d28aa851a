package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/store"
)

type credentialRow struct {
	AccountID    string       `db:"account_id"`
	AccessToken  string       `db:"access_token"`
	RefreshToken string       `db:"refresh_token"`
	ExpiresAt    sql.NullTime `db:"expires_at"`
	EmailAddress string       `db:"email_address"`
	LastSyncedAt sql.NullTime `db:"last_synced_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// LoadCredential returns the stored credential for an account, or an error
// wrapping store.ErrNotFound when the account was never linked.
func (s *DB) LoadCredential(ctx context.Context, accountID string) (*domain.Credential, error) {
	var r credentialRow
	err := s.db.GetContext(ctx, &r, `
		SELECT account_id, access_token, refresh_token, expires_at,
			email_address, last_synced_at, updated_at
		FROM credentials WHERE account_id = ?`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential for %s: %w", accountID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential for %s: %w", accountID, err)
	}

	return &domain.Credential{
		AccountID:    r.AccountID,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    timePtr(r.ExpiresAt),
		EmailAddress: r.EmailAddress,
		LastSyncedAt: timePtr(r.LastSyncedAt),
	}, nil
}

// SaveCredential inserts or replaces the credential for its account.
func (s *DB) SaveCredential(ctx context.Context, cred *domain.Credential) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO credentials (account_id, access_token, refresh_token, expires_at,
			email_address, last_synced_at, updated_at)
		VALUES (:account_id, :access_token, :refresh_token, :expires_at,
			:email_address, :last_synced_at, :updated_at)
		ON CONFLICT(account_id) DO UPDATE SET
			access_token   = excluded.access_token,
			refresh_token  = excluded.refresh_token,
			expires_at     = excluded.expires_at,
			email_address  = excluded.email_address,
			last_synced_at = excluded.last_synced_at,
			updated_at     = excluded.updated_at`,
		credentialRow{
			AccountID:    cred.AccountID,
			AccessToken:  cred.AccessToken,
			RefreshToken: cred.RefreshToken,
			ExpiresAt:    nullTime(cred.ExpiresAt),
			EmailAddress: cred.EmailAddress,
			LastSyncedAt: nullTime(cred.LastSyncedAt),
			UpdatedAt:    s.now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to save credential for %s: %w", cred.AccountID, err)
	}
	return nil
}

// TouchLastSynced stamps last_synced_at for an account's credential.
func (s *DB) TouchLastSynced(ctx context.Context, accountID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET last_synced_at = ?, updated_at = ? WHERE account_id = ?`,
		at.UTC(), s.now().UTC(), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to stamp last sync for %s: %w", accountID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("credential for %s: %w", accountID, store.ErrNotFound)
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
