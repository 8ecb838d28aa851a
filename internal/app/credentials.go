package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/provider"
	"github.com/lu-zhengda/inboxsync/internal/store"
)

// CredentialManager loads account credentials and keeps their access
// tokens valid.
type CredentialManager struct {
	store     store.CredentialStore
	refresher provider.Refresher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewCredentialManager(s store.CredentialStore, r provider.Refresher, logger zerolog.Logger) *CredentialManager {
	return &CredentialManager{store: s, refresher: r, logger: logger, now: time.Now}
}

// Load returns the account's stored credential. An account without one is
// reported as KindNotLinked.
func (m *CredentialManager) Load(ctx context.Context, accountID string) (*domain.Credential, error) {
	cred, err := m.store.LoadCredential(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotLinked, "load credential", err)
	}
	if err != nil {
		return nil, newError(KindStore, "load credential", err)
	}
	return cred, nil
}

// EnsureValid returns cred unchanged unless its access token has expired
// and a refresh token is available. In that case the token is refreshed,
// the new expiry computed from now, and the result persisted before it is
// returned. The provider may omit the refresh token; the old one is kept.
func (m *CredentialManager) EnsureValid(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	now := m.now()
	if !cred.Expired(now) || !cred.CanRefresh() {
		return cred, nil
	}

	token, err := m.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return nil, newError(KindTokenRefreshFailed, "refresh token", err)
	}

	updated := *cred
	updated.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		updated.RefreshToken = token.RefreshToken
	}
	updated.ExpiresAt = expiryFrom(token, now)

	if err := m.store.SaveCredential(ctx, &updated); err != nil {
		return nil, newError(KindStore, "save refreshed credential", err)
	}

	m.logger.Info().
		Str("account_id", cred.AccountID).
		Time("expires_at", derefTime(updated.ExpiresAt)).
		Msg("access token refreshed")
	return &updated, nil
}

// TouchLastSynced stamps the account's last successful write.
func (m *CredentialManager) TouchLastSynced(ctx context.Context, accountID string) error {
	if err := m.store.TouchLastSynced(ctx, accountID, m.now().UTC()); err != nil {
		return newError(KindStore, "stamp last sync", err)
	}
	return nil
}

// fallbackTokenLifetime applies when a refresh response carries no expiry.
const fallbackTokenLifetime = 30 * time.Minute

func expiryFrom(token *oauth2.Token, now time.Time) *time.Time {
	var exp time.Time
	switch {
	case token.ExpiresIn > 0:
		exp = now.Add(time.Duration(token.ExpiresIn) * time.Second)
	case !token.Expiry.IsZero():
		exp = token.Expiry
	default:
		exp = now.Add(fallbackTokenLifetime)
	}
	exp = exp.UTC()
	return &exp
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
