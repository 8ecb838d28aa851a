package domain

import "time"

type Account struct {
	ID        string
	Email     string
	Provider  string
	CreatedAt time.Time
}

// Credential is the stored OAuth token pair for one account.
// A nil ExpiresAt means the access token never expires.
type Credential struct {
	AccountID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	EmailAddress string
	LastSyncedAt *time.Time
}

// Expired reports whether the access token expired before now.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

func (c *Credential) CanRefresh() bool {
	return c.RefreshToken != ""
}
