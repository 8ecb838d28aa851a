package provider

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/lu-zhengda/inboxsync/internal/domain"
)

// ErrTokenRejected is returned when the provider refuses a refresh token.
var ErrTokenRejected = errors.New("refresh token rejected by provider")

// APIError is a non-2xx response from the provider's message API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider api error %d: %s", e.Status, e.Message)
}

type ListOptions struct {
	Limit int
	Query string
}

// Fetcher lists and retrieves messages with an already valid access token.
type Fetcher interface {
	ListRecentIDs(ctx context.Context, accessToken string, opts ListOptions) ([]string, error)
	FetchOne(ctx context.Context, accessToken, id string) (*domain.RawMessage, error)
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}
