package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/provider"
)

const (
	userID          = "me"
	defaultLimit    = 50
	maxPageSize     = 500
	breakerFailures = 5
)

// ClientOptions configures a Client. A zero RequestsPerSecond disables
// rate limiting.
type ClientOptions struct {
	Endpoint          string
	RequestsPerSecond float64
	BreakerTimeout    time.Duration
}

// Client reads messages from the Gmail API with a caller-supplied access
// token. All calls share one rate limiter and one circuit breaker.
type Client struct {
	endpoint string
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
}

// NewClient creates a Gmail client.
func NewClient(opts ClientOptions) *Client {
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	timeout := opts.BreakerTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint: opts.Endpoint,
		limiter:  rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "gmail",
			Timeout: timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > breakerFailures
			},
			IsSuccessful: isBreakerSuccess,
		}),
	}
}

// ListRecentIDs pages through the account's message list until opts.Limit
// IDs are collected or no pages remain.
func (c *Client) ListRecentIDs(ctx context.Context, accessToken string, opts provider.ListOptions) ([]string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	call := svc.Users.Messages.List(userID).MaxResults(int64(min(limit, maxPageSize)))
	if opts.Query != "" {
		call = call.Q(opts.Query)
	}

	ids := make([]string, 0, limit)
	for {
		res, err := c.do(ctx, func() (interface{}, error) {
			return call.Context(ctx).Do()
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list gmail messages: %w", err)
		}

		resp := res.(*gmailapi.ListMessagesResponse)
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
			if len(ids) == limit {
				return ids, nil
			}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		call = call.PageToken(resp.NextPageToken)
	}
}

// FetchOne retrieves a single message in full format.
func (c *Client) FetchOne(ctx context.Context, accessToken, id string) (*domain.RawMessage, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	res, err := c.do(ctx, func() (interface{}, error) {
		return svc.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get gmail message %s: %w", id, err)
	}
	return mapMessage(res.(*gmailapi.Message)), nil
}

// Profile returns the mailbox address the access token belongs to.
func (c *Client) Profile(ctx context.Context, accessToken string) (string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	res, err := c.do(ctx, func() (interface{}, error) {
		return svc.Users.GetProfile(userID).Context(ctx).Do()
	})
	if err != nil {
		return "", fmt.Errorf("failed to get gmail profile: %w", err)
	}
	return res.(*gmailapi.Profile).EmailAddress, nil
}

func (c *Client) service(ctx context.Context, accessToken string) (*gmailapi.Service, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	srv, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return srv, nil
}

// do waits for the rate limiter and runs fn through the circuit breaker.
func (c *Client) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// Wait refuses early when the next slot falls past the deadline.
		return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	res, err := c.breaker.Execute(fn)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

// mapError converts Gmail API errors into provider.APIError.
func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = strings.TrimSpace(gerr.Body)
		}
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return &provider.APIError{Status: gerr.Code, Message: msg}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &provider.APIError{Status: http.StatusServiceUnavailable, Message: err.Error()}
	}
	return err
}

// isBreakerSuccess keeps client errors such as a missing message from
// tripping the breaker. Only server errors, throttling and transport
// failures count; a caller's canceled or expired context does not.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code < 500 && gerr.Code != http.StatusTooManyRequests
	}
	return false
}

var _ provider.Fetcher = (*Client)(nil)
