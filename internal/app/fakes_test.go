package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/provider"
	"github.com/lu-zhengda/inboxsync/internal/store"
)

type fakeCredStore struct {
	mu       sync.Mutex
	creds    map[string]domain.Credential
	loadErr  error
	saveErr  error
	saves    int
	touched  []time.Time
	touchErr error
}

func newFakeCredStore(creds ...domain.Credential) *fakeCredStore {
	f := &fakeCredStore{creds: make(map[string]domain.Credential)}
	for _, c := range creds {
		f.creds[c.AccountID] = c
	}
	return f
}

func (f *fakeCredStore) LoadCredential(ctx context.Context, accountID string) (*domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	c, ok := f.creds[accountID]
	if !ok {
		return nil, fmt.Errorf("credential for %s: %w", accountID, store.ErrNotFound)
	}
	return &c, nil
}

func (f *fakeCredStore) SaveCredential(ctx context.Context, cred *domain.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.creds[cred.AccountID] = *cred
	return nil
}

func (f *fakeCredStore) TouchLastSynced(ctx context.Context, accountID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, at)
	c := f.creds[accountID]
	c.LastSyncedAt = &at
	f.creds[accountID] = c
	return nil
}

type fakeRefresher struct {
	token *oauth2.Token
	err   error
	calls []string
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.calls = append(f.calls, refreshToken)
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type fakeFetcher struct {
	mu        sync.Mutex
	ids       []string
	listErr   error
	fetchErrs map[string]error
	raw       map[string]*domain.RawMessage
	onFetch   func(id string)
	tokens    []string
	fetched   []string
}

func newFakeFetcher(ids ...string) *fakeFetcher {
	f := &fakeFetcher{
		ids:       ids,
		fetchErrs: make(map[string]error),
		raw:       make(map[string]*domain.RawMessage),
	}
	for _, id := range ids {
		f.raw[id] = rawMessage(id, "Hello "+id, "Alice <alice@example.com>")
	}
	return f
}

func (f *fakeFetcher) ListRecentIDs(ctx context.Context, accessToken string, opts provider.ListOptions) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, accessToken)
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := f.ids
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}
	return append([]string(nil), ids...), nil
}

func (f *fakeFetcher) FetchOne(ctx context.Context, accessToken, id string) (*domain.RawMessage, error) {
	if f.onFetch != nil {
		f.onFetch(id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, id)
	if err := f.fetchErrs[id]; err != nil {
		return nil, err
	}
	raw, ok := f.raw[id]
	if !ok {
		return nil, &provider.APIError{Status: 404, Message: "Requested entity was not found."}
	}
	cp := *raw
	return &cp, nil
}

type fakeSink struct {
	mu      sync.Mutex
	rows    map[string]domain.Message
	batches int
	err     error
}

func newFakeSink() *fakeSink {
	return &fakeSink{rows: make(map[string]domain.Message)}
}

func (f *fakeSink) UpsertMessages(ctx context.Context, accountID string, msgs []domain.Message) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(msgs) == 0 {
		return 0, nil
	}
	if f.err != nil {
		return 0, f.err
	}
	f.batches++
	for _, m := range msgs {
		f.rows[accountID+"/"+m.ProviderID] = m
	}
	return len(msgs), nil
}

func rawMessage(id, subject, from string) *domain.RawMessage {
	return &domain.RawMessage{
		ID:       id,
		ThreadID: "thread-" + id,
		Headers: []domain.Header{
			{Name: "From", Value: from},
			{Name: "To", Value: "me@gmail.com"},
			{Name: "Subject", Value: subject},
		},
		Body:         base64.RawURLEncoding.EncodeToString([]byte("body of " + id)),
		Snippet:      "snippet " + id,
		Labels:       []string{"INBOX", "UNREAD"},
		InternalDate: 1718447400000,
	}
}

var errBoom = errors.New("boom")
