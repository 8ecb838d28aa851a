package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lu-zhengda/inboxsync/internal/app"
	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/store"
)

type fakeSyncer struct {
	sum      *domain.Summary
	err      error
	accounts []string
}

func (f *fakeSyncer) Run(ctx context.Context, accountID string) (*domain.Summary, error) {
	f.accounts = append(f.accounts, accountID)
	return f.sum, f.err
}

type fakeStore struct {
	tokens     map[string]string
	resolveErr error
	msgs       []domain.Message
	listOpts   store.ListMessageOptions
}

func (f *fakeStore) ResolveAPIToken(ctx context.Context, token string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	id, ok := f.tokens[token]
	if !ok {
		return "", fmt.Errorf("api token: %w", store.ErrNotFound)
	}
	return id, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, opts store.ListMessageOptions) ([]domain.Message, error) {
	f.listOpts = opts
	return f.msgs, nil
}

func newTestServer(syncer *fakeSyncer, st *fakeStore) http.Handler {
	if st.tokens == nil {
		st.tokens = map[string]string{"isk_good": "acc-1"}
	}
	return New(syncer, st, zerolog.Nop()).Handler()
}

func do(t *testing.T, h http.Handler, method, target, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSync_Success(t *testing.T) {
	syncer := &fakeSyncer{sum: &domain.Summary{Written: 4, Skipped: 1, State: domain.StateDone}}
	h := newTestServer(syncer, &fakeStore{})

	rec := do(t, h, http.MethodPost, "/sync", "Bearer isk_good")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}

	var got syncResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := syncResponse{Success: true, Count: 4, Skipped: 1, Message: "Synchronized 4 emails"}
	if got != want {
		t.Errorf("response = %+v, want %+v", got, want)
	}
	if len(syncer.accounts) != 1 || syncer.accounts[0] != "acc-1" {
		t.Errorf("synced accounts = %v, want [acc-1]", syncer.accounts)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestSync_Auth(t *testing.T) {
	tests := []struct {
		name string
		auth string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer "},
		{"unknown token", "Bearer isk_bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &fakeSyncer{sum: &domain.Summary{}}
			rec := do(t, newTestServer(syncer, &fakeStore{}), http.MethodPost, "/sync", tt.auth)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if len(syncer.accounts) != 0 {
				t.Error("sync ran without a valid token")
			}
			var got errorResponse
			json.NewDecoder(rec.Body).Decode(&got)
			if got.Error == "" || got.Kind != kindUnauthorized {
				t.Errorf("body = %+v, want unauthorized error", got)
			}
		})
	}
}

func TestSync_ResolveFailure(t *testing.T) {
	syncer := &fakeSyncer{}
	rec := do(t, newTestServer(syncer, &fakeStore{resolveErr: errors.New("disk I/O error")}), http.MethodPost, "/sync", "Bearer isk_good")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestSync_ErrorKinds(t *testing.T) {
	tests := []struct {
		kind app.Kind
		want int
	}{
		{app.KindConfiguration, http.StatusBadRequest},
		{app.KindNotLinked, http.StatusNotFound},
		{app.KindTokenRefreshFailed, http.StatusUnauthorized},
		{app.KindProvider, http.StatusFailedDependency},
		{app.KindStore, http.StatusInternalServerError},
		{app.KindCanceled, http.StatusServiceUnavailable},
		{app.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			syncer := &fakeSyncer{
				sum: &domain.Summary{State: domain.StateFailed},
				err: &app.Error{Kind: tt.kind, Op: "sync", Err: errors.New("boom")},
			}
			rec := do(t, newTestServer(syncer, &fakeStore{}), http.MethodPost, "/sync", "Bearer isk_good")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var got errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if got.Kind != string(tt.kind) {
				t.Errorf("kind = %q, want %q", got.Kind, tt.kind)
			}
			if !strings.Contains(got.Error, "boom") {
				t.Errorf("error = %q, want the underlying message", got.Error)
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	rec := do(t, newTestServer(&fakeSyncer{}, &fakeStore{}), http.MethodOptions, "/sync", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != allowedHeaders {
		t.Errorf("Access-Control-Allow-Headers = %q, want %q", got, allowedHeaders)
	}
}

func TestSync_MethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(&fakeSyncer{}, &fakeStore{}), http.MethodGet, "/sync", "Bearer isk_good")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestListMessages(t *testing.T) {
	st := &fakeStore{msgs: []domain.Message{
		{ProviderID: "m1", Subject: "Invoice", Category: "Finance", Priority: 3, Labels: []string{"INBOX"}},
	}}
	h := newTestServer(&fakeSyncer{}, st)

	rec := do(t, h, http.MethodGet, "/messages?limit=10&category=Finance", "Bearer isk_good")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	want := store.ListMessageOptions{AccountID: "acc-1", Category: "Finance", Limit: 10}
	if st.listOpts != want {
		t.Errorf("list options = %+v, want %+v", st.listOpts, want)
	}

	var got []messageResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].ProviderID != "m1" || got[0].Category != "Finance" {
		t.Errorf("messages = %+v", got)
	}
}

func TestListMessages_Limit(t *testing.T) {
	tests := []struct {
		query     string
		wantCode  int
		wantLimit int
	}{
		{"", http.StatusOK, defaultListLimit},
		{"?limit=100000", http.StatusOK, maxListLimit},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			st := &fakeStore{}
			rec := do(t, newTestServer(&fakeSyncer{}, st), http.MethodGet, "/messages"+tt.query, "Bearer isk_good")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if st.listOpts.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", st.listOpts.Limit, tt.wantLimit)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestServer(&fakeSyncer{}, &fakeStore{}), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(&fakeSyncer{}, &fakeStore{}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, time.Second) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
