package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lu-zhengda/inboxsync/internal/config"
	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/provider/gmail"
)

func TestRun_DeadlineErrorIsNotSkip(t *testing.T) {
	f := newFakeFetcher("m1", "m2", "m3", "m4", "m5")
	f.fetchErrs["m3"] = fmt.Errorf("rate limit wait: %w", context.DeadlineExceeded)
	sink := newFakeSink()
	cfg := testSyncConfig()
	cfg.Concurrency = 1
	h := newSyncHarness(t, f, sink, cfg)

	sum, err := h.svc.Run(context.Background(), "acc-1")
	if KindOf(err) != KindCanceled {
		t.Fatalf("KindOf(err) = %q, want %q (err: %v)", KindOf(err), KindCanceled, err)
	}
	if sum.State != domain.StateFailed {
		t.Errorf("State = %v, want %v", sum.State, domain.StateFailed)
	}
	if sum.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0 (skips: %+v)", sum.Skipped, sum.Skips)
	}
	if len(sink.rows) != 0 {
		t.Errorf("rows written = %d, want 0 for the unfinished window", len(sink.rows))
	}
	if len(h.creds.touched) != 0 {
		t.Errorf("TouchLastSynced calls = %d, want 0", len(h.creds.touched))
	}
}

func TestRun_ListDeadlineIsCanceled(t *testing.T) {
	f := newFakeFetcher("m1")
	f.listErr = fmt.Errorf("failed to list gmail messages: %w", context.DeadlineExceeded)
	h := newSyncHarness(t, f, newFakeSink(), testSyncConfig())

	_, err := h.svc.Run(context.Background(), "acc-1")
	if KindOf(err) != KindCanceled {
		t.Errorf("KindOf(err) = %q, want %q (err: %v)", KindOf(err), KindCanceled, err)
	}
}

func TestRun_RateLimitedPastTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/gmail/v1/users/me/messages" {
			json.NewEncoder(w).Encode(map[string]any{
				"messages": []map[string]string{{"id": "m1"}, {"id": "m2"}, {"id": "m3"}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":           "m1",
			"internalDate": "1718447400000",
			"payload":      map[string]any{"mimeType": "text/plain", "body": map[string]any{"data": "SGk"}},
		})
	}))
	t.Cleanup(srv.Close)

	client := gmail.NewClient(gmail.ClientOptions{Endpoint: srv.URL + "/", RequestsPerSecond: 1})
	cfg := testSyncConfig()
	cfg.Concurrency = 1
	cfg.Timeout = config.Duration{Duration: 300 * time.Millisecond}

	creds := newFakeCredStore(domain.Credential{AccountID: "acc-1", AccessToken: "tok-1"})
	sink := newFakeSink()
	svc := NewSyncService(newTestCredentialManager(creds, &fakeRefresher{}), client, sink, cfg, zerolog.Nop())

	sum, err := svc.Run(context.Background(), "acc-1")
	if KindOf(err) != KindCanceled {
		t.Fatalf("KindOf(err) = %q, want %q (err: %v)", KindOf(err), KindCanceled, err)
	}
	if sum.Listed != 3 {
		t.Errorf("Listed = %d, want 3", sum.Listed)
	}
	if sum.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0 (skips: %+v)", sum.Skipped, sum.Skips)
	}
	if len(creds.touched) != 0 {
		t.Errorf("TouchLastSynced calls = %d, want 0", len(creds.touched))
	}
}
