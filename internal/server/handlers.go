package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lu-zhengda/inboxsync/internal/app"
	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	kindUnauthorized = "unauthorized"
	kindBadRequest   = "bad_request"
)

type accountKey struct{}

func accountFrom(ctx context.Context) string {
	id, _ := ctx.Value(accountKey{}).(string)
	return id
}

// requireAccount resolves the bearer API token to an account and stores
// it in the request context.
func (s *Server) requireAccount(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, kindUnauthorized, "Missing authorization header")
			return
		}

		accountID, err := s.store.ResolveAPIToken(r.Context(), token)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, kindUnauthorized, "Invalid API token")
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to resolve api token")
			writeError(w, http.StatusInternalServerError, string(app.KindStore), "Failed to resolve API token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, accountID)))
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type syncResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Skipped int    `json:"skipped"`
	Message string `json:"message"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	sum, err := s.syncer.Run(r.Context(), accountFrom(r.Context()))
	if err != nil {
		kind := app.KindOf(err)
		writeError(w, statusForKind(kind), string(kind), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Success: true,
		Count:   sum.Written,
		Skipped: sum.Skipped,
		Message: fmt.Sprintf("Synchronized %d emails", sum.Written),
	})
}

// statusForKind maps a failed run to its HTTP status.
func statusForKind(kind app.Kind) int {
	switch kind {
	case app.KindConfiguration:
		return http.StatusBadRequest
	case app.KindNotLinked:
		return http.StatusNotFound
	case app.KindTokenRefreshFailed:
		return http.StatusUnauthorized
	case app.KindProvider:
		return http.StatusFailedDependency
	case app.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type messageResponse struct {
	ProviderID      string    `json:"provider_id"`
	ThreadID        string    `json:"thread_id"`
	FromEmail       string    `json:"from_email"`
	FromDisplayName string    `json:"from_name"`
	ToEmail         string    `json:"to_email"`
	Subject         string    `json:"subject"`
	BodyText        string    `json:"body_text"`
	BodyHTML        string    `json:"body_html"`
	Snippet         string    `json:"snippet"`
	Labels          []string  `json:"labels"`
	Priority        int       `json:"priority"`
	Category        string    `json:"category"`
	IsRead          bool      `json:"is_read"`
	IsStarred       bool      `json:"is_starred"`
	ReceivedAt      time.Time `json:"received_at"`
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ProviderID:      m.ProviderID,
		ThreadID:        m.ThreadID,
		FromEmail:       m.FromEmail,
		FromDisplayName: m.FromDisplayName,
		ToEmail:         m.ToEmail,
		Subject:         m.Subject,
		BodyText:        m.BodyText,
		BodyHTML:        m.BodyHTML,
		Snippet:         m.Snippet,
		Labels:          m.Labels,
		Priority:        m.Priority,
		Category:        m.Category,
		IsRead:          m.IsRead,
		IsStarred:       m.IsStarred,
		ReceivedAt:      m.ReceivedAt,
	}
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, kindBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	msgs, err := s.store.ListMessages(r.Context(), store.ListMessageOptions{
		AccountID: accountFrom(r.Context()),
		Category:  q.Get("category"),
		Limit:     limit,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list messages")
		writeError(w, http.StatusInternalServerError, string(app.KindStore), "Failed to list messages")
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
