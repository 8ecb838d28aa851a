package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lu-zhengda/inboxsync/internal/domain"
)

// writeJSON renders a --json result as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Account JSON types (account list)
// ---------------------------------------------------------------------------

type jsonAccount struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Provider  string `json:"provider"`
	CreatedAt string `json:"created_at"`
	Messages  int    `json:"messages"`
}

// toJSONAccounts converts accounts; counts maps account ID to stored
// message count and may be nil.
func toJSONAccounts(accounts []domain.Account, counts map[string]int) []jsonAccount {
	out := make([]jsonAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, jsonAccount{
			ID:        a.ID,
			Email:     a.Email,
			Provider:  a.Provider,
			CreatedAt: a.CreatedAt.Format(time.DateOnly),
			Messages:  counts[a.ID],
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Message JSON type (messages list)
// ---------------------------------------------------------------------------

type jsonMessage struct {
	ID         string      `json:"id"`
	ThreadID   string      `json:"thread_id"`
	From       jsonAddress `json:"from"`
	To         string      `json:"to"`
	Subject    string      `json:"subject"`
	Snippet    string      `json:"snippet,omitempty"`
	Priority   int         `json:"priority"`
	Category   string      `json:"category"`
	IsRead     bool        `json:"is_read"`
	IsStarred  bool        `json:"is_starred"`
	InInbox    bool        `json:"in_inbox"`
	Labels     []string    `json:"labels,omitempty"`
	ReceivedAt string      `json:"received_at"`
	BodyText   string      `json:"body_text,omitempty"`
}

type jsonAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

func toJSONMessage(m *domain.Message) jsonMessage {
	return jsonMessage{
		ID:         m.ProviderID,
		ThreadID:   m.ThreadID,
		From:       jsonAddress{Name: m.FromDisplayName, Email: m.FromEmail},
		To:         m.ToEmail,
		Subject:    m.Subject,
		Snippet:    m.Snippet,
		Priority:   m.Priority,
		Category:   m.Category,
		IsRead:     m.IsRead,
		IsStarred:  m.IsStarred,
		InInbox:    m.HasLabel(domain.LabelInbox),
		Labels:     m.Labels,
		ReceivedAt: m.ReceivedAt.Format(time.RFC3339),
	}
}

func toJSONMessages(msgs []domain.Message) []jsonMessage {
	out := make([]jsonMessage, 0, len(msgs))
	for i := range msgs {
		out = append(out, toJSONMessage(&msgs[i]))
	}
	return out
}

// ---------------------------------------------------------------------------
// Sync summary JSON type (sync)
// ---------------------------------------------------------------------------

type jsonSkip struct {
	ID     string `json:"id"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

type jsonSummary struct {
	AccountID  string     `json:"account_id"`
	State      string     `json:"state"`
	Listed     int        `json:"listed"`
	Written    int        `json:"written"`
	Skipped    int        `json:"skipped"`
	Skips      []jsonSkip `json:"skips,omitempty"`
	StartedAt  string     `json:"started_at"`
	DurationMS int64      `json:"duration_ms"`
}

func toJSONSummary(s *domain.Summary) jsonSummary {
	var skips []jsonSkip
	for _, sk := range s.Skips {
		skips = append(skips, jsonSkip{ID: sk.ProviderID, Stage: sk.Stage, Reason: sk.Reason})
	}
	return jsonSummary{
		AccountID:  s.AccountID,
		State:      s.State.String(),
		Listed:     s.Listed,
		Written:    s.Written,
		Skipped:    s.Skipped,
		Skips:      skips,
		StartedAt:  s.StartedAt.Format(time.RFC3339),
		DurationMS: s.Duration().Milliseconds(),
	}
}

// ---------------------------------------------------------------------------
// Token JSON type (token issue)
// ---------------------------------------------------------------------------

type jsonToken struct {
	AccountID string `json:"account_id"`
	Token     string `json:"token"`
}

// ---------------------------------------------------------------------------
// Action JSON type (account link, account remove)
// ---------------------------------------------------------------------------

type jsonAction struct {
	OK        bool   `json:"ok"`
	Action    string `json:"action"`
	Email     string `json:"email,omitempty"`
	AccountID string `json:"account_id,omitempty"`
}
