package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/store"
)

type messageRow struct {
	AccountID  string    `db:"account_id"`
	ProviderID string    `db:"provider_id"`
	ThreadID   string    `db:"thread_id"`
	FromEmail  string    `db:"from_email"`
	FromName   string    `db:"from_name"`
	ToEmail    string    `db:"to_email"`
	Subject    string    `db:"subject"`
	BodyText   string    `db:"body_text"`
	BodyHTML   string    `db:"body_html"`
	Snippet    string    `db:"snippet"`
	Labels     string    `db:"labels"`
	Priority   int       `db:"priority"`
	Category   string    `db:"category"`
	IsRead     bool      `db:"is_read"`
	IsStarred  bool      `db:"is_starred"`
	ReceivedAt time.Time `db:"received_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

const messageColumns = `account_id, provider_id, thread_id, from_email, from_name, to_email,
	subject, body_text, body_html, snippet, labels, priority, category,
	is_read, is_starred, received_at, updated_at`

const upsertMessage = `
	INSERT INTO messages (` + messageColumns + `)
	VALUES (:account_id, :provider_id, :thread_id, :from_email, :from_name, :to_email,
		:subject, :body_text, :body_html, :snippet, :labels, :priority, :category,
		:is_read, :is_starred, :received_at, :updated_at)
	ON CONFLICT(account_id, provider_id) DO UPDATE SET
		thread_id   = excluded.thread_id,
		from_email  = excluded.from_email,
		from_name   = excluded.from_name,
		to_email    = excluded.to_email,
		subject     = excluded.subject,
		body_text   = excluded.body_text,
		body_html   = excluded.body_html,
		snippet     = excluded.snippet,
		labels      = excluded.labels,
		priority    = excluded.priority,
		category    = excluded.category,
		is_read     = excluded.is_read,
		is_starred  = excluded.is_starred,
		received_at = excluded.received_at,
		updated_at  = excluded.updated_at`

// UpsertMessages writes msgs for accountID in one transaction. A row that
// already exists for the same provider ID is replaced in full.
func (s *DB) UpsertMessages(ctx context.Context, accountID string, msgs []domain.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, upsertMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare message upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for i := range msgs {
		row, err := toMessageRow(accountID, &msgs[i], now)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return 0, fmt.Errorf("failed to upsert message %s: %w", msgs[i].ProviderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit message upsert: %w", err)
	}
	return len(msgs), nil
}

// GetMessage retrieves a single stored message.
func (s *DB) GetMessage(ctx context.Context, accountID, providerID string) (*domain.Message, error) {
	var r messageRow
	err := s.db.GetContext(ctx, &r,
		`SELECT `+messageColumns+` FROM messages WHERE account_id = ? AND provider_id = ?`,
		accountID, providerID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", providerID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", providerID, err)
	}
	return r.toDomain()
}

// ListMessages returns an account's messages, newest first, optionally
// filtered by category.
func (s *DB) ListMessages(ctx context.Context, opts store.ListMessageOptions) ([]domain.Message, error) {
	conditions := []string{"account_id = ?"}
	args := []any{opts.AccountID}
	if opts.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, opts.Category)
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY received_at DESC, provider_id`
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		m, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, nil
}

// CountMessages returns how many messages are stored for an account.
func (s *DB) CountMessages(ctx context.Context, accountID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages WHERE account_id = ?`, accountID); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func toMessageRow(accountID string, m *domain.Message, now time.Time) (messageRow, error) {
	labels := m.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return messageRow{}, fmt.Errorf("failed to marshal labels: %w", err)
	}
	return messageRow{
		AccountID:  accountID,
		ProviderID: m.ProviderID,
		ThreadID:   m.ThreadID,
		FromEmail:  m.FromEmail,
		FromName:   m.FromDisplayName,
		ToEmail:    m.ToEmail,
		Subject:    m.Subject,
		BodyText:   m.BodyText,
		BodyHTML:   m.BodyHTML,
		Snippet:    m.Snippet,
		Labels:     string(labelsJSON),
		Priority:   m.Priority,
		Category:   m.Category,
		IsRead:     m.IsRead,
		IsStarred:  m.IsStarred,
		ReceivedAt: m.ReceivedAt.UTC(),
		UpdatedAt:  now,
	}, nil
}

func (r messageRow) toDomain() (*domain.Message, error) {
	var labels []string
	if err := json.Unmarshal([]byte(r.Labels), &labels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}
	return &domain.Message{
		AccountID:       r.AccountID,
		ProviderID:      r.ProviderID,
		ThreadID:        r.ThreadID,
		FromEmail:       r.FromEmail,
		FromDisplayName: r.FromName,
		ToEmail:         r.ToEmail,
		Subject:         r.Subject,
		BodyText:        r.BodyText,
		BodyHTML:        r.BodyHTML,
		Snippet:         r.Snippet,
		Labels:          labels,
		Priority:        r.Priority,
		Category:        r.Category,
		IsRead:          r.IsRead,
		IsStarred:       r.IsStarred,
		ReceivedAt:      r.ReceivedAt.UTC(),
	}, nil
}
