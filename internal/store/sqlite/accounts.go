package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/store"
)

type accountRow struct {
	ID        string       `db:"id"`
	Email     string       `db:"email"`
	Provider  string       `db:"provider"`
	CreatedAt sql.NullTime `db:"created_at"`
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{ID: r.ID, Email: r.Email, Provider: r.Provider, CreatedAt: r.CreatedAt.Time}
}

func (s *DB) CreateAccount(ctx context.Context, acct *domain.Account) error {
	if acct.Provider == "" {
		acct.Provider = "gmail"
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, provider, created_at) VALUES (?, ?, ?, ?)`,
		acct.ID, acct.Email, acct.Provider, acct.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *DB) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var r accountRow
	err := s.db.GetContext(ctx, &r,
		`SELECT id, email, provider, created_at FROM accounts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	a := r.toDomain()
	return &a, nil
}

func (s *DB) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, email, provider, created_at FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	accounts := make([]domain.Account, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, r.toDomain())
	}
	return accounts, nil
}

func (s *DB) DeleteAccount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account %s: %w", id, err)
	}
	return nil
}
