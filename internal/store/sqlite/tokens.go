package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lu-zhengda/inboxsync/internal/store"
)

const tokenPrefix = "isk_"

// CreateAPIToken issues a new bearer token for accountID. Only its hash is
// stored; the plain token is returned once.
func (s *DB) CreateAPIToken(ctx context.Context, accountID string) (string, error) {
	token := tokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "") +
		strings.ReplaceAll(uuid.NewString(), "-", "")

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_tokens (token_hash, account_id, created_at) VALUES (?, ?, ?)`,
		hashToken(token), accountID, s.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create api token for %s: %w", accountID, err)
	}
	return token, nil
}

// ResolveAPIToken returns the account a bearer token was issued for.
func (s *DB) ResolveAPIToken(ctx context.Context, token string) (string, error) {
	var accountID string
	err := s.db.GetContext(ctx, &accountID,
		`SELECT account_id FROM api_tokens WHERE token_hash = ?`, hashToken(token))
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("api token: %w", store.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api token: %w", err)
	}
	return accountID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
