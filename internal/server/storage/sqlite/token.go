package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/taskkeeper/internal/server/refresh"
)

var (
	_ refresh.Store  = (*TokenStore)(nil)
	_ refresh.Purger = (*TokenStore)(nil)
)

// TokenStore keeps refresh tokens in the refresh_tokens table.
// Rows are keyed by refresh.HashToken; expires_at is unix nanoseconds.
type TokenStore struct {
	db  *sql.DB
	now func() time.Time
}

// RefreshTokens returns a refresh.Store sharing this database.
func (s *Storage) RefreshTokens() *TokenStore {
	return &TokenStore{db: s.db, now: s.now}
}

// Put implements refresh.Store.
func (t *TokenStore) Put(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	query := `
		INSERT OR REPLACE INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES (?, ?, ?)
	`

	expiresAt := t.now().Add(ttl).UnixNano()
	if _, err := t.db.ExecContext(ctx, query, refresh.HashToken(token), userID, expiresAt); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	return nil
}

// Get implements refresh.Store.
func (t *TokenStore) Get(ctx context.Context, token string) (int64, error) {
	query := `
		SELECT user_id
		FROM refresh_tokens
		WHERE token_hash = ? AND expires_at > ?
	`

	var userID int64
	err := t.db.QueryRowContext(ctx, query, refresh.HashToken(token), t.now().UnixNano()).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, refresh.ErrNotFound
		}
		return 0, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return userID, nil
}

// Delete implements refresh.Store.
func (t *TokenStore) Delete(ctx context.Context, token string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = ?`, refresh.HashToken(token)); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// Consume implements refresh.Store. DELETE ... RETURNING is a single
// statement, so two callers cannot both receive the row.
func (t *TokenStore) Consume(ctx context.Context, token string) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE token_hash = ?
		RETURNING user_id, expires_at
	`

	var (
		userID    int64
		expiresAt int64
	)
	err := t.db.QueryRowContext(ctx, query, refresh.HashToken(token)).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, refresh.ErrNotFound
		}
		return 0, fmt.Errorf("failed to consume refresh token: %w", err)
	}

	if t.now().UnixNano() >= expiresAt {
		return 0, refresh.ErrNotFound
	}

	return userID, nil
}

// PurgeExpired implements refresh.Purger.
func (t *TokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := t.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, t.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
