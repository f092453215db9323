package postgres

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
type TokenStore struct {
	db  *sql.DB
	now func() time.Time
}

// RefreshTokens returns a refresh.Store sharing this pool.
func (s *Storage) RefreshTokens() *TokenStore {
	return &TokenStore{db: s.db, now: s.now}
}

// Put implements refresh.Store.
func (t *TokenStore) Put(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE
		SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at
	`
	if _, err := t.db.ExecContext(ctx, query, refresh.HashToken(token), userID, t.now().Add(ttl)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get implements refresh.Store.
func (t *TokenStore) Get(ctx context.Context, token string) (int64, error) {
	query := `
		SELECT user_id FROM refresh_tokens
		WHERE token_hash = $1 AND expires_at > $2
	`

	var userID int64
	if err := t.db.QueryRowContext(ctx, query, refresh.HashToken(token), t.now()).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, refresh.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return userID, nil
}

// Delete implements refresh.Store.
func (t *TokenStore) Delete(ctx context.Context, token string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, refresh.HashToken(token)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Consume implements refresh.Store. The row lock taken by DELETE makes a
// concurrent second DELETE see zero rows.
func (t *TokenStore) Consume(ctx context.Context, token string) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
		RETURNING user_id, expires_at
	`

	var (
		userID    int64
		expiresAt time.Time
	)
	if err := t.db.QueryRowContext(ctx, query, refresh.HashToken(token)).Scan(&userID, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, refresh.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	if !t.now().Before(expiresAt) {
		return 0, refresh.ErrNotFound
	}
	return userID, nil
}

// PurgeExpired implements refresh.Purger.
func (t *TokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := t.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, t.now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return rows, nil
}
