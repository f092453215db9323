// Package refresh tracks which refresh tokens are still redeemable.
//
// A token is redeemable while it is present in the store. Consume removes it
// atomically, so a token can be exchanged at most once.
package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned when a token was never stored, was already
// consumed or deleted, or has expired.
var ErrNotFound = errors.New("refresh token not found")

// Store maps refresh tokens to the id of the user that owns them.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put records token as redeemable by userID for ttl.
	Put(ctx context.Context, token string, userID int64, ttl time.Duration) error

	// Get returns the owner of token without consuming it.
	Get(ctx context.Context, token string) (int64, error)

	// Delete removes token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error

	// Consume atomically returns the owner of token and removes it.
	// Among concurrent callers with the same token at most one succeeds.
	Consume(ctx context.Context, token string) (int64, error)
}

// HashToken returns the hex SHA-256 of token. Stores key entries by this
// value so that raw tokens are never persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
