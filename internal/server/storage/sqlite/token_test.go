package sqlite

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/taskkeeper/internal/server/refresh"
)

func setupTokenStore(t *testing.T) (*TokenStore, *time.Time) {
	t.Helper()
	s, cleanup := setupTestStorage(t)
	t.Cleanup(cleanup)

	// refresh_tokens.user_id ссылается на users
	for _, id := range []int64{1, 2, 3, 9, 42} {
		_, err := s.DB().Exec(
			`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, 'hash', CURRENT_TIMESTAMP)`,
			id, fmt.Sprintf("user-%d", id),
		)
		require.NoError(t, err)
	}

	now := time.Unix(1_700_000_000, 0)
	tokens := s.RefreshTokens()
	tokens.now = func() time.Time { return now }
	return tokens, &now
}

func TestTokenStore_PutGetConsume(t *testing.T) {
	ctx := context.Background()
	tokens, _ := setupTokenStore(t)

	require.NoError(t, tokens.Put(ctx, "refresh-1", 42, time.Hour))

	owner, err := tokens.Get(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), owner)

	owner, err = tokens.Consume(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), owner)

	_, err = tokens.Consume(ctx, "refresh-1")
	assert.ErrorIs(t, err, refresh.ErrNotFound)
	_, err = tokens.Get(ctx, "refresh-1")
	assert.ErrorIs(t, err, refresh.ErrNotFound)
}

func TestTokenStore_StoresHashOnly(t *testing.T) {
	ctx := context.Background()
	tokens, _ := setupTokenStore(t)

	require.NoError(t, tokens.Put(ctx, "raw-token", 1, time.Hour))

	var stored string
	require.NoError(t, tokens.db.QueryRow(`SELECT token_hash FROM refresh_tokens`).Scan(&stored))
	assert.Equal(t, refresh.HashToken("raw-token"), stored)
}

func TestTokenStore_Expiry(t *testing.T) {
	ctx := context.Background()
	tokens, now := setupTokenStore(t)

	require.NoError(t, tokens.Put(ctx, "a", 1, time.Minute))
	require.NoError(t, tokens.Put(ctx, "b", 2, time.Minute))
	require.NoError(t, tokens.Put(ctx, "c", 3, time.Hour))

	*now = now.Add(2 * time.Minute)

	_, err := tokens.Get(ctx, "a")
	assert.ErrorIs(t, err, refresh.ErrNotFound)
	_, err = tokens.Consume(ctx, "b")
	assert.ErrorIs(t, err, refresh.ErrNotFound)

	removed, err := tokens.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed, "b уже удален через Consume")

	owner, err := tokens.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(3), owner)
}

func TestTokenStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	tokens, _ := setupTokenStore(t)

	require.NoError(t, tokens.Put(ctx, "a", 1, time.Hour))
	require.NoError(t, tokens.Delete(ctx, "a"))
	require.NoError(t, tokens.Delete(ctx, "a"))

	_, err := tokens.Get(ctx, "a")
	assert.ErrorIs(t, err, refresh.ErrNotFound)
}

func TestTokenStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	tokens, _ := setupTokenStore(t)
	require.NoError(t, tokens.Put(ctx, "shared", 9, time.Hour))

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tokens.Consume(ctx, "shared"); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}

func TestTokenStore_UserForeignKey(t *testing.T) {
	ctx := context.Background()
	tokens, _ := setupTokenStore(t)

	// токен для несуществующего пользователя не сохраняется
	assert.Error(t, tokens.Put(ctx, "orphan", 1000, time.Hour))

	require.NoError(t, tokens.Put(ctx, "owned", 42, time.Hour))
	require.NoError(t, tokens.Put(ctx, "other", 9, time.Hour))

	// удаление строки пользователя в обход DeleteUser каскадно удаляет токены
	_, err := tokens.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, 42)
	require.NoError(t, err)

	_, err = tokens.Get(ctx, "owned")
	assert.ErrorIs(t, err, refresh.ErrNotFound)

	owner, err := tokens.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(9), owner)
}
