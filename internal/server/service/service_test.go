package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/taskkeeper/internal/crypto"
	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/jwt"
	"github.com/iudanet/taskkeeper/internal/server/refresh"
	"github.com/iudanet/taskkeeper/internal/server/storage/sqlite"
)

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// testClock - управляемые часы, общие для codec и хранилища токенов.
type testClock struct {
	now time.Time
	mu  sync.Mutex
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	auth  *AuthService
	tasks *TaskService
	db    *sqlite.Storage
	store *refresh.MemoryStore
	clock *testClock
	codec *jwt.Codec
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := newTestClock()
	codec, err := jwt.NewCodec([]byte("test-secret"), jwt.WithClock(clock.Now))
	require.NoError(t, err)

	store := refresh.NewMemoryStore(refresh.WithMemoryClock(clock.Now))
	logger := setupTestLogger()

	auth := NewAuthService(logger, db, store, codec, crypto.NewPasswordHasher(4), AuthConfig{
		AccessTokenTTL:   testAccessTTL,
		RefreshTokenTTL:  testRefreshTTL,
		OperationTimeout: 5 * time.Second,
	})

	return &testEnv{
		auth:  auth,
		tasks: NewTaskService(logger, db, 5*time.Second),
		db:    db,
		store: store,
		clock: clock,
		codec: codec,
	}
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) (models.Identity, models.TokenPair) {
	t.Helper()
	ctx := context.Background()

	ident, err := e.auth.Register(ctx, username, "password123")
	require.NoError(t, err)

	pair, err := e.auth.Login(ctx, username, "password123")
	require.NoError(t, err)

	return ident, pair
}

// failingRefreshStore отказывает на каждой операции.
type failingRefreshStore struct{}

var errStoreDown = errors.New("store down")

func (failingRefreshStore) Put(context.Context, string, int64, time.Duration) error {
	return errStoreDown
}
func (failingRefreshStore) Get(context.Context, string) (int64, error) { return 0, errStoreDown }
func (failingRefreshStore) Delete(context.Context, string) error { return errStoreDown }
func (failingRefreshStore) Consume(context.Context, string) (int64, error) { return 0, errStoreDown }
