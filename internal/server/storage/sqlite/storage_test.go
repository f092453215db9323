package sqlite

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/taskkeeper/internal/models"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

func createTestUser(t *testing.T, ctx context.Context, s *Storage, username string) *models.User {
	t.Helper()
	user, err := s.CreateUser(ctx, username, "hash-"+username)
	require.NoError(t, err)
	return user
}

func createTestTask(t *testing.T, ctx context.Context, s *Storage, userID int64, title string) *models.Task {
	t.Helper()
	task := &models.Task{Title: title, UserID: userID}
	require.NoError(t, s.CreateTask(ctx, task))
	return task
}

func TestNew_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "taskkeeper.db")

	s, err := New(ctx, path)
	require.NoError(t, err)
	user := createTestUser(t, ctx, s, "alice")
	require.NoError(t, s.Close())

	// Повторное открытие: миграции идемпотентны, данные сохранены.
	s, err = New(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestStorage_Ping(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	require.NoError(t, s.Ping(context.Background()))

	cleanup()
	assert.Error(t, s.Ping(context.Background()))
}

func TestStorage_MigrationsApplied(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	for _, table := range []string{"users", "tasks", "refresh_tokens", "goose_db_version"} {
		t.Run(table, func(t *testing.T) {
			var name string
			err := s.DB().QueryRow(
				fmt.Sprintf(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = '%s'`, table),
			).Scan(&name)
			require.NoError(t, err)
			assert.Equal(t, table, name)
		})
	}
}

func TestStorage_MigrationsKeepStdLogSilent(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	dir := t.TempDir()
	s, err := New(context.Background(), filepath.Join(dir, "quiet.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// повторный запуск: миграции уже применены
	s2, err := New(context.Background(), filepath.Join(dir, "quiet.db"))
	require.NoError(t, err)
	defer s2.Close()

	assert.Empty(t, buf.String())
}
