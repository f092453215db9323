package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/storage"
)

func ptr[T any](v T) *T { return &v }

func TestTaskStorage_CreateTask(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	user := createTestUser(t, ctx, s, "alice")

	tests := []struct {
		name       string
		task       *models.Task
		wantStatus models.TaskStatus
	}{
		{
			name:       "default status",
			task:       &models.Task{Title: "Write report", UserID: user.ID},
			wantStatus: models.StatusInProgress,
		},
		{
			name: "explicit status and description",
			task: &models.Task{
				Title:       "Plan trip",
				Description: "book flights",
				Status:      models.StatusNotStarted,
				UserID:      user.ID,
			},
			wantStatus: models.StatusNotStarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.CreateTask(ctx, tt.task))
			assert.Positive(t, tt.task.ID)
			assert.False(t, tt.task.CreatedAt.IsZero())

			got, err := s.GetTask(ctx, tt.task.ID, user.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.task.Title, got.Title)
			assert.Equal(t, tt.task.Description, got.Description)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, user.ID, got.UserID)
		})
	}
}

func TestTaskStorage_CreateTask_UnknownUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	err := s.CreateTask(ctx, &models.Task{Title: "orphan", UserID: 12345})
	assert.Error(t, err, "foreign key должен отклонить задачу без владельца")
}

func TestTaskStorage_GetTask_Ownership(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	alice := createTestUser(t, ctx, s, "alice")
	bob := createTestUser(t, ctx, s, "bob")
	task := createTestTask(t, ctx, s, alice.ID, "private")

	_, err := s.GetTask(ctx, task.ID, bob.ID)
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)

	_, err = s.GetTask(ctx, task.ID+1000, alice.ID)
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)
}

func TestTaskStorage_ListTasks(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	alice := createTestUser(t, ctx, s, "alice")
	bob := createTestUser(t, ctx, s, "bob")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	s.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	first := createTestTask(t, ctx, s, alice.ID, "first")
	second := &models.Task{Title: "second", Status: models.StatusCompleted, UserID: alice.ID}
	require.NoError(t, s.CreateTask(ctx, second))
	third := createTestTask(t, ctx, s, alice.ID, "third")
	createTestTask(t, ctx, s, bob.ID, "bob's")

	t.Run("all statuses newest first", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, alice.ID, nil)
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, []int64{third.ID, second.ID, first.ID}, []int64{tasks[0].ID, tasks[1].ID, tasks[2].ID})
	})

	t.Run("status filter", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, alice.ID, ptr(models.StatusCompleted))
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, second.ID, tasks[0].ID)
	})

	t.Run("filter without matches", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, alice.ID, ptr(models.StatusCancelled))
		require.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
	})

	t.Run("other user sees only own tasks", func(t *testing.T) {
		tasks, err := s.ListTasks(ctx, bob.ID, nil)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "bob's", tasks[0].Title)
	})
}

func TestTaskStorage_UpdateTask(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	alice := createTestUser(t, ctx, s, "alice")
	bob := createTestUser(t, ctx, s, "bob")
	task := &models.Task{Title: "original", Description: "desc", UserID: alice.ID}
	require.NoError(t, s.CreateTask(ctx, task))

	t.Run("partial update keeps other fields", func(t *testing.T) {
		got, err := s.UpdateTask(ctx, task.ID, alice.ID, models.TaskUpdate{Status: ptr(models.StatusOnHold)})
		require.NoError(t, err)
		assert.Equal(t, models.StatusOnHold, got.Status)
		assert.Equal(t, "original", got.Title)
		assert.Equal(t, "desc", got.Description)
	})

	t.Run("clear description", func(t *testing.T) {
		got, err := s.UpdateTask(ctx, task.ID, alice.ID, models.TaskUpdate{
			Title:       ptr("renamed"),
			Description: ptr(""),
		})
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
		assert.Empty(t, got.Description)
		assert.Equal(t, models.StatusOnHold, got.Status)
	})

	t.Run("other user cannot update", func(t *testing.T) {
		_, err := s.UpdateTask(ctx, task.ID, bob.ID, models.TaskUpdate{Title: ptr("hijacked")})
		assert.ErrorIs(t, err, storage.ErrTaskNotFound)

		got, err := s.GetTask(ctx, task.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
	})

	t.Run("missing task", func(t *testing.T) {
		_, err := s.UpdateTask(ctx, task.ID+1000, alice.ID, models.TaskUpdate{Title: ptr("x")})
		assert.ErrorIs(t, err, storage.ErrTaskNotFound)
	})
}

func TestTaskStorage_DeleteTask(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	alice := createTestUser(t, ctx, s, "alice")
	bob := createTestUser(t, ctx, s, "bob")
	task := createTestTask(t, ctx, s, alice.ID, "to delete")

	err := s.DeleteTask(ctx, task.ID, bob.ID)
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)

	require.NoError(t, s.DeleteTask(ctx, task.ID, alice.ID))

	_, err = s.GetTask(ctx, task.ID, alice.ID)
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)

	err = s.DeleteTask(ctx, task.ID, alice.ID)
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)
}
