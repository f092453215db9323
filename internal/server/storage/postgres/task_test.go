package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/storage"
)

var taskCols = []string{"id", "title", "description", "status", "user_id", "created_at"}

func ptr[T any](v T) *T { return &v }

func TestCreateTask(t *testing.T) {
	s, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+tasks\s*\(title,\s*description,\s*status,\s*user_id\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at`).
		WithArgs("Write report", "", "in_progress", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), fixedNow))

	task := &models.Task{Title: "Write report", UserID: 5}
	require.NoError(t, s.CreateTask(context.Background(), task))
	assert.Equal(t, int64(11), task.ID)
	assert.Equal(t, models.StatusInProgress, task.Status)
	assert.Equal(t, fixedNow, task.CreatedAt)
}

func TestCreateTask_DBError(t *testing.T) {
	s, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+tasks`).WillReturnError(errors.New("fk violation"))

	err := s.CreateTask(context.Background(), &models.Task{Title: "x", UserID: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestGetTask(t *testing.T) {
	s, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+id,\s*title,\s*description,\s*status,\s*user_id,\s*created_at\s+FROM\s+tasks\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2`
	mock.ExpectQuery(q).WithArgs(int64(1), int64(5)).
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(int64(1), "t", "d", "completed", int64(5), fixedNow))
	mock.ExpectQuery(q).WithArgs(int64(1), int64(6)).WillReturnError(sql.ErrNoRows)

	task, err := s.GetTask(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Equal(t, "d", task.Description)

	_, err = s.GetTask(context.Background(), 1, 6)
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)
}

func TestListTasks(t *testing.T) {
	q := `(?s)SELECT\s+id,.*FROM\s+tasks\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+\(\$2::text\s+IS\s+NULL\s+OR\s+status\s*=\s*\$2\)\s+ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC`

	t.Run("without filter", func(t *testing.T) {
		s, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs(int64(5), nil).
			WillReturnRows(sqlmock.NewRows(taskCols).
				AddRow(int64(2), "newer", "", "in_progress", int64(5), fixedNow).
				AddRow(int64(1), "older", "", "on_hold", int64(5), fixedNow))

		tasks, err := s.ListTasks(context.Background(), 5, nil)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, "newer", tasks[0].Title)
		assert.Equal(t, models.StatusOnHold, tasks[1].Status)
	})

	t.Run("with filter and no rows", func(t *testing.T) {
		s, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs(int64(5), "cancelled").
			WillReturnRows(sqlmock.NewRows(taskCols))

		tasks, err := s.ListTasks(context.Background(), 5, ptr(models.StatusCancelled))
		require.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
	})

	t.Run("row error", func(t *testing.T) {
		s, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs(int64(5), nil).
			WillReturnRows(sqlmock.NewRows(taskCols).
				AddRow(int64(1), "t", "", "in_progress", int64(5), fixedNow).
				RowError(0, errors.New("broken row")))

		_, err := s.ListTasks(context.Background(), 5, nil)
		assert.Error(t, err)
	})
}

func TestUpdateTask(t *testing.T) {
	q := `(?s)UPDATE\s+tasks\s+SET\s+title\s*=\s*COALESCE\(\$1,\s*title\),\s*description\s*=\s*COALESCE\(\$2,\s*description\),\s*status\s*=\s*COALESCE\(\$3,\s*status\)\s+WHERE\s+id\s*=\s*\$4\s+AND\s+user_id\s*=\s*\$5\s+RETURNING`

	t.Run("partial", func(t *testing.T) {
		s, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs(nil, nil, "completed", int64(1), int64(5)).
			WillReturnRows(sqlmock.NewRows(taskCols).AddRow(int64(1), "t", "d", "completed", int64(5), fixedNow))

		task, err := s.UpdateTask(context.Background(), 1, 5, models.TaskUpdate{Status: ptr(models.StatusCompleted)})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, task.Status)
		assert.Equal(t, "t", task.Title)
	})

	t.Run("not owned", func(t *testing.T) {
		s, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs("new", "", nil, int64(1), int64(6)).WillReturnError(sql.ErrNoRows)

		_, err := s.UpdateTask(context.Background(), 1, 6, models.TaskUpdate{Title: ptr("new"), Description: ptr("")})
		assert.ErrorIs(t, err, storage.ErrTaskNotFound)
	})
}

func TestDeleteTask(t *testing.T) {
	q := `DELETE\s+FROM\s+tasks\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2`

	s, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(q).WithArgs(int64(1), int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(1), int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.DeleteTask(context.Background(), 1, 5))
	assert.ErrorIs(t, s.DeleteTask(context.Background(), 1, 5), storage.ErrTaskNotFound)
}
