package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/storage"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var status string
	err := row.Scan(&task.ID, &task.Title, &task.Description, &status, &task.UserID, &task.CreatedAt)
	if err != nil {
		return nil, err
	}
	task.Status = models.TaskStatus(status)
	return task, nil
}

// CreateTask inserts task and fills in ID and CreatedAt.
func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (title, description, status, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	if task.Status == "" {
		task.Status = models.DefaultTaskStatus
	}

	err := s.db.QueryRowContext(ctx, query,
		task.Title, task.Description, string(task.Status), task.UserID,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// GetTask returns a task owned by userID.
func (s *Storage) GetTask(ctx context.Context, id, userID int64) (*models.Task, error) {
	query := `
		SELECT id, title, description, status, user_id, created_at FROM tasks
		WHERE id = $1 AND user_id = $2
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTaskNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return task, nil
}

// ListTasks returns the user's tasks, newest first.
func (s *Storage) ListTasks(ctx context.Context, userID int64, status *models.TaskStatus) ([]*models.Task, error) {
	query := `
		SELECT id, title, description, status, user_id, created_at FROM tasks
		WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, nullStatus(status))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tasks, nil
}

// UpdateTask applies the non-nil fields of upd in a single statement.
func (s *Storage) UpdateTask(ctx context.Context, id, userID int64, upd models.TaskUpdate) (*models.Task, error) {
	query := `
		UPDATE tasks
		SET title = COALESCE($1, title),
		    description = COALESCE($2, description),
		    status = COALESCE($3, status)
		WHERE id = $4 AND user_id = $5
		RETURNING id, title, description, status, user_id, created_at
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query,
		nullString(upd.Title), nullString(upd.Description), nullStatus(upd.Status), id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTaskNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return task, nil
}

// DeleteTask removes a task owned by userID.
func (s *Storage) DeleteTask(ctx context.Context, id, userID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows == 0 {
		return storage.ErrTaskNotFound
	}

	return nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullStatus(v *models.TaskStatus) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}
