package storage

import (
	"context"

	"github.com/iudanet/taskkeeper/internal/models"
)

// TaskStorage defines interface for task persistence.
// Every lookup is scoped by userID; a task owned by someone else is
// indistinguishable from a missing one.
type TaskStorage interface {
	// CreateTask inserts task and fills in ID and CreatedAt
	CreateTask(ctx context.Context, task *models.Task) error

	// GetTask returns ErrTaskNotFound if the task is absent or not owned by userID
	GetTask(ctx context.Context, id, userID int64) (*models.Task, error)

	// ListTasks returns the user's tasks, newest first.
	// A nil status returns tasks in every status
	ListTasks(ctx context.Context, userID int64, status *models.TaskStatus) ([]*models.Task, error)

	// UpdateTask applies the non-nil fields of upd and returns the updated task
	UpdateTask(ctx context.Context, id, userID int64, upd models.TaskUpdate) (*models.Task, error)

	// DeleteTask returns ErrTaskNotFound if the task is absent or not owned by userID
	DeleteTask(ctx context.Context, id, userID int64) error
}

// Storage is the full persistence surface used by the server.
type Storage interface {
	UserStorage
	TaskStorage
	Ping(ctx context.Context) error
	Close() error
}
