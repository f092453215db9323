package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/storage"
	"github.com/iudanet/taskkeeper/internal/validation"
)

// NewTask is the input for TaskService.Create.
type NewTask struct {
	Status      *models.TaskStatus
	Title       string
	Description string
}

// TaskService implements task CRUD scoped to the calling user.
type TaskService struct {
	logger  *slog.Logger
	tasks   storage.TaskStorage
	timeout time.Duration
}

// NewTaskService создает сервис задач.
func NewTaskService(logger *slog.Logger, tasks storage.TaskStorage, timeout time.Duration) *TaskService {
	return &TaskService{logger: logger, tasks: tasks, timeout: timeout}
}

// Create adds a task owned by caller.
func (s *TaskService) Create(ctx context.Context, caller models.Identity, in NewTask) (*models.Task, error) {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, invalid("title", err)
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, invalid("description", err)
	}

	status := models.DefaultTaskStatus
	if in.Status != nil {
		if err := validation.ValidateStatus(*in.Status); err != nil {
			return nil, invalid("status", err)
		}
		status = *in.Status
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	task := &models.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		UserID:      caller.ID,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, internal("create task", err)
	}

	s.logger.DebugContext(ctx, "task created", slog.Int64("task_id", task.ID), slog.Int64("user_id", caller.ID))
	return task, nil
}

// Get returns one of caller's tasks.
func (s *TaskService) Get(ctx context.Context, caller models.Identity, id int64) (*models.Task, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	task, err := s.tasks.GetTask(ctx, id, caller.ID)
	if err != nil {
		return nil, mapTaskErr("get task", err)
	}
	return task, nil
}

// List returns caller's tasks, optionally filtered by status.
func (s *TaskService) List(ctx context.Context, caller models.Identity, status *models.TaskStatus) ([]*models.Task, error) {
	if status != nil {
		if err := validation.ValidateStatus(*status); err != nil {
			return nil, invalid("status", err)
		}
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	tasks, err := s.tasks.ListTasks(ctx, caller.ID, status)
	if err != nil {
		return nil, internal("list tasks", err)
	}
	return tasks, nil
}

// Update applies a partial update to one of caller's tasks.
// An empty update returns the task unchanged.
func (s *TaskService) Update(ctx context.Context, caller models.Identity, id int64, upd models.TaskUpdate) (*models.Task, error) {
	if err := validation.ValidateTaskUpdate(upd); err != nil {
		return nil, invalid("task", err)
	}

	if upd.Empty() {
		return s.Get(ctx, caller, id)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	task, err := s.tasks.UpdateTask(ctx, id, caller.ID, upd)
	if err != nil {
		return nil, mapTaskErr("update task", err)
	}
	return task, nil
}

// Delete removes one of caller's tasks.
func (s *TaskService) Delete(ctx context.Context, caller models.Identity, id int64) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.tasks.DeleteTask(ctx, id, caller.ID); err != nil {
		return mapTaskErr("delete task", err)
	}

	s.logger.DebugContext(ctx, "task deleted", slog.Int64("task_id", id), slog.Int64("user_id", caller.ID))
	return nil
}

func mapTaskErr(op string, err error) error {
	if errors.Is(err, storage.ErrTaskNotFound) {
		return ErrNotFound
	}
	return internal(op, err)
}
