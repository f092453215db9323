package models

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Допустимые статусы задачи.
const (
	StatusNotStarted TaskStatus = "not_started"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusOnHold     TaskStatus = "on_hold"
	StatusCancelled  TaskStatus = "cancelled"
)

// DefaultTaskStatus is assigned when a task is created without a status.
const DefaultTaskStatus = StatusInProgress

// TaskStatuses lists every valid status in display order.
var TaskStatuses = []TaskStatus{
	StatusNotStarted,
	StatusInProgress,
	StatusCompleted,
	StatusOnHold,
	StatusCancelled,
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseTaskStatus converts a raw string into a TaskStatus.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

// Task представляет задачу пользователя.
type Task struct {
	CreatedAt   time.Time  `json:"created_at"`  // время создания
	Title       string     `json:"title"`       // заголовок, 1..100 символов
	Description string     `json:"description"` // описание, до 255 символов
	Status      TaskStatus `json:"status"`      // текущий статус
	ID          int64      `json:"id"`          // первичный ключ
	UserID      int64      `json:"user_id"`     // владелец задачи
}

// TaskUpdate describes a partial update. Nil fields are left unchanged.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
}

// Empty reports whether the update changes nothing.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil
}
