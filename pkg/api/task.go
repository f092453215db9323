package api

import "time"

// CreateTaskRequest is the body of POST /api/v1/tasks.
type CreateTaskRequest struct {
	Status      *string `json:"status,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
}

// UpdateTaskRequest is the body of PUT /api/v1/tasks/{id}.
// Omitted fields keep their current value.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// TaskResponse describes a task.
type TaskResponse struct {
	CreatedAt   time.Time `json:"created_at"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Database string `json:"database,omitempty"`
}
