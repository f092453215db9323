package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/service"
	"github.com/iudanet/taskkeeper/pkg/api"
)

// TaskService is the part of service.TaskService the handlers use.
type TaskService interface {
	Create(ctx context.Context, caller models.Identity, in service.NewTask) (*models.Task, error)
	Get(ctx context.Context, caller models.Identity, id int64) (*models.Task, error)
	List(ctx context.Context, caller models.Identity, status *models.TaskStatus) ([]*models.Task, error)
	Update(ctx context.Context, caller models.Identity, id int64, upd models.TaskUpdate) (*models.Task, error)
	Delete(ctx context.Context, caller models.Identity, id int64) error
}

// TaskHandler serves /api/v1/tasks. Every route expects an identity in the
// request context.
type TaskHandler struct {
	logger *slog.Logger
	tasks  TaskService
}

// NewTaskHandler создает handler задач
func NewTaskHandler(logger *slog.Logger, tasks TaskService) *TaskHandler {
	return &TaskHandler{logger: logger, tasks: tasks}
}

// Create handles POST /api/v1/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req api.CreateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode task request", slog.Any("error", err))
		WriteError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	in := service.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      statusPtr(req.Status),
	}

	task, err := h.tasks.Create(r.Context(), ident, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, h.logger, taskResponse(task), http.StatusCreated)
}

// List handles GET /api/v1/tasks?status=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}

	var status *models.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.TaskStatus(raw)
		status = &s
	}

	tasks, err := h.tasks.List(r.Context(), ident, status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := make([]api.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, taskResponse(t))
	}

	WriteJSON(w, h.logger, resp, http.StatusOK)
}

// Get handles GET /api/v1/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), ident, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, h.logger, taskResponse(task), http.StatusOK)
}

// Update handles PUT /api/v1/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	var req api.UpdateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode task update", slog.Any("error", err))
		WriteError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	upd := models.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      statusPtr(req.Status),
	}

	task, err := h.tasks.Update(r.Context(), ident, id, upd)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, h.logger, taskResponse(task), http.StatusOK)
}

// Delete handles DELETE /api/v1/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), ident, id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteError(w, h.logger, "not authenticated", http.StatusUnauthorized)
	}
	return ident, ok
}

func (h *TaskHandler) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, h.logger, "invalid task id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func statusPtr(raw *string) *models.TaskStatus {
	if raw == nil {
		return nil
	}
	s := models.TaskStatus(*raw)
	return &s
}

func taskResponse(t *models.Task) api.TaskResponse {
	return api.TaskResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
	}
}
