package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/service"
	"github.com/iudanet/taskkeeper/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

var testIdentity = models.Identity{ID: 42, Username: "alice"}

// mockAuthService - ручной мок AuthService
type mockAuthService struct {
	register func(ctx context.Context, username, password string) (models.Identity, error)
	login    func(ctx context.Context, username, password string) (models.TokenPair, error)
	refresh  func(ctx context.Context, token string) (models.TokenPair, error)
	logout   func(ctx context.Context, caller models.Identity, token string) error
}

func (m *mockAuthService) Register(ctx context.Context, username, password string) (models.Identity, error) {
	return m.register(ctx, username, password)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (models.TokenPair, error) {
	return m.login(ctx, username, password)
}

func (m *mockAuthService) RefreshSession(ctx context.Context, token string) (models.TokenPair, error) {
	return m.refresh(ctx, token)
}

func (m *mockAuthService) Logout(ctx context.Context, caller models.Identity, token string) error {
	return m.logout(ctx, caller, token)
}

// mockTaskService - ручной мок TaskService
type mockTaskService struct {
	create func(ctx context.Context, caller models.Identity, in service.NewTask) (*models.Task, error)
	get    func(ctx context.Context, caller models.Identity, id int64) (*models.Task, error)
	list   func(ctx context.Context, caller models.Identity, status *models.TaskStatus) ([]*models.Task, error)
	update func(ctx context.Context, caller models.Identity, id int64, upd models.TaskUpdate) (*models.Task, error)
	delete func(ctx context.Context, caller models.Identity, id int64) error
}

func (m *mockTaskService) Create(ctx context.Context, caller models.Identity, in service.NewTask) (*models.Task, error) {
	return m.create(ctx, caller, in)
}

func (m *mockTaskService) Get(ctx context.Context, caller models.Identity, id int64) (*models.Task, error) {
	return m.get(ctx, caller, id)
}

func (m *mockTaskService) List(ctx context.Context, caller models.Identity, status *models.TaskStatus) ([]*models.Task, error) {
	return m.list(ctx, caller, status)
}

func (m *mockTaskService) Update(ctx context.Context, caller models.Identity, id int64, upd models.TaskUpdate) (*models.Task, error) {
	return m.update(ctx, caller, id, upd)
}

func (m *mockTaskService) Delete(ctx context.Context, caller models.Identity, id int64) error {
	return m.delete(ctx, caller, id)
}

func newJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withTestIdentity(r *http.Request) *http.Request {
	return r.WithContext(WithIdentity(r.Context(), testIdentity))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}
