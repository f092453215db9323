// Package api implements the HTTP client for the taskkeeper server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/taskkeeper/internal/client/storage"
	"github.com/iudanet/taskkeeper/pkg/api"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrNotLoggedIn возвращается, если локальной сессии нет
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrUnauthorized matches any 401 answer from the server
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a non-2xx answer from the server.
type Error struct {
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Is позволяет писать errors.Is(err, ErrUnauthorized)
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	sessions   storage.SessionStore
	now        func() time.Time
	baseURL    string
	// refreshMu сериализует обновление токенов внутри процесса:
	// refresh token одноразовый, второй параллельный refresh получил бы 401.
	refreshMu sync.Mutex
}

// NewClient создает новый API клиент
func NewClient(baseURL string, sessions storage.SessionStore) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: sessions,
		now:      time.Now,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Authorization переносим только в пределах того же хоста
				if len(via) > 0 && req.URL.Host == via[0].URL.Host && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, username, password string) (*api.UserResponse, error) {
	var resp api.UserResponse
	req := api.RegisterRequest{Username: username, Password: password}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию и сохраняет сессию локально
func (c *Client) Login(ctx context.Context, username, password string) (*storage.Session, error) {
	var resp api.TokenResponse
	req := api.LoginRequest{Username: username, Password: password}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	session := &storage.Session{
		ServerURL: c.baseURL,
		Username:  username,
	}
	c.applyTokens(session, &resp)

	// user id узнаём сразу, чтобы whoami работал без сети
	var me api.UserResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/auth/me", session.AccessToken, nil, &me); err == nil {
		session.UserID = me.ID
	}

	if err := c.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// Logout отзывает refresh token на сервере и удаляет локальную сессию.
// Локальная сессия удаляется даже если сервер недоступен.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.session(ctx); err != nil {
		return err
	}

	// refresh token берётся из сессии после возможного обновления пары,
	// иначе сервер получил бы уже использованный токен.
	logoutBody := func(s *storage.Session) any {
		return api.RefreshRequest{RefreshToken: s.RefreshToken}
	}
	remoteErr := c.doAuthedWith(ctx, http.MethodPost, "/api/v1/auth/logout", logoutBody, nil)
	// протухшая сессия на сервере для logout не ошибка
	if errors.Is(remoteErr, ErrUnauthorized) {
		remoteErr = nil
	}

	if err := c.sessions.DeleteSession(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if remoteErr != nil {
		return fmt.Errorf("logout request failed: %w", remoteErr)
	}
	return nil
}

// Me returns the logged-in user as the server sees it
func (c *Client) Me(ctx context.Context) (*api.UserResponse, error) {
	var resp api.UserResponse
	if err := c.doAuthed(ctx, http.MethodGet, "/api/v1/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateTask creates a task
func (c *Client) CreateTask(ctx context.Context, req api.CreateTaskRequest) (*api.TaskResponse, error) {
	var resp api.TaskResponse
	if err := c.doAuthed(ctx, http.MethodPost, "/api/v1/tasks", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTasks returns the caller's tasks, optionally filtered by status
func (c *Client) ListTasks(ctx context.Context, status string) ([]api.TaskResponse, error) {
	path := "/api/v1/tasks"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}

	var resp []api.TaskResponse
	if err := c.doAuthed(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetTask returns a single task
func (c *Client) GetTask(ctx context.Context, id int64) (*api.TaskResponse, error) {
	var resp api.TaskResponse
	if err := c.doAuthed(ctx, http.MethodGet, taskPath(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateTask applies a partial update
func (c *Client) UpdateTask(ctx context.Context, id int64, req api.UpdateTaskRequest) (*api.TaskResponse, error) {
	var resp api.TaskResponse
	if err := c.doAuthed(ctx, http.MethodPut, taskPath(id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteTask deletes a task
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.doAuthed(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id int64) string {
	return "/api/v1/tasks/" + strconv.FormatInt(id, 10)
}

func (c *Client) session(ctx context.Context) (*storage.Session, error) {
	session, err := c.sessions.GetSession(ctx)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// doAuthed выполняет запрос с access token.
// Если токен истёк (по локальным часам или по ответу 401), один раз
// обновляет пару токенов и повторяет запрос.
func (c *Client) doAuthed(ctx context.Context, method, path string, body, result any) error {
	return c.doAuthedWith(ctx, method, path, func(*storage.Session) any { return body }, result)
}

// doAuthedWith строит тело запроса из актуальной сессии перед каждой попыткой.
func (c *Client) doAuthedWith(ctx context.Context, method, path string, bodyFor func(*storage.Session) any, result any) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	if session.AccessExpired(c.now()) {
		if session, err = c.refresh(ctx, session.AccessToken); err != nil {
			return err
		}
	}

	err = c.doRequest(ctx, method, path, session.AccessToken, bodyFor(session), result)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	session, err = c.refresh(ctx, session.AccessToken)
	if err != nil {
		return err
	}
	return c.doRequest(ctx, method, path, session.AccessToken, bodyFor(session), result)
}

// refresh меняет пару токенов. stale это access token, с которым запрос
// не прошёл: если в хранилище уже другой, его обновил кто-то раньше нас.
func (c *Client) refresh(ctx context.Context, stale string) (*storage.Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	session, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	if session.AccessToken != stale && !session.AccessExpired(c.now()) {
		return session, nil
	}

	var resp api.TokenResponse
	req := api.RefreshRequest{RefreshToken: session.RefreshToken}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/refresh", "", req, &resp); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			// сессия отозвана или истекла, локальная копия бесполезна
			_ = c.sessions.DeleteSession(ctx)
			return nil, fmt.Errorf("session expired, please log in again: %w", err)
		}
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}

	c.applyTokens(session, &resp)
	if err := c.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

func (c *Client) applyTokens(session *storage.Session, resp *api.TokenResponse) {
	session.AccessToken = resp.AccessToken
	session.RefreshToken = resp.RefreshToken
	session.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path, token string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			apiErr.Message = errResp.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
