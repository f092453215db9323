package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/pkg/api"
)

// AuthService is the part of service.AuthService the handlers use.
type AuthService interface {
	Register(ctx context.Context, username, password string) (models.Identity, error)
	Login(ctx context.Context, username, password string) (models.TokenPair, error)
	RefreshSession(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Logout(ctx context.Context, caller models.Identity, refreshToken string) error
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger *slog.Logger
	auth   AuthService
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, auth AuthService) *AuthHandler {
	return &AuthHandler{
		logger: logger,
		auth:   auth,
	}
}

// Register обрабатывает POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		WriteError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	ident, err := h.auth.Register(ctx, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, h.logger, userResponse(ident), http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		WriteError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, h.logger, "username and password are required", http.StatusBadRequest)
		return
	}

	pair, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, h.logger, tokenResponse(pair), http.StatusOK)
}

// Refresh обрабатывает POST /api/v1/auth/refresh
// Старый refresh token погашается, выдается новая пара.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode refresh request", slog.Any("error", err))
		WriteError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.RefreshToken == "" {
		WriteError(w, h.logger, "refresh_token is required", http.StatusBadRequest)
		return
	}

	pair, err := h.auth.RefreshSession(ctx, req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, h.logger, tokenResponse(pair), http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident, ok := IdentityFromContext(ctx)
	if !ok {
		WriteError(w, h.logger, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req api.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode logout request", slog.Any("error", err))
		WriteError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.RefreshToken == "" {
		WriteError(w, h.logger, "refresh_token is required", http.StatusBadRequest)
		return
	}

	if err := h.auth.Logout(ctx, ident, req.RefreshToken); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me обрабатывает GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteError(w, h.logger, "not authenticated", http.StatusUnauthorized)
		return
	}

	WriteJSON(w, h.logger, userResponse(ident), http.StatusOK)
}

func userResponse(ident models.Identity) api.UserResponse {
	return api.UserResponse{ID: ident.ID, Username: ident.Username}
}

func tokenResponse(pair models.TokenPair) api.TokenResponse {
	return api.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	}
}
