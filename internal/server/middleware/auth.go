package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/handlers"
	"github.com/iudanet/taskkeeper/internal/server/service"
)

// Authenticator resolves an access token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.Identity, error)
}

// AuthMiddleware создает middleware для проверки access token.
// При успехе identity кладется в контекст (handlers.IdentityFromContext).
func AuthMiddleware(logger *slog.Logger, auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				logger.WarnContext(ctx, "missing or malformed Authorization header",
					slog.String("path", sanitizePath(r.URL.Path)))
				unauthorized(w, logger)
				return
			}

			ident, err := auth.Authenticate(ctx, token)
			if err != nil {
				if errors.Is(err, service.ErrUnauthorized) {
					logger.WarnContext(ctx, "invalid access token",
						slog.String("path", sanitizePath(r.URL.Path)))
					unauthorized(w, logger)
					return
				}
				logger.ErrorContext(ctx, "authentication failed", slog.Any("error", err))
				handlers.WriteError(w, logger, "internal server error", http.StatusInternalServerError)
				return
			}

			logger.DebugContext(ctx, "user authenticated",
				slog.Int64("user_id", ident.ID),
				slog.String("username", ident.Username))

			next.ServeHTTP(w, r.WithContext(handlers.WithIdentity(ctx, ident)))
		})
	}
}

// bearerToken ожидает формат "Bearer <token>", схема без учета регистра.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, logger *slog.Logger) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	handlers.WriteError(w, logger, "could not validate credentials", http.StatusUnauthorized)
}
