package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/taskkeeper/internal/server/service"
	"github.com/iudanet/taskkeeper/pkg/api"
)

// maxBodyBytes ограничивает размер тела JSON запроса.
const maxBodyBytes = 1 << 20

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// WriteError writes the standard {error, message} body.
func WriteError(w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	WriteJSON(w, logger, resp, statusCode)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeServiceError переводит ошибку сервиса в HTTP ответ.
// Текст внутренних ошибок клиенту не уходит.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		WriteError(w, logger, verr.Message, http.StatusBadRequest)
	case errors.Is(err, service.ErrConflict):
		WriteError(w, logger, service.ErrConflict.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		WriteError(w, logger, "could not validate credentials", http.StatusUnauthorized)
	case errors.Is(err, service.ErrNotFound):
		WriteError(w, logger, "task not found", http.StatusNotFound)
	default:
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.Any("error", err))
		WriteError(w, logger, "internal server error", http.StatusInternalServerError)
	}
}
