package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	WriteJSON(w, logger, status, map[string]string{"error": message})
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Invalid("body", "invalid request body")
	}
	return nil
}

// StatusFor maps a domain error to its HTTP status and client message.
// Unrecognised errors map to 500 with a generic message.
func StatusFor(err error) (int, string) {
	var stockErr *domain.StockError
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, stockErr.Error()
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.Is(err, domain.ErrCartEmpty):
		return http.StatusBadRequest, "Cart is empty"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, "Insufficient stock"
	case errors.Is(err, domain.ErrProductUnavailable):
		return http.StatusBadRequest, "Product is no longer available"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict, "already exists"
	case errors.Is(err, domain.ErrStatusTransition):
		return http.StatusConflict, "Order status cannot change from a cancelled or refunded order"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// Error writes err using StatusFor. Server errors are logged with msg and
// the supplied attributes; client errors are not.
func Error(w http.ResponseWriter, logger *slog.Logger, err error, msg string, args ...any) {
	status, message := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, append([]any{"error", err}, args...)...)
	}
	WriteError(w, logger, status, message)
}
