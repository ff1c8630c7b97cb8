// Package respond writes JSON responses and maps domain errors to HTTP
// status codes without leaking internal details.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"sourcesage/internal/domain/entity"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Detail  string `json:"detail,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

// Error writes a client-safe error body with the given status.
func Error(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, ErrorBody{Error: msg})
}

// StatusFor maps an error to its HTTP status.
//
//	validation failure    422
//	not found             404
//	configuration error   503
//	anything else         500
func StatusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidationFailed), errors.Is(err, entity.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// SafeError writes err with the status StatusFor picks. Validation
// messages are returned verbatim; everything else is logged with secrets
// masked and replaced by a generic message.
func SafeError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	code := StatusFor(err)

	var ve *entity.ValidationError
	switch {
	case errors.As(err, &ve):
		JSON(w, code, ErrorBody{Error: "validation failed", Detail: ve.Error()})
	case code == http.StatusServiceUnavailable:
		slog.Default().Error("service misconfigured", slog.String("error", SanitizeError(err)))
		Error(w, code, "service is not configured")
	case code == http.StatusNotFound:
		Error(w, code, "not found")
	default:
		slog.Default().Error("internal server error",
			slog.Int("code", code),
			slog.String("error", SanitizeError(err)))
		Error(w, code, "internal server error")
	}
}
