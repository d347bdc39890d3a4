// Package handler is the HTTP layer: it parses requests, calls services,
// and translates domain errors into status codes. No business rules live
// here.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/martinbavio/photalabs/internal/apperror"
)

// ErrorResponse is the standard error shape returned by every endpoint:
// a machine-readable type plus a human-readable message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends a JSON response. Headers and status must go out before
// the body; once Encode writes, header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status code.
//
// errors.Is walks the wrapped chain, so services can annotate errors with
// fmt.Errorf("...: %w", ...) without breaking the mapping. Errors outside
// the apperror taxonomy become an opaque 500 — internal detail never
// reaches the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthenticated):
			status = http.StatusUnauthorized
			errorType = "unauthenticated"
		case errors.Is(err, apperror.ErrInsufficientCredits):
			status = http.StatusPaymentRequired
			errorType = "insufficient_credits"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrGenerationFailed):
			status = http.StatusBadGateway
			errorType = "generation_failed"
		case errors.Is(err, apperror.ErrProviderNotConfigured):
			status = http.StatusServiceUnavailable
			errorType = "provider_not_configured"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
