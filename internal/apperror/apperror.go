// Package apperror defines the application's error taxonomy.
//
// Services return these typed errors; the HTTP layer maps them to status
// codes in handler/response.go. Sentinel errors classify the failure,
// AppError carries the human-readable message shown to the caller.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrValidation            = errors.New("validation error")
	ErrConflict              = errors.New("conflict")
	ErrForbidden             = errors.New("forbidden")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrInsufficientCredits   = errors.New("insufficient credits")
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrGenerationFailed      = errors.New("generation failed")
)

type AppError struct {
	Err     error  // sentinel classifying the error
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated returns the error raised by every operation that requires
// a resolved caller identity. The message matches what clients key on.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "Not authenticated",
	}
}

// InsufficientCredits is returned by the credit ledger when a reservation
// is attempted on an exhausted balance.
func InsufficientCredits() *AppError {
	return &AppError{
		Err:     ErrInsufficientCredits,
		Message: "No credits remaining",
	}
}

// ProviderNotConfigured indicates the API credentials for an external AI
// provider are absent. Checked before any billable call is made.
func ProviderNotConfigured(provider string) *AppError {
	return &AppError{
		Err:     ErrProviderNotConfigured,
		Message: fmt.Sprintf("%s provider is not configured", provider),
	}
}

// GenerationFailed wraps the provider's own error detail when an image
// backend returns no usable image data.
func GenerationFailed(detail string) *AppError {
	return &AppError{
		Err:     ErrGenerationFailed,
		Message: fmt.Sprintf("image generation failed: %s", detail),
	}
}
