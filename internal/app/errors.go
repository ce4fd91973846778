package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/auth"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	ErrRateLimited      = domainError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many writes, slow down", nil)
	ErrDevLoginDisabled = domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
)

// mapError turns service errors into the HTTP error envelope. AppendFailed is
// checked before PermissionDenied: a store-side denial during an append is
// reported as a failed append.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var validationErr *inquiry.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validationErr.Error(), map[string]any{"field": validationErr.Field}
	}
	switch {
	case errors.Is(err, inquiry.ErrAppendFailed):
		return http.StatusBadGateway, "APPEND_FAILED", "Message could not be sent", nil
	case errors.Is(err, inquiry.ErrPermissionDenied):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	case errors.Is(err, inquiry.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Thread not found", nil
	case errors.Is(err, inquiry.ErrThreadResolved):
		return http.StatusConflict, "THREAD_RESOLVED", "Thread is resolved", nil
	case errors.Is(err, inquiry.ErrReopenDisabled):
		return http.StatusConflict, "REOPEN_DISABLED", "Reopening resolved threads is disabled", nil
	case errors.Is(err, inquiry.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil
	case errors.Is(err, inquiry.ErrTransport):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
