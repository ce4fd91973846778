package inquiry

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("thread not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrAppendFailed      = errors.New("append failed")
	ErrTransport         = errors.New("store unavailable")
	ErrThreadResolved    = errors.New("thread is resolved")
	ErrReopenDisabled    = errors.New("reopening a resolved thread is disabled")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError rejects malformed input before any store call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
