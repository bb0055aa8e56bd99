package domain

import (
	"errors"
	"fmt"
)

// Lifecycle and concurrency error kinds. Every engine operation returns one
// of these (or a ValidationError) rather than an uncategorized failure.
var (
	// ErrAlreadyActive - starting an episode while one is already active
	ErrAlreadyActive = errors.New("an active episode already exists for this user")
	// ErrNoActiveEpisode - closing or recording a decision with no active episode
	ErrNoActiveEpisode = errors.New("no active episode exists for this user")
	// ErrConflict - optimistic-concurrency version mismatch on a belief write.
	// Recovered internally via retry; surfaced only when retries are exhausted.
	ErrConflict = errors.New("belief state version conflict")
	// ErrStorageUnavailable - collaborator I/O failure, not retried by the engine
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError describes an out-of-range or malformed input field
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// Error kind names surfaced at the API boundary
const (
	KindAlreadyActive      = "ALREADY_ACTIVE"
	KindNoActiveEpisode    = "NO_ACTIVE_EPISODE"
	KindConflict           = "CONFLICT"
	KindValidation         = "VALIDATION"
	KindStorageUnavailable = "STORAGE_UNAVAILABLE"
)

// ErrorKind returns the taxonomy name for an engine error, used at the API
// boundary so callers always see a named error kind.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyActive):
		return KindAlreadyActive
	case errors.Is(err, ErrNoActiveEpisode):
		return KindNoActiveEpisode
	case errors.Is(err, ErrConflict):
		return KindConflict
	case IsValidation(err):
		return KindValidation
	default:
		return KindStorageUnavailable
	}
}
