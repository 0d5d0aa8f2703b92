package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicatePermalink = errors.New("permalink already in use")
	ErrAccessDenied       = errors.New("access denied")
	ErrAlreadyVoted       = errors.New("already voted")
	ErrIndexDesync        = errors.New("search index out of sync with store")
	ErrStoreFailure       = errors.New("store failure")
	ErrVotingDisabled     = errors.New("voting is disabled")
	ErrSuggestionsOff     = errors.New("suggestions are disabled")
	ErrPasswordRequired   = errors.New("article password required")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Invalid wraps ErrInvalidInput with a field-level message.
func Invalid(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicatePermalink), errors.Is(err, ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrPasswordRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrVotingDisabled), errors.Is(err, ErrSuggestionsOff):
		return http.StatusForbidden
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrStoreFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a stable machine-readable name for the error kind, used in
// JSON error bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicatePermalink):
		return "duplicate_permalink"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, ErrIndexDesync):
		return "index_desync"
	case errors.Is(err, ErrStoreFailure):
		return "store_failure"
	case errors.Is(err, ErrVotingDisabled):
		return "voting_disabled"
	case errors.Is(err, ErrSuggestionsOff):
		return "suggestions_disabled"
	case errors.Is(err, ErrPasswordRequired):
		return "password_required"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}
