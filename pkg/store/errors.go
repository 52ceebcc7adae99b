package store

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthentication matches every *AuthenticationError.
	ErrAuthentication = errors.New("authentication failed")

	// ErrTransient matches every *TransientError.
	ErrTransient = errors.New("transient store failure")

	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("version conflict")
)

// AuthenticationError is returned when the store rejects the credentials.
// Retrying with the same credentials will keep failing.
type AuthenticationError struct {
	Op  string
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed during %s: %v", e.Op, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// TransientError is a timeout, throttling or server-side failure that is
// safe to retry on the next cycle.
type TransientError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure during %s (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// ConflictError is returned when the document's version token moved between
// fetching and persisting it.
type ConflictError struct {
	Expected VersionToken
	Actual   VersionToken
}

func (e *ConflictError) Error() string {
	if e.Expected == "" && e.Actual == "" {
		return "version conflict"
	}
	return fmt.Sprintf("version conflict: expected %q, found %q", e.Expected, e.Actual)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StatusError is a non-2xx response that is neither an authentication,
// transient nor conflict failure.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

// ErrorForStatus classifies a non-2xx HTTP response.
//
//	401, 403           -> *AuthenticationError
//	408, 429, 5xx      -> *TransientError
//	409, 412           -> *ConflictError
//	anything else      -> *StatusError
func ErrorForStatus(op string, status int, message string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthenticationError{Op: op, Err: &StatusError{Op: op, StatusCode: status, Message: message}}
	case IsRetryableStatus(status):
		return &TransientError{Op: op, StatusCode: status, Err: &StatusError{Op: op, StatusCode: status, Message: message}}
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		return &ConflictError{}
	default:
		return &StatusError{Op: op, StatusCode: status, Message: message}
	}
}

// IsRetryableStatus reports whether an HTTP status is worth retrying:
// 5xx, 429 and 408.
func IsRetryableStatus(status int) bool {
	switch {
	case status >= 500:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status == http.StatusRequestTimeout:
		return true
	default:
		return false
	}
}
