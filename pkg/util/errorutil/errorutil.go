package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

// NewSessionAlreadyRunning signals that another session holds the running
// flag. Exactly one session may run cluster-wide.
func NewSessionAlreadyRunning() error {
	return NewDomainError("SESSION_ALREADY_RUNNING", "a queue session is already running", http.StatusConflict, nil)
}

// NewSessionNotRunning signals a mutation against a session that is not
// running (stopped, or never started).
func NewSessionNotRunning() error {
	return NewDomainError("SESSION_NOT_RUNNING", "no queue session is running", http.StatusConflict, nil)
}

// NewInvalidStatusTransition rejects a backward or unknown entry status move.
func NewInvalidStatusTransition(from, to string) error {
	return NewDomainError("INVALID_STATUS_TRANSITION",
		fmt.Sprintf("cannot transition entry from %s to %s", from, to),
		http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

// NewStorageUnavailable wraps persistence connectivity failures. This is the
// only error class callers should retry.
func NewStorageUnavailable(err error) error {
	return &DomainError{
		Code:       "STORAGE_UNAVAILABLE",
		Message:    "storage unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewArchiveFailed signals that the stop+archive transaction did not commit.
// The session stays running; the caller may retry the stop.
func NewArchiveFailed(err error) error {
	return &DomainError{
		Code:       "ARCHIVE_FAILED",
		Message:    "failed to archive session",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Row absence maps to
// NOT_FOUND and connectivity failures to STORAGE_UNAVAILABLE; everything
// else is an internal error so storage detail never leaks to callers.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if IsStorageError(err) {
		if de, ok := NewStorageUnavailable(err).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsStorageError reports whether err indicates the store is unreachable
// rather than a semantic failure.
func IsStorageError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception, 53: insufficient resources,
		// 57: operator intervention, 58: system error.
		if state := pgErr.SQLState(); len(state) >= 2 {
			switch state[:2] {
			case "08", "53", "57", "58":
				return true
			}
		}
	}
	return false
}

func MapError(err error) error {
	return ToDomainError(err)
}
