// Package errors carries the service's error taxonomy. Every AppError wraps
// one sentinel so callers branch with Is and handlers map StatusCode directly.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound   = errors.New("resource not found")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("resource conflict")
	ErrInternal   = errors.New("internal server error")
	ErrValidation = errors.New("validation error")
	// ErrLocked means a review cycle already holds the scheduler lock
	ErrLocked = errors.New("resource locked")
)

// AppError is the error shape every layer returns and the HTTP envelope renders
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

func newAppError(sentinel error, code string, status int, message string) *AppError {
	return &AppError{Err: sentinel, Code: code, StatusCode: status, Message: message}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NotFound names the missing resource, e.g. NotFound("alert")
func NotFound(resource string) *AppError {
	return newAppError(ErrNotFound, "NOT_FOUND", http.StatusNotFound, resource+" not found")
}

func BadRequest(message string) *AppError {
	return newAppError(ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest, message)
}

func Conflict(message string) *AppError {
	return newAppError(ErrConflict, "CONFLICT", http.StatusConflict, message)
}

func Internal(message string) *AppError {
	return newAppError(ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError, message)
}

// Validation reports per-field failures in Details
func Validation(details map[string]string) *AppError {
	e := newAppError(ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	e.Details = details
	return e
}

func ValidationField(field, message string) *AppError {
	return Validation(map[string]string{field: message})
}

func Locked(message string) *AppError {
	return newAppError(ErrLocked, "LOCKED", http.StatusConflict, message)
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
