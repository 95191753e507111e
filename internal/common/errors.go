package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NewValidationError flags invalid input, e.g. costs exceeding deal value.
func NewValidationError(message string, err error) *AppError {
	return NewAppError("VALIDATION_ERROR", message, http.StatusBadRequest, err)
}

// NewNotFoundError flags a missing or out-of-organization resource.
func NewNotFoundError(message string) *AppError {
	return NewAppError("NOT_FOUND", message, http.StatusNotFound, nil)
}

// NewPermissionError flags an operation the caller's role does not allow.
func NewPermissionError(message string) *AppError {
	return NewAppError("FORBIDDEN", message, http.StatusForbidden, nil)
}

// NewStorageError wraps a transient store failure. Nothing has been persisted
// when one of these is returned, so callers may retry the whole unit of work.
func NewStorageError(message string, err error) *AppError {
	return NewAppError("STORAGE_ERROR", message, http.StatusInternalServerError, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
