// Package apperror defines the application's error taxonomy.
//
// Sentinel errors (ErrNotFound, ErrConflict, ...) classify a failure;
// AppError wraps a sentinel with a human-readable message. Callers branch
// with errors.Is against the sentinels, so the classification survives any
// amount of fmt.Errorf("...: %w", err) wrapping on the way up the stack.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
)

type AppError struct {
	Err     error  // sentinel classifying the failure
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with key %s", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation. The user store returns this when
// an INSERT races another request creating the same email.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists with key %s", resource, key),
	}
}
