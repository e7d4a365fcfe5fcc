// Package errors defines the error type shared by every emulated service.
// Engines return *AppError values carrying the AWS error code and the HTTP
// status the wire expects; the HTTP boundary renders them into the
// service-specific envelope.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes into the categories the boundary cares about.
type Kind string

const (
	KindResourceAbsent   Kind = "RESOURCE_ABSENT"
	KindResourceConflict Kind = "RESOURCE_CONFLICT"
	KindValidation       Kind = "VALIDATION"
	KindCondition        Kind = "CONDITION"
	KindCapacity         Kind = "CAPACITY"
	KindInternal         Kind = "INTERNAL"
)

// AppError is the application error type. Code is the AWS wire code
// ("NoSuchBucket", "ConditionalCheckFailedException", ...), Status the HTTP
// status to answer with, Resource an optional path for the S3 envelope.
type AppError struct {
	Kind     Kind
	Code     string
	Message  string
	Resource string
	Status   int
	Err      error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithResource returns a copy of the error with the resource path set.
func (e *AppError) WithResource(resource string) *AppError {
	clone := *e
	clone.Resource = resource
	return &clone
}

// NewAbsent creates a resource-absent error (404 unless overridden by code).
func NewAbsent(code, message string) *AppError {
	return &AppError{Kind: KindResourceAbsent, Code: code, Message: message, Status: http.StatusNotFound}
}

// NewConflict creates a resource-conflict error (409).
func NewConflict(code, message string) *AppError {
	return &AppError{Kind: KindResourceConflict, Code: code, Message: message, Status: http.StatusConflict}
}

// NewValidation creates a validation error (400).
func NewValidation(code, message string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: message, Status: http.StatusBadRequest}
}

// NewValidationf creates a validation error with a formatted message.
func NewValidationf(code, format string, args ...any) *AppError {
	return NewValidation(code, fmt.Sprintf(format, args...))
}

// NewCondition creates a conditional-check failure (400).
func NewCondition(code, message string) *AppError {
	return &AppError{Kind: KindCondition, Code: code, Message: message, Status: http.StatusBadRequest}
}

// NewCapacity creates a capacity error (429). Reserved: the engines do not
// throttle, but the kind is part of the wire contract.
func NewCapacity(code, message string) *AppError {
	return &AppError{Kind: KindCapacity, Code: code, Message: message, Status: http.StatusTooManyRequests}
}

// NewInternal creates an internal error (500) wrapping a cause.
func NewInternal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Code: "InternalError", Message: message, Status: http.StatusInternalServerError, Err: err}
}

// WithStatus returns a copy of the error with an explicit HTTP status.
func (e *AppError) WithStatus(status int) *AppError {
	clone := *e
	clone.Status = status
	return &clone
}

// AsAppError extracts an *AppError from err, converting foreign errors into
// internal ones so the boundary always has a code and status to render.
func AsAppError(err error) *AppError {
	var app *AppError
	if errors.As(err, &app) {
		return app
	}
	return NewInternal("unexpected error", err)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var app *AppError
	return errors.As(err, &app) && app.Kind == kind
}

// IsAbsent checks if an error is a resource-absent error.
func IsAbsent(err error) bool { return IsKind(err, KindResourceAbsent) }

// IsConflict checks if an error is a resource-conflict error.
func IsConflict(err error) bool { return IsKind(err, KindResourceConflict) }

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool { return IsKind(err, KindValidation) }

// IsCondition checks if an error is a conditional-check failure.
func IsCondition(err error) bool { return IsKind(err, KindCondition) }

// IsInternal checks if an error is an internal error.
func IsInternal(err error) bool { return IsKind(err, KindInternal) }
