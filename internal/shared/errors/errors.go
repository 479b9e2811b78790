package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeBadRequest      ErrorType = "bad_request"
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeForbidden       ErrorType = "forbidden"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeConflict        ErrorType = "conflict"
	ErrorTypeExternalService ErrorType = "external_service"
	ErrorTypeInternal        ErrorType = "internal"
)

// AppError is the error shape carried across layers. Code is the HTTP
// status the interfaces layer maps it to. InvalidFields is only set for
// validation errors and is rendered verbatim to the client.
type AppError struct {
	Type          ErrorType         `json:"type"`
	Message       string            `json:"message"`
	Code          int               `json:"code"`
	Details       any               `json:"details,omitempty"`
	InvalidFields map[string]string `json:"invalid_fields,omitempty"`
	cause         error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

func NewValidationError(message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message, Code: http.StatusBadRequest}
}

// NewFieldValidationError carries a field -> reason map for structured
// form feedback.
func NewFieldValidationError(message string, fields map[string]string) *AppError {
	return &AppError{
		Type:          ErrorTypeValidation,
		Message:       message,
		Code:          http.StatusBadRequest,
		InvalidFields: fields,
	}
}

func NewBadRequestError(message string) *AppError {
	return &AppError{Type: ErrorTypeBadRequest, Message: message, Code: http.StatusBadRequest}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Type: ErrorTypeUnauthorized, Message: message, Code: http.StatusUnauthorized}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Type: ErrorTypeForbidden, Message: message, Code: http.StatusForbidden}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: message, Code: http.StatusNotFound}
}

func NewConflictError(message string) *AppError {
	return &AppError{Type: ErrorTypeConflict, Message: message, Code: http.StatusConflict}
}

// NewExternalServiceError wraps a failure from an upstream dependency.
// upstreamStatus is the HTTP status the upstream returned, or 0 when the
// call never completed.
func NewExternalServiceError(message string, upstreamStatus int) *AppError {
	e := &AppError{Type: ErrorTypeExternalService, Message: message, Code: http.StatusBadGateway}
	if upstreamStatus != 0 {
		e.Details = map[string]any{"upstream_status": upstreamStatus}
	}
	return e
}

func NewInternalError(message string) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Code: http.StatusInternalServerError}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsType(err error, t ErrorType) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Type == t
	}
	return false
}

func IsNotFound(err error) bool     { return IsType(err, ErrorTypeNotFound) }
func IsConflict(err error) bool     { return IsType(err, ErrorTypeConflict) }
func IsUnauthorized(err error) bool { return IsType(err, ErrorTypeUnauthorized) }

// IsDuplicateError reports whether err is a database unique constraint
// violation. The unique index is the authoritative uniqueness check;
// callers translate this into a ConflictError.
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
