// Package domainerrors defines the caller-visible error taxonomy for the
// compliance pipeline. Infrastructure facts (not found, conflict) live in
// pkg/platform/sentinel; this package is for errors that cross the API
// boundary and need a stable code plus HTTP mapping.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class across transports.
type Code string

const (
	CodeBadRequest        Code = "bad_request"
	CodeValidation        Code = "validation_error"
	CodePayloadTooLarge   Code = "payload_too_large"
	CodeUnauthorized      Code = "unauthorized"
	CodeNotFound          Code = "not_found"
	CodeSSRFRejected      Code = "ssrf_rejected"
	CodeTimeout           Code = "timeout"
	CodeSignatureMismatch Code = "signature_mismatch"
	CodeBudgetExceeded    Code = "budget_exceeded"
	CodeUnavailable       Code = "unavailable"
	CodeInternal          Code = "internal_error"
)

// Error carries a code, a human-readable message, and (for validation
// failures) the path of the offending field, e.g. "items[2].name".
type Error struct {
	Code    Code
	Message string
	Field   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewField builds a validation error pointing at a specific field path.
func NewField(code Code, field, message string) *Error {
	return &Error{Code: code, Message: message, Field: field}
}

// CodeOf extracts the Code from err, defaulting to CodeInternal for errors
// that are not domain errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps an error code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSSRFRejected:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
