package errorx

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryBusinessRule  ErrorCategory = "business_rule"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryToken         ErrorCategory = "token"
	CategoryAuthorization ErrorCategory = "authorization"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryInternal      ErrorCategory = "internal"
)

// Stable error codes surfaced to API clients
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeConflict         = "CONFLICT"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeTokenInvalid     = "TOKEN_INVALID"
	CodePrimaryRequired  = "PRIMARY_REQUIRED"
	CodeInvalidPrimary   = "INVALID_PRIMARY"
	CodeInvalidState     = "INVALID_STATE"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL"
)

// APIError is a structured error with a stable code, a category and the
// HTTP status it maps to. Every rejection the core produces is one of these;
// anything else surfacing from a handler is treated as internal.
type APIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"category"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// WithDetail adds a detail entry to the error and returns it
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Validation returns a malformed-input rejection. It is always raised
// before any store write.
func Validation(format string, args ...any) *APIError {
	return &APIError{
		Code:       CodeValidation,
		Message:    fmt.Sprintf(format, args...),
		Category:   CategoryValidation,
		HTTPStatus: http.StatusBadRequest,
	}
}

// CapacityExceeded returns the business-rule rejection raised when an
// operation would push the active unit count past the licensed capacity.
// excessBy is the overshoot amount so the caller can adjust.
func CapacityExceeded(excessBy int) *APIError {
	return (&APIError{
		Code:       CodeCapacityExceeded,
		Message:    fmt.Sprintf("licensed unit capacity exceeded by %d", excessBy),
		Category:   CategoryBusinessRule,
		HTTPStatus: http.StatusConflict,
	}).WithDetail("excess_by", excessBy)
}

// Conflict is the optimistic-concurrency collision surfaced after internal
// retries are exhausted. Callers must retry the whole operation.
var Conflict = &APIError{
	Code:       CodeConflict,
	Message:    "concurrent modification detected, retry the operation",
	Category:   CategoryConflict,
	HTTPStatus: http.StatusConflict,
}

// TokenExpired is returned when a QR token's embedded expiry has passed
var TokenExpired = &APIError{
	Code:       CodeTokenExpired,
	Message:    "token has expired",
	Category:   CategoryToken,
	HTTPStatus: http.StatusGone,
}

// TokenInvalid is returned when a QR token's signature or form is wrong
var TokenInvalid = &APIError{
	Code:       CodeTokenInvalid,
	Message:    "token is invalid",
	Category:   CategoryToken,
	HTTPStatus: http.StatusUnauthorized,
}

// PrimaryRequired is returned when unlinking the primary resident would
// leave other residents with no primary
var PrimaryRequired = &APIError{
	Code:       CodePrimaryRequired,
	Message:    "removing the primary resident requires an explicit new primary",
	Category:   CategoryValidation,
	HTTPStatus: http.StatusBadRequest,
}

// InvalidPrimary is returned when the requested primary email is not a
// member of the resulting resident set
var InvalidPrimary = &APIError{
	Code:       CodeInvalidPrimary,
	Message:    "primary email must be a member of the resident set",
	Category:   CategoryValidation,
	HTTPStatus: http.StatusBadRequest,
}

// InvalidState returns a rejection for a state-machine transition that
// does not exist, e.g. approving a denied visitor request.
func InvalidState(from, action string) *APIError {
	return (&APIError{
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf("cannot %s a request in state %q", action, from),
		Category:   CategoryBusinessRule,
		HTTPStatus: http.StatusConflict,
	}).WithDetail("state", from)
}

// Forbidden returns an authorization rejection
func Forbidden(format string, args ...any) *APIError {
	return &APIError{
		Code:       CodeForbidden,
		Message:    fmt.Sprintf(format, args...),
		Category:   CategoryAuthorization,
		HTTPStatus: http.StatusForbidden,
	}
}

// NotFound returns a missing-record rejection
func NotFound(format string, args ...any) *APIError {
	return &APIError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf(format, args...),
		Category:   CategoryNotFound,
		HTTPStatus: http.StatusNotFound,
	}
}

// Internal wraps an unexpected error as an internal APIError
func Internal(err error) *APIError {
	return &APIError{
		Code:       CodeInternal,
		Message:    err.Error(),
		Category:   CategoryInternal,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// HasCode reports whether err is an APIError carrying the given code
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// IsConflict reports whether err is an optimistic-concurrency collision
func IsConflict(err error) bool { return HasCode(err, CodeConflict) }

// ExcessBy extracts the overshoot amount from a CapacityExceeded error,
// returning 0 for any other error.
func ExcessBy(err error) int {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeCapacityExceeded {
		return 0
	}
	if n, ok := apiErr.Details["excess_by"].(int); ok {
		return n
	}
	return 0
}
