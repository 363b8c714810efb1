// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors, and the HTTP layer
// maps them to the response envelope and an HTTP status code.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindConflict indicates a conflict with existing state (e.g., duplicate).
	KindConflict
	// KindForbidden indicates the action is not allowed for the user.
	KindForbidden
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindInternal indicates an unexpected internal error.
	KindInternal
	// KindUnknownOutcome indicates an outcome label outside the taxonomy.
	KindUnknownOutcome
	// KindInvalidTransition indicates a status transition that is not allowed
	// from the record's current status.
	KindInvalidTransition
	// KindNotArchived indicates a purge was requested for a live record.
	KindNotArchived
	// KindDependencyTimeout indicates a collaborator did not answer in time.
	KindDependencyTimeout
)

var kindNames = map[Kind]string{
	KindUnknown:           "Unknown",
	KindNotFound:          "NotFound",
	KindValidation:        "ValidationError",
	KindConflict:          "Conflict",
	KindForbidden:         "Forbidden",
	KindUnauthorized:      "Unauthorized",
	KindInternal:          "Internal",
	KindUnknownOutcome:    "UnknownOutcome",
	KindInvalidTransition: "InvalidTransition",
	KindNotArchived:       "NotArchived",
	KindDependencyTimeout: "DependencyTimeout",
}

// String returns the stable name of the kind used in API responses.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
	Details any    // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindUnknownOutcome:
		return http.StatusBadRequest
	case KindConflict, KindInvalidTransition, KindNotArchived:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindDependencyTimeout:
		return http.StatusGatewayTimeout
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the operation on the error and returns it.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails sets additional details on the error and returns it.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict creates a conflict error (e.g., duplicate resource).
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// UnknownOutcome creates an unknown outcome error.
func UnknownOutcome(message string) *Error {
	return New(KindUnknownOutcome, message)
}

// InvalidTransition creates an invalid transition error.
func InvalidTransition(message string) *Error {
	return New(KindInvalidTransition, message)
}

// NotArchived creates a not archived error.
func NotArchived(message string) *Error {
	return New(KindNotArchived, message)
}

// DependencyTimeout creates a dependency timeout error.
func DependencyTimeout(message string) *Error {
	return New(KindDependencyTimeout, message)
}

// FromContext converts context deadline errors raised by a collaborator call
// into a DependencyTimeout error. Other errors are returned unchanged.
func FromContext(dependency string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindDependencyTimeout, dependency+" did not respond in time", err)
	}
	return err
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is present.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err carries an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
