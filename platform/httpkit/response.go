// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"

	"followup_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// Result is the envelope every endpoint responds with.
// Successful calls carry Data; failures carry ErrorKind and Message.
type Result struct {
	OK        bool   `json:"ok"`
	Data      any    `json:"data,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Message   string `json:"message,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// Success wraps data in a successful envelope.
func Success(data any) Result {
	return Result{OK: true, Data: data}
}

// Failure builds a failed envelope from err. Errors that are not *apperr.Error
// are reported as Internal without leaking their text.
func Failure(err error) (int, Result) {
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus(), Result{
			ErrorKind: domainErr.Kind.String(),
			Message:   domainErr.Message,
			Details:   domainErr.Details,
		}
	}
	return http.StatusInternalServerError, Result{
		ErrorKind: apperr.KindInternal.String(),
		Message:   "internal error",
	}
}

// JSON sends a successful envelope with the given status code.
func JSON(c *gin.Context, status int, data any) {
	c.JSON(status, Success(data))
}

// OK sends a 200 OK envelope with the given payload.
func OK(c *gin.Context, data any) {
	JSON(c, http.StatusOK, data)
}

// Created sends a 201 Created envelope with the given payload.
func Created(c *gin.Context, data any) {
	JSON(c, http.StatusCreated, data)
}

// Error sends a failed envelope with an explicit status and kind.
func Error(c *gin.Context, status int, kind apperr.Kind, message string) {
	c.JSON(status, Result{ErrorKind: kind.String(), Message: message})
}

// Abort stops the handler chain with a failed envelope.
func Abort(c *gin.Context, status int, kind apperr.Kind, message string) {
	c.AbortWithStatusJSON(status, Result{ErrorKind: kind.String(), Message: message})
}

// HandleError maps domain errors to envelope responses.
// If the error is a typed *apperr.Error, it uses the error's Kind to determine
// the HTTP status code. Otherwise it responds 500.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	status, body := Failure(err)
	c.JSON(status, body)
	return true
}
