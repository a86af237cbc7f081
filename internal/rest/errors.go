// File: internal/rest/errors.go
package rest

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrTypeTransient  ErrorType = "TRANSIENT"  // network failure or 5xx; worth retrying
	ErrTypeValidation ErrorType = "VALIDATION" // rejected input; retrying is pointless
	ErrTypeAuth       ErrorType = "AUTH"       // expired/invalid credential; fatal for the session
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
)

type APIError struct {
	Type       ErrorType
	StatusCode int
	Operation  string
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("api %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("api %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

func newNetworkError(operation string, cause error) *APIError {
	return &APIError{Type: ErrTypeTransient, Operation: operation, Message: "request failed", Cause: cause}
}

func newStatusError(operation string, status int, msg string) *APIError {
	return &APIError{Type: classify(status), StatusCode: status, Operation: operation, Message: msg}
}

func classify(status int) ErrorType {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrTypeAuth
	case status == http.StatusNotFound:
		return ErrTypeNotFound
	case status >= 400 && status < 500:
		return ErrTypeValidation
	default:
		return ErrTypeTransient
	}
}

// IsTransient reports whether err represents a failure worth retrying.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrTypeTransient
}

// IsAuthFailure reports whether err means the credential is no longer valid.
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrTypeAuth
}
