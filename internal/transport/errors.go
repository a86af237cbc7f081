// File: internal/transport/errors.go
package transport

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeConnection ErrorType = "CONNECTION"
	ErrTypeProtocol   ErrorType = "PROTOCOL"
	ErrTypeReconnect  ErrorType = "RECONNECT"
)

// ErrNoCredential is returned when Connect is attempted without a bearer
// token. Surfaced explicitly so callers can prompt for login instead of
// silently receiving no event stream.
var ErrNoCredential = errors.New("no authentication credential available")

// ErrSessionClosed is returned for operations on a torn-down session.
var ErrSessionClosed = errors.New("session is closed")

type TransportError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("transport %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func NewConfigError(msg string) *TransportError {
	return &TransportError{Type: ErrTypeConfig, Operation: "config", Message: msg}
}

func NewConnectionError(operation, msg string, cause error) *TransportError {
	return &TransportError{Type: ErrTypeConnection, Operation: operation, Message: msg, Cause: cause}
}

func NewProtocolError(operation, msg string, cause error) *TransportError {
	return &TransportError{Type: ErrTypeProtocol, Operation: operation, Message: msg, Cause: cause}
}

func NewReconnectError(msg string, cause error) *TransportError {
	return &TransportError{Type: ErrTypeReconnect, Operation: "reconnect", Message: msg, Cause: cause}
}
