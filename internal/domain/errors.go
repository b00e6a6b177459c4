package domain

import (
	"errors"
	"fmt"
)

// Code identifies a failure class returned across the service boundary.
type Code string

const (
	CodeRoomFull         Code = "RoomFull"
	CodeNotHost          Code = "NotHost"
	CodeNotAuthenticated Code = "NotAuthenticated"
	CodeInvalidMove      Code = "InvalidMove"
	CodeSessionNotFound  Code = "SessionNotFound"
	CodeTransient        Code = "Transient"
	CodeInvalidState     Code = "InvalidState"
)

// Error is the typed result error handed to callers. Two Errors match with
// errors.Is when their codes are equal.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrRoomFull         = &Error{Code: CodeRoomFull, Message: "room has no free seat"}
	ErrNotHost          = &Error{Code: CodeNotHost, Message: "only the host may do this"}
	ErrNotAuthenticated = &Error{Code: CodeNotAuthenticated, Message: "participant identity missing"}
	ErrInvalidMove      = &Error{Code: CodeInvalidMove, Message: "invalid move"}
	ErrSessionNotFound  = &Error{Code: CodeSessionNotFound, Message: "session not found"}
	ErrTransient        = &Error{Code: CodeTransient, Message: "temporary failure, retry", Retryable: true}
	ErrInvalidState     = &Error{Code: CodeInvalidState, Message: "operation not allowed in current state"}
)

// Errorf builds a coded error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Retryable: code == CodeTransient}
}

// Transient wraps an underlying failure as a retryable error.
func Transient(op string, cause error) *Error {
	msg := op
	if cause != nil {
		msg = op + ": " + cause.Error()
	}
	return &Error{Code: CodeTransient, Message: msg, Retryable: true, cause: cause}
}

// AsError extracts the domain error from err. Anything that is not already a
// domain error is reported as Transient.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Transient("internal", err)
}

// IsRetryable reports whether the caller may retry err automatically.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
