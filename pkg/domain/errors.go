package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by session stores when a connection ID has
// no live session.
var ErrSessionNotFound = errors.New("session not found")

// ErrNotSubscribed is returned when a connection publishes to or leaves a
// channel it never subscribed to.
var ErrNotSubscribed = errors.New("not subscribed to channel")

// ErrFanOutNotFound is returned when a fan-out aggregate does not exist or
// its TTL has elapsed.
var ErrFanOutNotFound = errors.New("fan-out aggregate not found")

// ErrorKind is the closed taxonomy of failure kinds. Every error that
// reaches a transport carries exactly one of these, so transports can map
// kinds to protocol codes without string matching.
type ErrorKind string

const (
	KindActionNotFound  ErrorKind = "ACTION_NOT_FOUND"
	KindParamRequired   ErrorKind = "PARAM_REQUIRED"
	KindParamDefault    ErrorKind = "PARAM_DEFAULT"
	KindParamFormatting ErrorKind = "PARAM_FORMATTING"
	KindParamValidation ErrorKind = "PARAM_VALIDATION"
	KindRun             ErrorKind = "RUN"
	KindSessionNotFound ErrorKind = "SESSION_NOT_FOUND"
	KindNotSubscribed   ErrorKind = "NOT_SUBSCRIBED"
	KindServerInit      ErrorKind = "SERVER_INITIALIZATION"
	KindServerStart     ErrorKind = "SERVER_START"
	KindServerStop      ErrorKind = "SERVER_STOP"
)

// Error is a taxonomy-tagged failure. Key/Value carry the offending
// parameter context for the PARAM_* kinds; Value holds the raw value for
// formatting failures and the formatted value for validation failures, so
// secret raw input never leaks through validation errors.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Key     string    `json:"key,omitempty"`
	Value   any       `json:"value,omitempty"`

	cause error
}

// NewError builds a tagged error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewParamError builds a PARAM_* error carrying the offending key and value.
func NewParamError(kind ErrorKind, key string, value any, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Key: key, Value: value}
}

// WrapError tags an underlying error, preserving it for errors.Is/As.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: err}
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (key=%s)", e.Kind, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Classify maps an arbitrary handler error onto the taxonomy. Tagged errors
// pass through unchanged; the session and subscription sentinels map to
// their kinds; everything else wraps as RUN.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged
	}
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return WrapError(KindSessionNotFound, err, "%s", err.Error())
	case errors.Is(err, ErrNotSubscribed):
		return WrapError(KindNotSubscribed, err, "%s", err.Error())
	case errors.Is(err, ErrFanOutNotFound):
		return WrapError(KindRun, err, "%s", err.Error())
	default:
		return WrapError(KindRun, err, "%s", err.Error())
	}
}
