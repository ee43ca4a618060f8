package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrorKind is the closed set of failure categories reported at the core boundary
type ErrorKind uint8

const (
	Internal ErrorKind = iota
	DiscoveryFailed
	ConnectionRefused
	Timeout
	InvalidPayload
	ChannelClosed
	UnsupportedType
	DecodeError
)

var errorKindNames = map[ErrorKind]string{
	Internal:          "internal",
	DiscoveryFailed:   "discovery_failed",
	ConnectionRefused: "connection_refused",
	Timeout:           "timeout",
	InvalidPayload:    "invalid_payload",
	ChannelClosed:     "channel_closed",
	UnsupportedType:   "unsupported_type",
	DecodeError:       "decode_error",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "error_kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k belongs to the closed kind set
func (k ErrorKind) Valid() bool {
	_, ok := errorKindNames[k]
	return ok
}

// ParseErrorKind converts a kind name back to an ErrorKind
func ParseErrorKind(s string) (ErrorKind, bool) {
	for k, name := range errorKindNames {
		if name == s {
			return k, true
		}
	}
	return Internal, false
}

// ErrorKinds lists every kind in declaration order
func ErrorKinds() []ErrorKind {
	return []ErrorKind{
		Internal, DiscoveryFailed, ConnectionRefused, Timeout,
		InvalidPayload, ChannelClosed, UnsupportedType, DecodeError,
	}
}

// Error is the structured failure returned by every fallible core operation
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// Sentinels for errors.Is matching by kind
var (
	ErrInternal          = &Error{Kind: Internal}
	ErrDiscoveryFailed   = &Error{Kind: DiscoveryFailed}
	ErrConnectionRefused = &Error{Kind: ConnectionRefused}
	ErrTimeout           = &Error{Kind: Timeout}
	ErrInvalidPayload    = &Error{Kind: InvalidPayload}
	ErrChannelClosed     = &Error{Kind: ChannelClosed}
	ErrUnsupportedType   = &Error{Kind: UnsupportedType}
	ErrDecodeError       = &Error{Kind: DecodeError}
)

// NewError builds an Error. An empty message is replaced by the kind name so
// both fields are always populated.
func NewError(kind ErrorKind, message string) *Error {
	if message == "" {
		message = kind.String()
	}
	return &Error{Kind: kind, Message: message}
}

// Errorf builds an Error with a formatted message
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// Wrap builds an Error of the given kind around cause. The cause stays
// reachable through errors.Unwrap.
func Wrap(kind ErrorKind, cause error, message string) *Error {
	if cause == nil {
		return NewError(kind, message)
	}
	if message == "" {
		message = cause.Error()
	} else {
		message = message + ": " + cause.Error()
	}
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTimeout) works
// regardless of message
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain. Errors that carry
// no kind are reported as Internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Internal
}

// Classify converts any error into a *Error. Existing *Error values in the
// chain are returned as-is; deadline errors become Timeout and everything else
// Internal, keeping the original error as the cause.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(Timeout, err, "")
	}
	return Wrap(Internal, err, "")
}
