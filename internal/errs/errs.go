// Package errs classifies failures so callers can decide between local
// fallback, surfacing a message, or prompting for a new remote endpoint.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind is an error classification.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	// KindConnectivity covers unreachable hosts, DNS failures and timeouts.
	KindConnectivity
	// KindServer covers 5xx responses and malformed payloads.
	KindServer
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	// KindStorage covers local store failures.
	KindStorage
	// KindSuperseded marks a result discarded after a session or mode change.
	KindSuperseded
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindServer:
		return "server"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindStorage:
		return "storage"
	case KindSuperseded:
		return "superseded"
	}
	return "unknown"
}

// Error is a classified error. Msg is short and safe to show to a user.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with a message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation returns a terminal validation error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// NotFound returns a terminal not-found error.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Unauthorized returns a permission error.
func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, format, args...)
}

// Storage wraps a local store failure.
func Storage(op string, err error) error {
	return Wrap(KindStorage, op, err)
}

// KindOf returns the classification of err, looking through wrapping.
// Context cancellation and deadlines count as connectivity failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindConnectivity
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// CanFallback reports whether a failed remote call may be replaced by a
// local mutation. Only connectivity and server failures qualify.
func CanFallback(err error) bool {
	switch KindOf(err) {
	case KindConnectivity, KindServer:
		return true
	}
	return false
}

// NeedsEndpointPrompt reports whether the caller should suggest
// reconfiguring the remote endpoint.
func NeedsEndpointPrompt(err error) bool {
	return KindOf(err) == KindConnectivity
}
