// Package apperr defines the error kinds shared by the coordinator, the
// renderer, the delivery gateway and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category surfaced to clients
type Kind string

const (
	KindConfiguration        Kind = "configuration_error"
	KindStaleAction          Kind = "stale_action"
	KindUnknownTemplate      Kind = "unknown_template"
	KindNoTransportAvailable Kind = "no_transport_available"
	KindTransport            Kind = "transport_error"
	KindDiscoveryFailure     Kind = "discovery_failure"
	KindGenerationFailure    Kind = "generation_failure"
	KindNotFound             Kind = "not_found"
	KindInternal             Kind = "internal_error"
)

// Sentinels for errors.Is comparisons. Any *Error of the same kind matches.
var (
	ErrConfiguration        = &Error{Kind: KindConfiguration}
	ErrStaleAction          = &Error{Kind: KindStaleAction}
	ErrUnknownTemplate      = &Error{Kind: KindUnknownTemplate}
	ErrNoTransportAvailable = &Error{Kind: KindNoTransportAvailable}
	ErrTransport            = &Error{Kind: KindTransport}
	ErrDiscoveryFailure     = &Error{Kind: KindDiscoveryFailure}
	ErrGenerationFailure    = &Error{Kind: KindGenerationFailure}
	ErrNotFound             = &Error{Kind: KindNotFound}
)

// Error is a categorised application error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns a client-safe message for err. Internal errors keep
// their cause out of the message.
func MessageOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred"
	}
	if e.Kind == KindInternal {
		if e.Message == "" {
			return "An unexpected error occurred"
		}
		return e.Message
	}
	return e.Error()
}
