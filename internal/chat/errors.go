package chat

import (
	"errors"
	"fmt"
)

// Kind is the category of a chat error.
type Kind string

const (
	// KindNotFound: the target session no longer exists server-side.
	KindNotFound Kind = "not_found"
	// KindValidation: a client-side precondition failed; nothing was sent.
	KindValidation Kind = "validation"
	// KindTransport: network, timeout or unexpected server error.
	KindTransport Kind = "transport"
	// KindDomain: the assistant backend could not produce an answer.
	KindDomain Kind = "domain"
	// KindUnauthorized: the credential was rejected.
	KindUnauthorized Kind = "unauthorized"
	// KindBusy: the operation is not permitted in the current mode.
	KindBusy Kind = "busy"
)

// Error is a categorized error surfaced by the gateway or the orchestrator.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind whose Op and Message are either
// empty on the target or equal, so sentinels like ErrNotFound match every
// not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return (t.Op == "" || t.Op == e.Op) && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrTransport    = &Error{Kind: KindTransport}
	ErrDomain       = &Error{Kind: KindDomain}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrBusy         = &Error{Kind: KindBusy}

	ErrEmptyMessage   = &Error{Kind: KindValidation, Message: "message is empty"}
	ErrEmptyTitle     = &Error{Kind: KindValidation, Message: "title is empty"}
	ErrEmptySessionID = &Error{Kind: KindValidation, Message: "session id is empty"}
	ErrSessionLoading = &Error{Kind: KindBusy, Message: "a session is loading"}
)

// NotFound builds a not-found error for the given operation and session.
func NotFound(op, sessionID string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("session %s not found", sessionID), Status: 404}
}

// Transport wraps a transport-level failure.
func Transport(op string, status int, cause error) *Error {
	return &Error{Kind: KindTransport, Op: op, Status: status, Cause: cause}
}

// Domain builds an error carrying the assistant backend's reason.
func Domain(op string, status int, reason string) *Error {
	return &Error{Kind: KindDomain, Op: op, Message: reason, Status: status}
}

// KindOf returns the kind of err, or "" when err is not a chat error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns the text to show in the error slot. Domain errors
// carry the backend's reason; everything else shows the fallback.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindDomain && e.Message != "" {
		return e.Message
	}
	return fallback
}
