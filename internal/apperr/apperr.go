// Package apperr defines the typed error kinds used across the engine,
// room, and gateway so failures can be mapped to wire error codes without
// string-matching.
package apperr

import "fmt"

// Kind is one of the six error categories from the error handling design.
type Kind string

const (
	KindProtocol      Kind = "protocol"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindTimeout       Kind = "timeout"
	KindTransport     Kind = "transport"
	KindInternal      Kind = "internal"
)

// Error is a typed, wrapped error carrying a wire code alongside a Kind.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Reserved wire error codes from the external interface table.
const (
	CodeAuthRequired   = "AUTH_REQUIRED"
	CodeNotInRoom      = "NOT_IN_ROOM"
	CodeNotHost        = "NOT_HOST"
	CodeRoomNotFound   = "ROOM_NOT_FOUND"
	CodeRoomFull       = "ROOM_FULL"
	CodeInvalidPhase   = "INVALID_PHASE"
	CodeInvalidTarget  = "INVALID_TARGET"
	CodeActionTimeout  = "ACTION_TIMEOUT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternalError  = "INTERNAL_ERROR"
)
