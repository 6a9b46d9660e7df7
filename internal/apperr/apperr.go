// Package apperr is the error contract shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the request boundary
type Kind string

const (
	KindNotFound   Kind = "NOT_FOUND"
	KindValidation Kind = "VALIDATION"
	KindConflict   Kind = "CONFLICT"
	KindUpstream   Kind = "UPSTREAM"
	KindInternal   Kind = "INTERNAL"
)

// Error carries a safe message and a machine-readable code
type Error struct {
	Kind    Kind
	Code    string // ERR_... code sent to clients
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches a cause and returns the receiver
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NotFound reports a missing record or artifact
func NotFound(code, message string) *Error {
	return newError(KindNotFound, code, message)
}

// Validation reports bad client input
func Validation(code, message string) *Error {
	return newError(KindValidation, code, message)
}

// Conflict reports a request that clashes with current state
func Conflict(code, message string) *Error {
	return newError(KindConflict, code, message)
}

// Upstream reports a failing external collaborator
func Upstream(code, message string, err error) *Error {
	return newError(KindUpstream, code, message).Wrap(err)
}

// Internal reports an unexpected failure
func Internal(code, message string, err error) *Error {
	return newError(KindInternal, code, message).Wrap(err)
}

// ConversationNotFound is returned by every conversation lookup
func ConversationNotFound() *Error {
	return NotFound("ERR_CONVERSATION_NOT_FOUND", "Conversation not found.")
}

// HTTPStatus maps err to a response status
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether err is an *Error of the given kind
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// Body returns the client-facing message and code for err
func Body(err error) (message, code string) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message, ae.Code
	}
	return err.Error(), "ERR_INTERNAL"
}
