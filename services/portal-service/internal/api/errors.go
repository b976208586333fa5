package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Every error returned by Client wraps exactly one of them.
var (
	// ErrNetwork: the request did not complete or the reply could not be read.
	ErrNetwork = errors.New("network error")
	// ErrAPI: the request completed and the backend reported failure.
	ErrAPI = errors.New("api error")
	// ErrValidation: the backend rejected submitted data.
	ErrValidation = errors.New("validation error")
	// ErrAuth: missing, expired or rejected session token.
	ErrAuth = errors.New("auth error")
)

type Error struct {
	Op      string
	Status  int
	Message string
	kind    error
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.Err}
}

func (e *Error) Kind() error { return e.kind }

// UserMessage is what a toast shows: the backend's words when it gave any.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.kind {
	case ErrAuth:
		return "Not Authorized Login Again"
	case ErrNetwork:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "Network Error"
	default:
		return "Request failed"
	}
}

// NewError builds an error of the given kind. A nil kind is treated as ErrAPI.
func NewError(op string, kind error, status int, message string, cause error) *Error {
	if kind == nil {
		kind = ErrAPI
	}
	return &Error{Op: op, Status: status, Message: message, kind: kind, Err: cause}
}

// MissingSession is returned before any request is made when no usable token exists.
func MissingSession(op string) *Error {
	return NewError(op, ErrAuth, 0, "Not Authorized Login Again", nil)
}

// failureKind maps a completed call that did not succeed onto a kind.
// refusal is the kind of a 2xx success:false reply; nil leaves it as ErrAPI.
func failureKind(status int, message string, refusal error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case strings.Contains(strings.ToLower(message), "not authorized"):
		return ErrAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ErrValidation
	case refusal != nil && status >= 200 && status < 300:
		return refusal
	default:
		return ErrAPI
	}
}

// Message extracts a user-facing message from any error.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
