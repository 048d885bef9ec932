// Package apperr defines the typed sentinel errors named in spec.md §7 and
// their HTTP-code mapping, so a handler only has to produce or propagate an
// *Error rather than format a status code itself.
package apperr

import "fmt"

// Kind is one of the error kinds enumerated in spec.md §7.
type Kind string

const (
	KindInvalidRequest    Kind = "InvalidRequest"
	KindUnauthorized      Kind = "Unauthorized"
	KindConflict          Kind = "Conflict"
	KindNotFound          Kind = "NotFound"
	KindRateLimited       Kind = "RateLimited"
	KindDuplicateCommand  Kind = "DuplicateCommand"
	KindInternal          Kind = "Internal"
)

// Error carries an HTTP code alongside the kind so the request surface can
// translate it directly into the {code,msg,data} envelope.
type Error struct {
	Kind        Kind
	Code        int
	Message     string
	RetryAfterS int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// InvalidRequest reports malformed JSON, missing fields, or out-of-range
// values. Code 400.
func InvalidRequest(message string) *Error {
	return newError(KindInvalidRequest, 400, message)
}

// Unauthorized reports an unknown login key or session token. Code 401.
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, 401, message)
}

// Conflict reports that the player is already in game. Code 409.
func Conflict(message string) *Error {
	return newError(KindConflict, 409, message)
}

// NotFound reports that the player is no longer in game. Code 404.
func NotFound(message string) *Error {
	return newError(KindNotFound, 404, message)
}

// RateLimited reports too many requests, carrying retry_after_seconds.
// Code 429.
func RateLimited(message string, retryAfterSeconds int) *Error {
	e := newError(KindRateLimited, 429, message)
	e.RetryAfterS = retryAfterSeconds
	return e
}

// DuplicateCommand reports a second move submission within the same round.
// Code 429, retry_after=0.
func DuplicateCommand() *Error {
	return newError(KindDuplicateCommand, 429, "duplicate command for this round")
}

// Internal wraps any other failure. Code 500.
func Internal(message string) *Error {
	return newError(KindInternal, 500, message)
}

// As extracts an *Error from err, reporting ok=false (and wrapping err as
// Internal) if err is not already one.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	if ae, ok := err.(*Error); ok {
		return ae, true
	}
	return Internal(err.Error()), false
}
