// Package apperr defines the error kinds surfaced by the structure engine and
// maps them to conventional status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindNamingConflict
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindBadRequest:
		return "bad request"
	case KindNamingConflict:
		return "naming conflict"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal inconsistency"
	}
}

// Error carries a Kind together with a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind alone: errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrBadRequest     = &Error{Kind: KindBadRequest}
	ErrNamingConflict = &Error{Kind: KindNamingConflict}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrInternal       = &Error{Kind: KindInternal}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func BadRequest(format string, args ...any) *Error {
	return newf(KindBadRequest, format, args...)
}

func NamingConflict(format string, args ...any) *Error {
	return newf(KindNamingConflict, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

// Internal signals a catalog shape the engine cannot interpret. It is a
// programmer error and never retried.
func Internal(format string, args ...any) *Error {
	return newf(KindInternal, format, args...)
}

// Wrapf prefixes err with a caller-facing message while keeping its kind.
// The wrapped text stays out of Public.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err. Server errors with well-known SQLSTATE codes
// are classified; anything else is internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P07", "42701", "42710", "42P04":
			return KindNamingConflict
		case "3D000", "42P01", "42703", "42704":
			return KindNotFound
		case "42501":
			return KindForbidden
		case "42804", "42846", "22P02", "23502", "2BP01":
			return KindBadRequest
		}
	}
	return KindInternal
}

// Status maps err to an HTTP-style status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNamingConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message that may be shown to a caller. Raw server text
// is hidden unless it is a permission failure, where it is the diagnostic.
func Public(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		switch {
		case appErr.Err == nil:
			return appErr.Message
		case appErr.Message == "":
			return Public(appErr.Err)
		}
		return appErr.Message + ": " + Public(appErr.Err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42501" {
		return pqErr.Message
	}
	return KindOf(err).String()
}
