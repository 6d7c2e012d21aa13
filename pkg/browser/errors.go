package browser

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Manager matches exactly one of these
// with errors.Is.
var (
	ErrNotFound         = errors.New("session not found")
	ErrSessionExists    = errors.New("session already exists")
	ErrConfiguration    = errors.New("invalid configuration")
	ErrConnection       = errors.New("browser connection error")
	ErrNoActivePage     = errors.New("no active page")
	ErrIO               = errors.New("i/o error")
	ErrSerialization    = errors.New("result serialization failed")
	ErrNavigationDenied = errors.New("navigation denied by url policy")
	ErrClosed           = errors.New("session manager closed")
)

// Error describes a failed session operation.
type Error struct {
	Op        string
	SessionID string
	Kind      error
	Err       error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.SessionID != "" {
		msg += " " + e.SessionID
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, sessionID string, kind, err error) *Error {
	return &Error{Op: op, SessionID: sessionID, Kind: kind, Err: err}
}

func errorf(op, sessionID string, kind error, format string, args ...any) *Error {
	return newError(op, sessionID, kind, fmt.Errorf(format, args...))
}

// KindOf returns the sentinel kind of err, or nil when err did not come from
// this package.
func KindOf(err error) error {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	for _, kind := range []error{
		ErrNotFound, ErrSessionExists, ErrConfiguration, ErrConnection,
		ErrNoActivePage, ErrIO, ErrSerialization, ErrNavigationDenied, ErrClosed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// kindLabel is the metrics label for an error kind.
func kindLabel(err error) string {
	switch KindOf(err) {
	case nil:
		if err == nil {
			return "ok"
		}
		return "other"
	case ErrNotFound:
		return "not_found"
	case ErrSessionExists:
		return "exists"
	case ErrConfiguration:
		return "configuration"
	case ErrConnection:
		return "connection"
	case ErrNoActivePage:
		return "no_active_page"
	case ErrIO:
		return "io"
	case ErrSerialization:
		return "serialization"
	case ErrNavigationDenied:
		return "denied"
	case ErrClosed:
		return "closed"
	}
	return "other"
}
