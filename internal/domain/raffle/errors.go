package raffle

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an Error. Callers branch on the kind, never on text.
type Kind string

const (
	KindInvalidArgument   Kind = "invalid_argument"
	KindAlreadyRegistered Kind = "already_registered"
	KindCorruptState      Kind = "corrupt_state"
	KindIO                Kind = "io"
	KindRateLimited       Kind = "rate_limited"
	KindTransient         Kind = "transient"
	KindNotFound          Kind = "not_found"
)

// String returns the string representation
func (k Kind) String() string {
	return string(k)
}

var (
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrAlreadyRegistered = &Error{Kind: KindAlreadyRegistered}
	ErrCorruptState      = &Error{Kind: KindCorruptState}
	ErrIO                = &Error{Kind: KindIO}
	ErrRateLimited       = &Error{Kind: KindRateLimited}
	ErrTransient         = &Error{Kind: KindTransient}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

// Error is the structured error used across the raffle core and its
// collaborators.
type Error struct {
	Kind       Kind
	Op         string
	Identity   string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Identity != "" {
		msg += fmt.Sprintf(" (identity %s)", e.Identity)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so errors.Is(err, ErrNotFound) works for any
// NotFound error regardless of its other fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// RetryAfterOf returns the retry hint carried by a RateLimited error.
func RetryAfterOf(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindRateLimited {
		return e.RetryAfter, true
	}
	return 0, false
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(op, reason string) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Err: errors.New(reason)}
}
