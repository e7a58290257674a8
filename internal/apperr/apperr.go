package apperr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories the core distinguishes.
// Anything that is not one of the first three is Infrastructure and is
// never swallowed.
type Kind int

const (
	Infrastructure Kind = iota
	NotFound
	Validation
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	default:
		return "infrastructure"
	}
}

type Error struct {
	kind Kind
	msg  string
	err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error. The cause stays reachable
// through errors.Is / errors.As.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Unwrap() error { return e.err }

// KindOf reports the kind of err. Plain errors map to Infrastructure.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind
	}
	return Infrastructure
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
