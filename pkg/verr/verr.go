// Package verr defines the error-kind taxonomy shared by every layer of the
// engine: parser and compiler failures, interpreter faults, and dispatch
// errors all surface as a *Error with a fixed Kind discriminant rather than
// as ad hoc strings or panics.
package verr

import (
	"errors"
	"fmt"
)

// Kind discriminates the fixed set of error categories the engine can
// raise. REPL and non-REPL callers both switch on Kind rather than on
// error text.
type Kind int

const (
	Syntax Kind = iota
	WrongType
	OutOfRange
	NotFound
	StackUnderflow
	StackOverflow
	IndefiniteOperation
	UndefinedOperation
	Failed
)

func (k Kind) String() string {
	switch k {
	case Syntax:
		return "Syntax"
	case WrongType:
		return "WrongType"
	case OutOfRange:
		return "OutOfRange"
	case NotFound:
		return "NotFound"
	case StackUnderflow:
		return "StackUnderflow"
	case StackOverflow:
		return "StackOverflow"
	case IndefiniteOperation:
		return "IndefiniteOperation"
	case UndefinedOperation:
		return "UndefinedOperation"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Error makes a bare Kind usable as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// Error is the concrete error value raised throughout the engine. Got and
// Want are optional type-name annotations used to build the REPL-facing
// message; non-REPL callers should switch on Kind and ignore them.
type Error struct {
	Kind Kind
	Msg  string
	Got  string
	Want string
}

func (e *Error) Error() string {
	switch {
	case e.Got != "" && e.Want != "":
		return fmt.Sprintf("%s: %s (got %s, want %s)", e.Kind, e.Msg, e.Got, e.Want)
	case e.Got != "":
		return fmt.Sprintf("%s: %s (got %s)", e.Kind, e.Msg, e.Got)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

// Is lets errors.Is match on Kind alone, so callers can write
// errors.Is(err, verr.NotFound) without constructing a full *Error.
func (e *Error) Is(target error) bool {
	if k, ok := any(target).(Kind); ok {
		return e.Kind == k
	}
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(k Kind, msg string) *Error { return &Error{Kind: k, Msg: msg} }

func Newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func WrongTypef(got, want, msg string) *Error {
	return &Error{Kind: WrongType, Msg: msg, Got: got, Want: want}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

func OutOfRangef(format string, args ...any) *Error {
	return &Error{Kind: OutOfRange, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of err if it (or something it wraps) is a
// *Error, and Failed otherwise — the fallback the interpreter and audio
// callback use when converting an unexpected fault into the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Failed
}
