package core

// These errors are script-level errors: they travel through
// evaluation as Values, not as Go errors, until a host API hands them
// back.

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a script error.
//
// Kinds below FatalErrors are recoverable (a try/catch can handle
// them); kinds at or above it always end the running thread.
type ErrorKind int

const (
	OK ErrorKind = iota

	// Null is the "no value" state.  It propagates like an error
	// but compares equal to itself.
	Null

	DivisionByZero
	CyclicReference
	Busy
	NotFound
	User

	// Syntax is the first fatal kind.
	Syntax
	Aborted
	Timeout
	AsyncNotAllowed
	Internal
)

// FatalErrors is the lowest fatal ErrorKind.
const FatalErrors = Syntax

var kindNames = map[ErrorKind]string{
	OK:              "OK",
	Null:            "Null",
	DivisionByZero:  "DivisionByZero",
	CyclicReference: "CyclicReference",
	Busy:            "Busy",
	NotFound:        "NotFound",
	User:            "User",
	Syntax:          "Syntax",
	Aborted:         "Aborted",
	Timeout:         "Timeout",
	AsyncNotAllowed: "AsyncNotAllowed",
	Internal:        "Internal",
}

func (k ErrorKind) String() string {
	if s, have := kindNames[k]; have {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Fatal reports whether errors of this kind end a thread
// unconditionally.
func (k ErrorKind) Fatal() bool {
	return k >= FatalErrors
}

// ErrorDomain is reported by errordomain() for all engine errors.
const ErrorDomain = "ScriptError"

// Error is a script error with a source position.
//
// Pos is the byte offset into the source text, or -1 if unknown.
type Error struct {
	Kind ErrorKind
	Msg  string
	Pos  int
}

func (e *Error) Error() string {
	if e.Pos < 0 {
		return e.Kind.String() + ": " + e.Msg
	}
	return fmt.Sprintf("%s at %d: %s", e.Kind, e.Pos, e.Msg)
}

// NewError makes an Error with an unknown position.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
		Pos:  -1,
	}
}

// Errorf makes an Error at the given position.
func Errorf(kind ErrorKind, pos int, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
		Pos:  pos,
	}
}

// KindOf returns the ErrorKind of err if it's an *Error (perhaps
// wrapped).  Other non-nil errors are Internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// NoCode is returned when evaluating a context without source text.
var NoCode = errors.New("no code")
