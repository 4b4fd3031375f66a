package docsift

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrIO     ErrorKind = "io"
	ErrSQL    ErrorKind = "sql"
	ErrSchema ErrorKind = "schema"
	ErrNumber ErrorKind = "invalid_number"
	ErrBool   ErrorKind = "invalid_bool"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func SchemaError(msg string) *Error {
	return &Error{Kind: ErrSchema, Message: msg}
}

// NumberError reports an atom that was required to parse as an integer and
// did not.
func NumberError(field, atom string, cause error) *Error {
	return &Error{Kind: ErrNumber, Field: field, Message: fmt.Sprintf("invalid number %q", atom), Cause: cause}
}

// BoolError reports an atom that was required to parse as a boolean and did
// not.
func BoolError(field, atom string) *Error {
	return &Error{Kind: ErrBool, Field: field, Message: fmt.Sprintf("invalid boolean %q", atom)}
}

func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
