package pkg

import (
	"errors"
	"fmt"
)

type ErrorCode uint

const (
	ErrUnknown ErrorCode = iota
	ErrInternal
	ErrStorage
	ErrNotFound
	ErrBadParamInput
)

func (c ErrorCode) String() string {
	switch c {
	case ErrInternal:
		return "internal"
	case ErrStorage:
		return "storage"
	case ErrNotFound:
		return "not found"
	case ErrBadParamInput:
		return "bad param input"
	default:
		return "unknown"
	}
}

// Error carries a code so callers (cmd, tests) can tell storage failures apart from bad input.
type Error struct {
	orig error
	msg  string
	code ErrorCode
}

func (e *Error) Error() string {
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.orig
}

func (e *Error) Code() ErrorCode {
	return e.code
}

func WrapErrorf(orig error, code ErrorCode, format string, a ...interface{}) error {
	return &Error{
		code: code,
		orig: orig,
		msg:  fmt.Sprintf(format, a...),
	}
}

func NewErrorf(code ErrorCode, format string, a ...interface{}) error {
	return WrapErrorf(nil, code, format, a...)
}

// CodeOf returns the code of the first *Error in err's chain, ErrUnknown otherwise.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ErrUnknown
}
