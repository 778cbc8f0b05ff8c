// Package errors provides the error taxonomy for a split run.
//
// Every failure that reaches the CLI is (or wraps) an *Error carrying a Code
// plus enough context to act on it without re-running with debug logs:
//
//	var splitErr *errors.Error
//	if errors.As(err, &splitErr) {
//	    fmt.Println(splitErr.Code, splitErr.BookID, splitErr.Segment)
//	}
//
//	if errors.Is(err, errors.ErrNotFound) {
//	    // the metadata service has no such book
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error kind.
type Code string

// Error codes used throughout a split run.
const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeInvalidMetadata    Code = "INVALID_METADATA"
	CodeEncoding           Code = "ENCODING"
	CodeFilesystem         Code = "FILESYSTEM"
	CodeTimeout            Code = "TIMEOUT"
)

// ExitCode returns the process exit status for an error code.
func (c Code) ExitCode() int {
	switch c {
	case CodeInvalidMetadata:
		return 2
	case CodeNotFound:
		return 3
	case CodeServiceUnavailable:
		return 4
	case CodeTimeout:
		return 5
	case CodeEncoding:
		return 6
	case CodeFilesystem:
		return 7
	default:
		return 1
	}
}

// Sentinels for errors.Is matching. They match any *Error with the same Code.
var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrServiceUnavailable = &Error{Code: CodeServiceUnavailable, Message: "service unavailable"}
	ErrInvalidMetadata    = &Error{Code: CodeInvalidMetadata, Message: "invalid metadata"}
	ErrEncoding           = &Error{Code: CodeEncoding, Message: "encoding failed"}
	ErrFilesystem         = &Error{Code: CodeFilesystem, Message: "filesystem error"}
	ErrTimeout            = &Error{Code: CodeTimeout, Message: "timed out"}
)

// Error is a split-run error with a code and the context it happened in.
type Error struct {
	Code    Code
	Message string
	// BookID is the ASIN the run was working on, if known.
	BookID string
	// Segment is the 1-based segment index, 0 when not segment-scoped.
	Segment int
	// Detail holds diagnostic output such as tool stderr or a response excerpt.
	Detail string
	cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(e.Code)))
	if e.BookID != "" {
		fmt.Fprintf(&b, " [book %s]", e.BookID)
	}
	if e.Segment > 0 {
		fmt.Fprintf(&b, " [segment %d]", e.Segment)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// ExitCode returns the process exit status for this error.
func (e *Error) ExitCode() int {
	return e.Code.ExitCode()
}

// WithBook returns a copy of the error scoped to a book.
func (e *Error) WithBook(bookID string) *Error {
	c := *e
	c.BookID = bookID
	return &c
}

// WithSegment returns a copy of the error scoped to a segment.
func (e *Error) WithSegment(index int) *Error {
	c := *e
	c.Segment = index
	return &c
}

// WithDetail returns a copy of the error with diagnostic detail attached.
func (e *Error) WithDetail(detail string) *Error {
	c := *e
	c.Detail = detail
	return &c
}

func newError(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// NotFound creates a NOT_FOUND error.
func NotFound(cause error, format string, args ...any) *Error {
	return newError(CodeNotFound, cause, format, args...)
}

// ServiceUnavailable creates a SERVICE_UNAVAILABLE error.
func ServiceUnavailable(cause error, format string, args ...any) *Error {
	return newError(CodeServiceUnavailable, cause, format, args...)
}

// InvalidMetadata creates an INVALID_METADATA error.
func InvalidMetadata(cause error, format string, args ...any) *Error {
	return newError(CodeInvalidMetadata, cause, format, args...)
}

// Encoding creates an ENCODING error.
func Encoding(cause error, format string, args ...any) *Error {
	return newError(CodeEncoding, cause, format, args...)
}

// Filesystem creates a FILESYSTEM error.
func Filesystem(cause error, format string, args ...any) *Error {
	return newError(CodeFilesystem, cause, format, args...)
}

// Timeout creates a TIMEOUT error.
func Timeout(cause error, format string, args ...any) *Error {
	return newError(CodeTimeout, cause, format, args...)
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ExitCode returns the exit status for any error: 0 for nil, the code's
// status for an *Error, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return CodeOf(err).ExitCode()
}
