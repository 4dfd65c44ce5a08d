// Package errors provides the taxonomy of errors the engine raises at setup
// and tick time (spec §7).
package errors

import (
	"errors"
	"fmt"

	"github.com/moogar0880/problems"
)

// ErrorCode identifies a specific error kind.
type ErrorCode int

const (
	ErrUnknown ErrorCode = iota

	// Setup-time, fail-fast: abort Procedure.Setup.
	ErrAttributeError
	ErrDuplicateName
	ErrCyclicInclude

	// Tick-time: never escape Tick; the instruction returns ExecutionStatus
	// Failure instead. Only some instructions (e.g. Copy) also log the error
	// to the UserInterface; most, and a failed InitImpl in Base.Tick, return
	// Failure without a log message.
	ErrTypeMismatch
	ErrVariableUnavailable
	ErrOutOfRange
	ErrCancellation
	ErrUserRejection
)

func (c ErrorCode) String() string {
	switch c {
	case ErrAttributeError:
		return "AttributeError"
	case ErrDuplicateName:
		return "DuplicateName"
	case ErrCyclicInclude:
		return "CyclicInclude"
	case ErrTypeMismatch:
		return "TypeMismatch"
	case ErrVariableUnavailable:
		return "VariableUnavailable"
	case ErrOutOfRange:
		return "OutOfRange"
	case ErrCancellation:
		return "CancellationError"
	case ErrUserRejection:
		return "UserRejection"
	default:
		return "Unknown"
	}
}

// Error is the engine's domain-specific error with context.
type Error struct {
	Code    ErrorCode
	Message string
	Op      string
	Cause   error
	Context map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error.
func New(code ErrorCode, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap attaches a code and op to an underlying cause.
func Wrap(err error, code ErrorCode, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message, Cause: err}
}

// WithContext returns a copy of err with additional context merged in.
func WithContext(err *Error, context map[string]interface{}) *Error {
	merged := make(map[string]interface{}, len(err.Context)+len(context))
	for k, v := range err.Context {
		merged[k] = v
	}
	for k, v := range context {
		merged[k] = v
	}
	return &Error{Code: err.Code, Op: err.Op, Message: err.Message, Cause: err.Cause, Context: merged}
}

// Code extracts the ErrorCode from err, or ErrUnknown if err is not (and does
// not wrap) an *Error.
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

// ToProblem renders err as an RFC 7807 problem for HTTP-facing surfaces.
// runner/httpstatus does not use it.
func ToProblem(err error, status int) *problems.Problem {
	var e *Error
	problemType := "engine_error"
	detail := err.Error()
	if errors.As(err, &e) {
		problemType = e.Code.String()
		detail = e.Message
		if e.Cause != nil {
			detail = fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
	}
	return problems.NewStatusProblem(status).
		WithType(problemType).
		WithDetail(detail)
}
