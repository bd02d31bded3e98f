// Package errors defines the classified error taxonomy shared by the query
// engine, the executor, and the CLI. Every failure that crosses a component
// boundary is tagged with a kind that fixes its process exit code and whether
// the retry executor may re-attempt the operation.
package errors

import (
	"errors"
	"fmt"
)

// Kind tags a classified error with its failure category.
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindAuthentication Kind = "authentication"
	KindValidation     Kind = "validation"
	KindQueryExecution Kind = "query_execution"
	KindRateLimit      Kind = "rate_limit"
	KindTimeout        Kind = "timeout"
	KindNetwork        Kind = "network"
	KindNoData         Kind = "no_data_found"
	KindOutputIO       Kind = "output_io"
)

// kindTraits fixes the exit code and retryability per kind. NoData carries
// exit code 0: an empty result is a successful run, not a failure.
var kindTraits = map[Kind]struct {
	exitCode  int
	retryable bool
}{
	KindConfiguration:  {1, false},
	KindAuthentication: {2, false},
	KindValidation:     {1, false},
	KindQueryExecution: {3, false},
	KindRateLimit:      {3, true},
	KindTimeout:        {3, true},
	KindNetwork:        {3, true},
	KindNoData:         {0, false},
	KindOutputIO:       {4, false},
}

// ClassifiedError is an error annotated with its taxonomy kind, structured
// context for diagnostics, a fixed process exit code, and a retryability
// flag. Instances are immutable once handed to a caller.
type ClassifiedError struct {
	Kind      Kind
	Message   string
	Context   map[string]any
	ExitCode  int
	Retryable bool
	Err       error
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying native error, if any.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Is matches two classified errors by kind.
func (e *ClassifiedError) Is(target error) bool {
	var ce *ClassifiedError
	if errors.As(target, &ce) {
		return e.Kind == ce.Kind
	}
	return false
}

// New creates a classified error with the kind's fixed exit code and
// retryability.
func New(kind Kind, message string) *ClassifiedError {
	t := kindTraits[kind]
	return &ClassifiedError{
		Kind:      kind,
		Message:   message,
		Context:   make(map[string]any),
		ExitCode:  t.exitCode,
		Retryable: t.retryable,
	}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, a ...any) *ClassifiedError {
	return New(kind, fmt.Sprintf(format, a...))
}

// Wrap creates a classified error around a native error.
func Wrap(kind Kind, message string, err error) *ClassifiedError {
	ce := New(kind, message)
	ce.Err = err
	if err != nil {
		ce.Context["original_error"] = fmt.Sprintf("%T", err)
	}
	return ce
}

// WithContext attaches a single context value and returns the error.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsRetryable reports whether err is a classified error marked retryable.
// Unclassified errors are never retried.
func IsRetryable(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// ExitCode extracts the process exit code for err. Unclassified errors map
// to 1, nil to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.ExitCode
	}
	return 1
}

// KindOf returns the kind of a classified error, or empty for anything else.
func KindOf(err error) Kind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
