// Package ingestion defines the result and status types shared by every
// source and sink of an ingestion workflow.
package ingestion

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// StackTraceError describes a record that could not be processed
type StackTraceError struct {
	Name       string `json:"name"`
	Error      string `json:"error"`
	StackTrace string `json:"stackTrace,omitempty"`
}

// NewStackTraceError builds a StackTraceError for name. The stack trace is taken
// from err when it carries one, otherwise it is captured here.
func NewStackTraceError(name, message string, err error) *StackTraceError {
	if err == nil {
		err = pkgerrors.New(message)
	}
	if _, ok := err.(interface{ StackTrace() pkgerrors.StackTrace }); !ok {
		err = pkgerrors.WithStack(err)
	}
	return &StackTraceError{
		Name:       name,
		Error:      message,
		StackTrace: fmt.Sprintf("%+v", err),
	}
}

// Either holds exactly one of a value (Right) or a failure (Left)
type Either[T any] struct {
	Right *T
	Left  *StackTraceError
}

// Right wraps a successful value
func Right[T any](v T) Either[T] {
	return Either[T]{Right: &v}
}

// Left wraps a failure
func Left[T any](err *StackTraceError) Either[T] {
	return Either[T]{Left: err}
}

// IsLeft reports whether e holds a failure
func (e Either[T]) IsLeft() bool {
	return e.Left != nil
}

// Value returns the Right value as an untyped interface, or nil for a Left
func (e Either[T]) Value() any {
	if e.Right == nil {
		return nil
	}
	return *e.Right
}

// Failure returns the Left value
func (e Either[T]) Failure() *StackTraceError {
	return e.Left
}

// Result is the type-erased view of an Either used by sinks
type Result interface {
	Value() any
	Failure() *StackTraceError
}
