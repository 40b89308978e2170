package plugins

import (
	"errors"
	"fmt"
)

// ErrorClass classifies failures of the codec.
type ErrorClass string

const (
	// ErrorClassIO marks a filesystem fault outside the handled missing/empty cases.
	ErrorClassIO ErrorClass = "io"

	// ErrorClassEncoding marks a name that could not be translated by the TextCodec.
	ErrorClassEncoding ErrorClass = "encoding"
)

// ListError is a classified plugin list failure.
type ListError struct {
	// Class is the error classification.
	Class ErrorClass

	// Op is the operation that failed ("read" or "write").
	Op string

	// Path is the manifest path.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ListError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s %s", e.Class, e.Op, e.Path)
	}
	return fmt.Sprintf("[%s] %s %s: %v", e.Class, e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ListError) Unwrap() error {
	return e.Err
}

// Is matches another ListError of the same class.
func (e *ListError) Is(target error) bool {
	t, ok := target.(*ListError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

func newIOError(op, path string, err error) *ListError {
	return &ListError{Class: ErrorClassIO, Op: op, Path: path, Err: err}
}

func newEncodingError(op, path string, err error) *ListError {
	return &ListError{Class: ErrorClassEncoding, Op: op, Path: path, Err: err}
}

// IsIOError returns true if err is a filesystem fault raised by the codec.
func IsIOError(err error) bool {
	var e *ListError
	if errors.As(err, &e) {
		return e.Class == ErrorClassIO
	}
	return false
}

// IsEncodingError returns true if err is a text encoding fault raised by the codec.
func IsEncodingError(err error) bool {
	var e *ListError
	if errors.As(err, &e) {
		return e.Class == ErrorClassEncoding
	}
	return false
}
