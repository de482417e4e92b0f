package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// StorageError wraps a driver-level failure (I/O error, deadline exceeded,
// lost connection) as opposed to a business rejection.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(err error, op string) error {
	return &StorageError{Op: op, Err: err}
}

func (e StorageError) Error() string {
	if e.Err == nil {
		return "storage unavailable: " + e.Op
	}
	return "storage unavailable: " + e.Op + ": " + e.Err.Error()
}

func (e StorageError) Unwrap() error { return e.Err }

func IsStorageUnavailable(err error) bool {
	_, ok := errors.Cause(err).(*StorageError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
