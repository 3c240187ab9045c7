// Package errdef defines the error kinds shared across the store, the
// codecs and the translator. Callers inspect kinds with the IsX helpers
// rather than comparing error values.
package errdef

import (
	"errors"
	"fmt"
)

// NewValidation creates an error for a field value that is present but not acceptable.
func NewValidation(format string, a ...any) error {
	return validation{fmt.Errorf(format, a...)}
}

type validation struct{ error }

// IsValidation returns true for validation and missing field errors.
func IsValidation(err error) bool {
	var e validation
	if errors.As(err, &e) {
		return true
	}
	return IsMissingField(err)
}

// NewMissingField creates an error for a required field that was not supplied.
func NewMissingField(format string, a ...any) error {
	return missingField{fmt.Errorf(format, a...)}
}

type missingField struct{ error }

func IsMissingField(err error) bool {
	var e missingField
	return errors.As(err, &e)
}

// NewNotFound creates an error representing a resource that could not be found.
func NewNotFound(format string, a ...any) error {
	return notFound{fmt.Errorf(format, a...)}
}

type notFound struct{ error }

// IsNotFound returns true if err is an error representing a resource that could not be found and false otherwise.
func IsNotFound(err error) bool {
	var e notFound
	return errors.As(err, &e)
}

func NewUnsupportedFormat(format string, a ...any) error {
	return unsupportedFormat{fmt.Errorf(format, a...)}
}

type unsupportedFormat struct{ error }

func IsUnsupportedFormat(err error) bool {
	var e unsupportedFormat
	return errors.As(err, &e)
}

// NewStorage wraps a failure of the underlying database or file system.
// Storage errors are fatal for the operation and are never retried.
func NewStorage(format string, a ...any) error {
	return storage{fmt.Errorf(format, a...)}
}

type storage struct{ error }

func IsStorage(err error) bool {
	var e storage
	return errors.As(err, &e)
}

// NewParse creates an error for date or recurrence text that could not be parsed.
func NewParse(format string, a ...any) error {
	return parse{fmt.Errorf(format, a...)}
}

type parse struct{ error }

func IsParse(err error) bool {
	var e parse
	return errors.As(err, &e)
}
