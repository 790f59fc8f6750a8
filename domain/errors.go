package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the task does not exist or is not visible to
	// the caller.
	ErrNotFound = errors.New("task not found")
	// ErrForbidden indicates an attempt to act on another owner's data.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports a user-correctable field problem.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransientError wraps a network or store failure that the caller may
// recover from by rolling back optimistic state. It is never retried
// automatically.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
