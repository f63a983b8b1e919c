package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("notification not found")
	ErrForbidden = errors.New("notification belongs to another recipient")
)

// ValidationError rejects a malformed notification before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Retryable reports false: redelivering the same payload fails the same way.
func (e *ValidationError) Retryable() bool { return false }

// PersistenceError wraps a store failure. It aborts the operation that triggered it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("notification store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable reports true: store outages are usually transient.
func (e *PersistenceError) Retryable() bool { return true }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
