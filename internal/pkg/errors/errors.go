package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation is a generic sentinel for malformed ingest tuples.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrConflict is the sentinel wrapped by ConflictError.
	ErrConflict = errors.New("conflict")
	// ErrTransientStore marks retryable store failures (connection drops, lock timeouts).
	ErrTransientStore = errors.New("transient store error")
	// ErrInvariantViolation marks non-retryable consistency failures that need operator attention.
	ErrInvariantViolation = errors.New("invariant violation")
)

// ConflictError reports a source key that maps to a different fingerprint
// than previously recorded. The offending tuple is kept for the caller.
type ConflictError struct {
	GroupKey    string
	SourceKey   string
	Fingerprint string
	Existing    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("source key %q in group %q maps to fingerprint %s but %s is recorded",
		e.SourceKey, e.GroupKey, e.Fingerprint, e.Existing)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvariantViolationError reports canonical state that fails to reconcile.
// It is surfaced, never auto-corrected.
type InvariantViolationError struct {
	Fingerprint string
	Detail      string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("canonical invariant violated for fingerprint %s: %s", e.Fingerprint, e.Detail)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// Transient wraps a store error as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransientStore, err)
}

// Retry runs fn up to attempts times, backing off between tries, and only
// retries errors marked ErrTransientStore. Other errors return immediately.
func Retry(attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrTransientStore) {
			return err
		}
		if i < attempts-1 {
			time.Sleep(backoff * time.Duration(i+1))
		}
	}
	return err
}
