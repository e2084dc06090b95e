package core

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Match with errors.Is against any error returned by
// the ledger or aggregation services.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidMagnitude    = errors.New("invalid magnitude")
	ErrInvalidKind         = errors.New("invalid movement kind")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrValidation          = errors.New("validation failed")
)

// LedgerError pairs an error kind with a human-readable reason suitable for
// form-style feedback. Err optionally carries the underlying cause.
type LedgerError struct {
	Kind   error
	Reason string
	Err    error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is makes errors.Is(err, ErrNotFound) and friends work.
func (e *LedgerError) Is(target error) bool {
	return e.Kind == target
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func newLedgerError(kind error, format string, args ...any) *LedgerError {
	return &LedgerError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func itemNotFound(itemID int64) *LedgerError {
	return newLedgerError(ErrNotFound, "item %d does not exist", itemID)
}

func conflict(cause error, format string, args ...any) *LedgerError {
	e := newLedgerError(ErrConcurrencyConflict, format, args...)
	e.Err = cause
	return e
}

// Reason returns the human-readable reason of a LedgerError, or err.Error()
// for anything else.
func Reason(err error) string {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsRetryable reports whether err signals a transient race that a retry may resolve.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
