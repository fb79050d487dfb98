package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every component. Validation errors are never
// retried; ErrConflict signals a lost CAS write; ErrNotFound covers
// operations where absence is meaningful (undoing with no transactions).
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("version conflict")

	ErrInvalidAmount          = errors.New("invalid amount")
	ErrZeroAmount             = errors.New("zero-amount transaction")
	ErrEmptyChoreName         = errors.New("empty chore name")
	ErrChoreNameTooLong       = errors.New("chore name too long (max 200 characters)")
	ErrInvalidChoreDate       = errors.New("invalid chore date")
	ErrNegativeSetting        = errors.New("settings values must be non-negative")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrNothingToUndo          = fmt.Errorf("no undoable state: %w", ErrNotFound)
)

// validationErrors lists every sentinel treated as malformed input by
// the boundary layer.
var validationErrors = []error{
	ErrInvalidAmount,
	ErrZeroAmount,
	ErrEmptyChoreName,
	ErrChoreNameTooLong,
	ErrInvalidChoreDate,
	ErrNegativeSetting,
	ErrInvalidTransactionType,
}

// IsValidation reports whether err is malformed input rather than a
// storage or concurrency failure.
func IsValidation(err error) bool {
	return ValidationSentinel(err) != nil
}

// ValidationSentinel returns the validation sentinel err wraps, or nil.
// Boundary layers use it to report the bare sentinel message without
// the internal wrapping.
func ValidationSentinel(err error) error {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return v
		}
	}
	return nil
}

// StorageError wraps a backend failure. Transient failures are safe for
// the caller to retry as a whole operation; fatal ones indicate a
// misconfigured backend.
type StorageError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *StorageError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("storage %s: %s error: %v", e.Op, kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err as a storage failure for operation op.
func NewStorageError(op string, transient bool, err error) *StorageError {
	return &StorageError{Op: op, Transient: transient, Err: err}
}

// IsTransient reports whether err is a storage failure worth retrying.
func IsTransient(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Transient
}
