package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrTableNotFound   = fmt.Errorf("%w: statistics table", ErrNotFound)
	ErrSummaryNotFound = fmt.Errorf("%w: summary table", ErrNotFound)

	// Input errors
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptySequence     = fmt.Errorf("%w: empty sequence", ErrInvalidInput)
	ErrNonBinarySequence = fmt.Errorf("%w: sequence uses more than two symbols", ErrInvalidInput)
	ErrEmptySample       = fmt.Errorf("%w: sample is empty", ErrInvalidInput)
	ErrLengthOutOfRange  = fmt.Errorf("%w: sequence length out of range", ErrInvalidInput)
	ErrUnknownStatistic  = fmt.Errorf("%w: unknown statistic", ErrInvalidInput)

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Invariant errors indicate a bug in enumeration or keying, never a user error
	ErrInvariantViolation = errors.New("internal invariant violation")
)

// Error constructors with context
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

func NewStorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

func NewInvariantError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}
