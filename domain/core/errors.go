package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors: malformed or statistically unusable unit tables
	ErrInvalidInput   = errors.New("invalid input data")
	ErrNegativeCount  = fmt.Errorf("%w: negative count", ErrInvalidInput)
	ErrZeroTotal      = fmt.Errorf("%w: zero column total", ErrInvalidInput)
	ErrMissingColumn  = fmt.Errorf("%w: missing column", ErrInvalidInput)
	ErrLengthMismatch = fmt.Errorf("%w: column length mismatch", ErrInvalidInput)

	// Hierarchy errors: grouping keys that do not nest
	ErrInconsistentHierarchy = errors.New("inconsistent hierarchy")

	// Model errors: the variance-component optimizer failed
	ErrModelFit      = errors.New("model fit failed")
	ErrNonConvergent = fmt.Errorf("%w: optimizer did not converge", ErrModelFit)

	// Configuration errors: unsupported level names, empty hierarchies
	ErrConfiguration = errors.New("invalid configuration")
	ErrUnknownLevel  = fmt.Errorf("%w: unknown level", ErrConfiguration)
	ErrUnknownGroup  = fmt.Errorf("%w: unknown group", ErrConfiguration)
	ErrNoLevels      = fmt.Errorf("%w: no hierarchy levels", ErrConfiguration)
)

// Error constructors with context

func NewInvalidInputError(column string, reason string) error {
	return fmt.Errorf("%w: column %q: %s", ErrInvalidInput, column, reason)
}

func NewHierarchyError(lower, upper string, group string) error {
	return fmt.Errorf("%w: key %q varies within %q group %q", ErrInconsistentHierarchy, upper, lower, group)
}

func NewModelFitError(iterations int, reason string) error {
	return fmt.Errorf("%w after %d iterations: %s", ErrModelFit, iterations, reason)
}

func NewConfigurationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfiguration, field, reason)
}

// Error checking helpers

func IsInvalidInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsHierarchyError(err error) bool {
	return errors.Is(err, ErrInconsistentHierarchy)
}

func IsModelFitError(err error) bool {
	return errors.Is(err, ErrModelFit)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
