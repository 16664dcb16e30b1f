package errors

import (
	"errors"
	"fmt"
)

// Error families. Every specific error below wraps exactly one of these so
// callers can branch on the family with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrExternalProcess = errors.New("external process failure")
	ErrIO              = errors.New("io failure")
)

var (
	ErrEmptyKey    = errors.New("empty key")
	ErrInvalidData = errors.New("invalid data type")

	ErrClientNotFound   = fmt.Errorf("client %w", ErrNotFound)
	ErrArtifactNotFound = fmt.Errorf("artifact %w", ErrNotFound)
	ErrScriptNotFound   = fmt.Errorf("trainer script %w", ErrNotFound)

	ErrInvalidArtifactName = fmt.Errorf("%w: invalid artifact name", ErrValidation)
	ErrInvalidSamples      = fmt.Errorf("%w: sample budget must be positive", ErrValidation)

	ErrTrainerExitNonZero = fmt.Errorf("%w: trainer exited with non-zero status", ErrExternalProcess)

	ErrMissingClientArtifact = fmt.Errorf("client model artifact %w", ErrNotFound)
	ErrAggregationFailed     = errors.New("aggregation failed")
)

// Wrap joins a sentinel with the underlying cause, keeping both matchable.
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}

	return fmt.Errorf("%w: %w", sentinel, cause)
}
