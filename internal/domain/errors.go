package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a malformed request the caller can correct.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidEmbedding signals a wrong-dimension or non-finite embedding.
	ErrInvalidEmbedding = fmt.Errorf("%w: invalid embedding", ErrInvalidInput)
	// ErrInvalidEnrollment signals an enrollment sample count outside the allowed range.
	ErrInvalidEnrollment = fmt.Errorf("%w: invalid enrollment", ErrInvalidInput)
	// ErrInvalidAudio signals audio the extraction boundary could not turn into an embedding.
	ErrInvalidAudio = errors.New("invalid audio")

	// ErrUserNotEnrolled signals that the user has no active voiceprint.
	ErrUserNotEnrolled = errors.New("user not enrolled")
	// ErrVoiceprintNotFound signals a missing voiceprint.
	ErrVoiceprintNotFound = errors.New("voiceprint not found")

	// ErrServiceUnavailable signals that a dependency is not ready; safe to retry later.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrEmptyCohort signals that the cohort population has no vectors.
	ErrEmptyCohort = fmt.Errorf("%w: cohort is empty", ErrServiceUnavailable)
	// ErrModelNotLoaded signals that no PLDA model is available to score with.
	ErrModelNotLoaded = fmt.Errorf("%w: plda model not loaded", ErrServiceUnavailable)
	// ErrDisabled signals that voiceprint verification is switched off.
	ErrDisabled = fmt.Errorf("%w: voiceprint verification disabled", ErrServiceUnavailable)
)

// DependencyError wraps ErrServiceUnavailable with the name of the dependency that failed.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrServiceUnavailable.Error(), e.Dependency, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *DependencyError) Unwrap() []error { return []error{ErrServiceUnavailable, e.Err} }

// NewDependencyError creates a service-unavailable error for the named dependency.
func NewDependencyError(dependency string, err error) error {
	return &DependencyError{Dependency: dependency, Err: err}
}
