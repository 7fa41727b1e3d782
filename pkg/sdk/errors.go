package voicegate

import "github.com/kailas-cloud/voicegate/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput       = domain.ErrInvalidInput
	ErrInvalidEmbedding   = domain.ErrInvalidEmbedding
	ErrInvalidEnrollment  = domain.ErrInvalidEnrollment
	ErrUserNotEnrolled    = domain.ErrUserNotEnrolled
	ErrVoiceprintNotFound = domain.ErrVoiceprintNotFound
	ErrServiceUnavailable = domain.ErrServiceUnavailable
	ErrEmptyCohort        = domain.ErrEmptyCohort
	ErrModelNotLoaded     = domain.ErrModelNotLoaded
	ErrDisabled           = domain.ErrDisabled
)
