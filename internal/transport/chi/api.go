package chi

import "time"

// ErrorCode is a machine-readable error code returned in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeUnauthorized         ErrorCode = "unauthorized"
	ErrorCodeValidationFailed     ErrorCode = "validation_failed"
	ErrorCodeInvalidEmbedding     ErrorCode = "invalid_embedding"
	ErrorCodeInvalidEnrollment    ErrorCode = "invalid_enrollment"
	ErrorCodeInvalidAudio         ErrorCode = "invalid_audio"
	ErrorCodeUserNotEnrolled      ErrorCode = "user_not_enrolled"
	ErrorCodeVoiceprintNotFound   ErrorCode = "voiceprint_not_found"
	ErrorCodeVerificationDisabled ErrorCode = "verification_disabled"
	ErrorCodeEmptyCohort          ErrorCode = "empty_cohort"
	ErrorCodeModelNotLoaded       ErrorCode = "model_not_loaded"
	ErrorCodeServiceUnavailable   ErrorCode = "service_unavailable"
	ErrorCodeTimeout              ErrorCode = "timeout"
	ErrorCodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// EnrollRequest is the body of POST /v1/users/{user_id}/enroll.
type EnrollRequest struct {
	Embeddings [][]float32 `json:"embeddings"`
	Model      *string     `json:"model,omitempty"`
}

// EnrollAudioRequest is the body of POST /v1/users/{user_id}/enroll/audio.
type EnrollAudioRequest struct {
	Clips     []string `json:"clips"` // base64 WAV
	Encrypted *bool    `json:"encrypted,omitempty"`
}

// VerifyRequest is the body of POST /v1/users/{user_id}/verify.
type VerifyRequest struct {
	Embedding []float32 `json:"embedding"`
}

// VerifyAudioRequest is the body of POST /v1/users/{user_id}/verify/audio.
type VerifyAudioRequest struct {
	Clip      string `json:"clip"` // base64 WAV
	Encrypted *bool  `json:"encrypted,omitempty"`
}

// BatchVerifyRequest is the body of POST /v1/users/{user_id}/verify/batch.
type BatchVerifyRequest struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// PatchVoiceprintRequest is the body of PATCH /v1/voiceprints/{voiceprint_id}.
type PatchVoiceprintRequest struct {
	IsActive *bool `json:"is_active"`
}

// EnrollResponse is returned by the enroll endpoints.
type EnrollResponse struct {
	VoiceprintID string    `json:"voiceprint_id"`
	UserID       string    `json:"user_id"`
	NumSamples   int       `json:"num_samples"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
}

// CohortStats describes the two AS-Norm cohort neighbourhoods.
type CohortStats struct {
	EnrollMean    float64 `json:"enroll_mean"`
	EnrollStd     float64 `json:"enroll_std"`
	EnrollSize    int     `json:"enroll_size"`
	TestMean      float64 `json:"test_mean"`
	TestStd       float64 `json:"test_std"`
	TestSize      int     `json:"test_size"`
	LowConfidence bool    `json:"low_confidence"`
}

// VerificationResult is one verification decision.
type VerificationResult struct {
	Verified     bool        `json:"verified"`
	Score        float64     `json:"score"`
	RawScore     float64     `json:"raw_score"`
	Threshold    float64     `json:"threshold"`
	VoiceprintID string      `json:"voiceprint_id"`
	AttemptID    string      `json:"attempt_id,omitempty"`
	Cohort       CohortStats `json:"cohort_stats"`
}

// BatchResultItem is the outcome of one probe in a batch.
type BatchResultItem struct {
	Index  int                 `json:"index"`
	Status string              `json:"status"`
	Result *VerificationResult `json:"result,omitempty"`
	Error  *ErrorResponse      `json:"error,omitempty"`
}

// BatchVerifyResponse is returned by POST /v1/users/{user_id}/verify/batch.
type BatchVerifyResponse struct {
	Results       []BatchResultItem `json:"results"`
	VerifiedCount int               `json:"verified_count"`
}

// Voiceprint is the public view of a stored voiceprint. The centroid is never exposed.
type Voiceprint struct {
	VoiceprintID string    `json:"voiceprint_id"`
	UserID       string    `json:"user_id"`
	Model        string    `json:"model"`
	NumSamples   int       `json:"num_samples"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Attempt is one entry of a user's verification history.
type Attempt struct {
	AttemptID       string      `json:"attempt_id"`
	UserID          string      `json:"user_id"`
	VoiceprintID    string      `json:"voiceprint_id,omitempty"`
	ProbeRef        string      `json:"probe_ref,omitempty"`
	RawScore        float64     `json:"raw_score"`
	NormalizedScore float64     `json:"normalized_score"`
	Threshold       float64     `json:"threshold"`
	Verified        bool        `json:"verified"`
	Cohort          CohortStats `json:"cohort_stats"`
	Error           string      `json:"error,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	Collections []string          `json:"collections"`
	Version     string            `json:"version"`
	Commit      string            `json:"commit"`
}

// HistoryParams are the query parameters of GET /v1/users/{user_id}/history.
type HistoryParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}
