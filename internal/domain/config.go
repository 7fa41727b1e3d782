package domain

// ScoringConfig holds the operating point of the verification engine.
type ScoringConfig struct {
	Threshold            float64
	CohortTopK           int
	MinEnrollmentSamples int
	MaxEnrollmentSamples int
	EmbeddingDim         int
	EmbeddingModel       string
	MinCohortSize        int     // below this a cohort neighbourhood is flagged low-confidence
	StdFloor             float64 // AS-Norm denominator floor
}

// DefaultScoringConfig returns the defaults tuned for 192-dim ECAPA-TDNN embeddings.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Threshold:            3.0,
		CohortTopK:           30,
		MinEnrollmentSamples: 3,
		MaxEnrollmentSamples: 10,
		EmbeddingDim:         192,
		EmbeddingModel:       "ecapa-tdnn-voxceleb",
		MinCohortSize:        5,
		StdFloor:             1e-6,
	}
}
