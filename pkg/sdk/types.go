package voicegate

import (
	"time"

	domattempt "github.com/kailas-cloud/voicegate/internal/domain/attempt"
	dombatch "github.com/kailas-cloud/voicegate/internal/domain/batch"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
	verificationuc "github.com/kailas-cloud/voicegate/internal/usecase/verification"
)

// Voiceprint is an enrolled speaker model. The centroid itself is never exposed.
type Voiceprint struct {
	ID         string
	UserID     string
	Model      string
	NumSamples int
	Active     bool
	CreatedAt  time.Time
}

// CohortStats describes the AS-Norm neighbourhoods behind a score.
type CohortStats struct {
	EnrollMean    float64
	EnrollStd     float64
	EnrollSize    int
	TestMean      float64
	TestStd       float64
	TestSize      int
	LowConfidence bool
}

// VerificationResult is the outcome of one probe.
type VerificationResult struct {
	Verified     bool
	Score        float64 // normalised
	RawScore     float64 // PLDA LLR
	Threshold    float64
	VoiceprintID string
	AttemptID    string
	Cohort       CohortStats
}

// BatchItem is one probe of a batch, in request order. Err is set when the probe failed.
type BatchItem struct {
	Index  int
	Result VerificationResult
	Err    error
}

// BatchResult holds per-probe outcomes.
type BatchResult struct {
	Items         []BatchItem
	VerifiedCount int
}

// Attempt is one entry of a user's verification history.
type Attempt struct {
	ID              string
	UserID          string
	VoiceprintID    string
	ProbeRef        string
	RawScore        float64
	NormalizedScore float64
	Threshold       float64
	Verified        bool
	Cohort          CohortStats
	Error           string
	CreatedAt       time.Time
}

func fromVoiceprint(vp *domvp.Voiceprint) Voiceprint {
	return Voiceprint{
		ID:         vp.ID(),
		UserID:     vp.UserID(),
		Model:      vp.Model(),
		NumSamples: vp.NumSamples(),
		Active:     vp.IsActive(),
		CreatedAt:  vp.CreatedAt(),
	}
}

func fromStats(s domattempt.CohortStatistics) CohortStats {
	return CohortStats{
		EnrollMean:    s.EnrollMean,
		EnrollStd:     s.EnrollStd,
		EnrollSize:    s.EnrollSize,
		TestMean:      s.TestMean,
		TestStd:       s.TestStd,
		TestSize:      s.TestSize,
		LowConfidence: s.LowConfidence,
	}
}

func fromResult(r verificationuc.Result) VerificationResult {
	return VerificationResult{
		Verified:     r.Verified,
		Score:        r.Score,
		RawScore:     r.RawScore,
		Threshold:    r.Threshold,
		VoiceprintID: r.VoiceprintID,
		AttemptID:    r.AttemptID,
		Cohort:       fromStats(r.Stats),
	}
}

func fromBatch(b verificationuc.BatchResult) BatchResult {
	out := BatchResult{Items: make([]BatchItem, len(b.Results)), VerifiedCount: b.VerifiedCount}
	for i, r := range b.Results {
		item := BatchItem{Index: r.Index()}
		if r.Status() == dombatch.StatusOK {
			item.Result = fromResult(r.Value())
		} else {
			item.Err = r.Err()
		}
		out.Items[i] = item
	}
	return out
}

func fromAttempt(a *domattempt.Attempt) Attempt {
	return Attempt{
		ID:              a.ID(),
		UserID:          a.UserID(),
		VoiceprintID:    a.VoiceprintID(),
		ProbeRef:        a.ProbeRef(),
		RawScore:        a.RawScore(),
		NormalizedScore: a.NormalizedScore(),
		Threshold:       a.Threshold(),
		Verified:        a.Verified(),
		Cohort:          fromStats(a.Stats()),
		Error:           a.Err(),
		CreatedAt:       a.CreatedAt(),
	}
}
