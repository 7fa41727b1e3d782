package attempt

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
)

// CohortStatistics summarises the PLDA scores of both sides against their cohort neighbourhoods.
type CohortStatistics struct {
	EnrollMean    float64
	EnrollStd     float64
	EnrollSize    int
	TestMean      float64
	TestStd       float64
	TestSize      int
	LowConfidence bool
}

// Size returns the smaller of the two neighbourhood sizes.
func (s CohortStatistics) Size() int { return min(s.EnrollSize, s.TestSize) }

// Attempt is one recorded verification decision (append-only, immutable).
type Attempt struct {
	id              string
	userID          string
	voiceprintID    string
	probeRef        string
	rawScore        float64
	normalizedScore float64
	threshold       float64
	verified        bool
	stats           CohortStatistics
	errMsg          string
	createdAt       time.Time
}

// Record is the flat form of an Attempt used for storage hydration.
type Record struct {
	ID              string
	UserID          string
	VoiceprintID    string
	ProbeRef        string
	RawScore        float64
	NormalizedScore float64
	Threshold       float64
	Verified        bool
	Stats           CohortStatistics
	Error           string
	CreatedAt       time.Time
}

// NewDecision records a completed decision.
func NewDecision(
	userID, voiceprintID, probeRef string,
	raw, normalized, threshold float64, verified bool,
	stats CohortStatistics, now time.Time,
) Attempt {
	return Attempt{
		id:              uuid.NewString(),
		userID:          userID,
		voiceprintID:    voiceprintID,
		probeRef:        probeRef,
		rawScore:        raw,
		normalizedScore: normalized,
		threshold:       threshold,
		verified:        verified,
		stats:           stats,
		createdAt:       now.UTC().Truncate(time.Microsecond),
	}
}

// NewFailure records a probe that could not be scored. It is never verified.
func NewFailure(userID, voiceprintID, probeRef string, threshold float64, cause error, now time.Time) Attempt {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return Attempt{
		id:           uuid.NewString(),
		userID:       userID,
		voiceprintID: voiceprintID,
		probeRef:     probeRef,
		threshold:    threshold,
		errMsg:       msg,
		createdAt:    now.UTC().Truncate(time.Microsecond),
	}
}

// Reconstruct creates an Attempt from a stored record.
func Reconstruct(r Record) Attempt {
	return Attempt{
		id: r.ID, userID: r.UserID, voiceprintID: r.VoiceprintID, probeRef: r.ProbeRef,
		rawScore: r.RawScore, normalizedScore: r.NormalizedScore, threshold: r.Threshold,
		verified: r.Verified, stats: r.Stats, errMsg: r.Error, createdAt: r.CreatedAt,
	}
}

// Record returns the flat form of the attempt.
func (a *Attempt) Record() Record {
	return Record{
		ID: a.id, UserID: a.userID, VoiceprintID: a.voiceprintID, ProbeRef: a.probeRef,
		RawScore: a.rawScore, NormalizedScore: a.normalizedScore, Threshold: a.threshold,
		Verified: a.verified, Stats: a.stats, Error: a.errMsg, CreatedAt: a.createdAt,
	}
}

// ID returns the attempt identifier.
func (a *Attempt) ID() string { return a.id }

// UserID returns the user the probe claimed to be.
func (a *Attempt) UserID() string { return a.userID }

// VoiceprintID returns the voiceprint the probe was scored against.
func (a *Attempt) VoiceprintID() string { return a.voiceprintID }

// ProbeRef returns the content reference of the probe embedding.
func (a *Attempt) ProbeRef() string { return a.probeRef }

// RawScore returns the raw PLDA log-likelihood ratio.
func (a *Attempt) RawScore() float64 { return a.rawScore }

// NormalizedScore returns the AS-Norm score compared against the threshold.
func (a *Attempt) NormalizedScore() float64 { return a.normalizedScore }

// Threshold returns the operating point in effect at decision time.
func (a *Attempt) Threshold() float64 { return a.threshold }

// Verified reports the decision.
func (a *Attempt) Verified() bool { return a.verified }

// Stats returns the cohort statistics used for normalisation.
func (a *Attempt) Stats() CohortStatistics { return a.stats }

// Err returns the failure message of an unscored probe, empty for decisions.
func (a *Attempt) Err() string { return a.errMsg }

// CreatedAt returns the decision timestamp (UTC).
func (a *Attempt) CreatedAt() time.Time { return a.createdAt }

// ProbeRef derives a stable content reference for a probe embedding.
func ProbeRef(v embedding.Vector) string {
	buf := make([]byte, v.Dim()*4)
	for i, f := range v.Values() {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	h := sha256.Sum256(buf)
	return hex.EncodeToString(h[:])
}
