package verification

import (
	"context"

	domattempt "github.com/kailas-cloud/voicegate/internal/domain/attempt"
	domcohort "github.com/kailas-cloud/voicegate/internal/domain/cohort"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
	"github.com/kailas-cloud/voicegate/internal/plda"
)

// VoiceprintRepository persists enrolled voiceprints.
type VoiceprintRepository interface {
	Save(ctx context.Context, vp domvp.Voiceprint) error
	Get(ctx context.Context, id string) (domvp.Voiceprint, error)
	ListByUser(ctx context.Context, userID string) ([]domvp.Voiceprint, error)
	Delete(ctx context.Context, vp domvp.Voiceprint) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

// AttemptLog is the append-only verification history.
type AttemptLog interface {
	Append(ctx context.Context, attempts ...domattempt.Attempt) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domattempt.Attempt, error)
}

// CohortIndex returns the nearest background speakers of an embedding.
type CohortIndex interface {
	TopK(ctx context.Context, v embedding.Vector, k int) ([]domcohort.Neighbor, error)
}

// ScoringContext is the read-only state a decision is scored with.
// A nil Model means no PLDA model was loaded.
type ScoringContext struct {
	Model  *plda.Model
	Cohort CohortIndex
}
