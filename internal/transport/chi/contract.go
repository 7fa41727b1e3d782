package chi

import (
	"context"

	domattempt "github.com/kailas-cloud/voicegate/internal/domain/attempt"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
	healthuc "github.com/kailas-cloud/voicegate/internal/usecase/health"
	verificationuc "github.com/kailas-cloud/voicegate/internal/usecase/verification"
)

// VerificationService enrolls users, verifies probes and manages voiceprints.
type VerificationService interface {
	Enroll(ctx context.Context, userID string, samples [][]float32, model string) (domvp.Voiceprint, error)
	Verify(ctx context.Context, userID string, probe []float32) (verificationuc.Result, error)
	VerifyBatch(ctx context.Context, userID string, probes [][]float32) (verificationuc.BatchResult, error)
	ListVoiceprints(ctx context.Context, userID string) ([]domvp.Voiceprint, error)
	SetActive(ctx context.Context, id string, active bool) (domvp.Voiceprint, error)
	DeleteVoiceprint(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, userID string) (int, error)
	History(ctx context.Context, userID string, limit int) ([]domattempt.Attempt, error)
}

// ExtractionService turns uploaded clips into embeddings.
type ExtractionService interface {
	Embed(ctx context.Context, clip []byte, encrypted bool) ([]float32, error)
	EmbedAll(ctx context.Context, clips [][]byte, encrypted bool) ([][]float32, error)
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}
