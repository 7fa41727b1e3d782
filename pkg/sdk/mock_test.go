package voicegate

import (
	"context"

	domattempt "github.com/kailas-cloud/voicegate/internal/domain/attempt"
	domcohort "github.com/kailas-cloud/voicegate/internal/domain/cohort"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
	healthuc "github.com/kailas-cloud/voicegate/internal/usecase/health"
	verificationuc "github.com/kailas-cloud/voicegate/internal/usecase/verification"
)

// --- verificationUseCase mock ---

type mockVerificationUC struct {
	enrollFn           func(ctx context.Context, userID string, samples [][]float32, model string) (domvp.Voiceprint, error)
	verifyFn           func(ctx context.Context, userID string, probe []float32) (verificationuc.Result, error)
	verifyBatchFn      func(ctx context.Context, userID string, probes [][]float32) (verificationuc.BatchResult, error)
	listVoiceprintsFn  func(ctx context.Context, userID string) ([]domvp.Voiceprint, error)
	setActiveFn        func(ctx context.Context, id string, active bool) (domvp.Voiceprint, error)
	deleteVoiceprintFn func(ctx context.Context, id string) error
	deleteUserFn       func(ctx context.Context, userID string) (int, error)
	historyFn          func(ctx context.Context, userID string, limit int) ([]domattempt.Attempt, error)
}

func (m *mockVerificationUC) Enroll(
	ctx context.Context, userID string, samples [][]float32, model string,
) (domvp.Voiceprint, error) {
	return m.enrollFn(ctx, userID, samples, model)
}

func (m *mockVerificationUC) Verify(ctx context.Context, userID string, probe []float32) (verificationuc.Result, error) {
	return m.verifyFn(ctx, userID, probe)
}

func (m *mockVerificationUC) VerifyBatch(
	ctx context.Context, userID string, probes [][]float32,
) (verificationuc.BatchResult, error) {
	return m.verifyBatchFn(ctx, userID, probes)
}

func (m *mockVerificationUC) ListVoiceprints(ctx context.Context, userID string) ([]domvp.Voiceprint, error) {
	return m.listVoiceprintsFn(ctx, userID)
}

func (m *mockVerificationUC) SetActive(ctx context.Context, id string, active bool) (domvp.Voiceprint, error) {
	return m.setActiveFn(ctx, id, active)
}

func (m *mockVerificationUC) DeleteVoiceprint(ctx context.Context, id string) error {
	return m.deleteVoiceprintFn(ctx, id)
}

func (m *mockVerificationUC) DeleteUser(ctx context.Context, userID string) (int, error) {
	return m.deleteUserFn(ctx, userID)
}

func (m *mockVerificationUC) History(ctx context.Context, userID string, limit int) ([]domattempt.Attempt, error) {
	return m.historyFn(ctx, userID, limit)
}

// --- cohortUseCase mock ---

type mockCohortUC struct {
	seedFn  func(ctx context.Context, entries []domcohort.Entry) (int, error)
	countFn func(ctx context.Context) (int, error)
}

func (m *mockCohortUC) Seed(ctx context.Context, entries []domcohort.Entry) (int, error) {
	return m.seedFn(ctx, entries)
}

func (m *mockCohortUC) Count(ctx context.Context) (int, error) {
	return m.countFn(ctx)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report {
	return m.report
}
