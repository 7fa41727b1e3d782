package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/voicegate/internal/domain"
	domattempt "github.com/kailas-cloud/voicegate/internal/domain/attempt"
	dombatch "github.com/kailas-cloud/voicegate/internal/domain/batch"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
	"github.com/kailas-cloud/voicegate/internal/logger"
	"github.com/kailas-cloud/voicegate/internal/metrics"
	"github.com/kailas-cloud/voicegate/internal/plda"
)

// MaxBatchSize is the maximum number of probes per batch verification.
const MaxBatchSize = 50

// MaxHistoryLimit caps a single history read.
const MaxHistoryLimit = 500

const defaultBatchConcurrency = 4

// Result is the outcome of one verification decision.
type Result struct {
	Verified     bool
	Score        float64
	RawScore     float64
	Threshold    float64
	Stats        domattempt.CohortStatistics
	VoiceprintID string
	AttemptID    string
}

// BatchResult holds per-probe outcomes in request order.
type BatchResult struct {
	Results       []dombatch.Result[Result]
	VerifiedCount int
}

// Service orchestrates enrollment, verification and voiceprint management.
type Service struct {
	voiceprints VoiceprintRepository
	attempts    AttemptLog
	scoring     ScoringContext
	cfg         domain.ScoringConfig
	norm        Normalizer
	locks       *userLocks
	enabled     bool
	concurrency int
	now         func() time.Time
}

// New creates a verification service.
func New(
	voiceprints VoiceprintRepository, attempts AttemptLog,
	scoring ScoringContext, cfg domain.ScoringConfig,
) *Service {
	return &Service{
		voiceprints: voiceprints,
		attempts:    attempts,
		scoring:     scoring,
		cfg:         cfg,
		norm:        Normalizer{StdFloor: cfg.StdFloor, MinCohortSize: cfg.MinCohortSize},
		locks:       newUserLocks(),
		enabled:     true,
		concurrency: defaultBatchConcurrency,
		now:         time.Now,
	}
}

// WithEnabled switches the whole voiceprint surface on or off.
func (s *Service) WithEnabled(enabled bool) *Service {
	s.enabled = enabled
	return s
}

// WithBatchConcurrency bounds how many probes of a batch are scored at once.
func (s *Service) WithBatchConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Enabled reports whether verification is switched on.
func (s *Service) Enabled() bool { return s.enabled }

// ModelLoaded reports whether a PLDA model is available.
func (s *Service) ModelLoaded() bool { return s.scoring.Model != nil }

// Threshold returns the configured operating point.
func (s *Service) Threshold() float64 { return s.cfg.Threshold }

// Enroll aggregates samples into a new active voiceprint for userID.
// Earlier active voiceprints of the user are deactivated.
func (s *Service) Enroll(ctx context.Context, userID string, samples [][]float32, model string) (domvp.Voiceprint, error) {
	vp, err := s.enroll(ctx, userID, samples, model)
	if err != nil {
		metrics.EnrollmentsTotal.WithLabelValues("error").Inc()
		return domvp.Voiceprint{}, err
	}
	metrics.EnrollmentsTotal.WithLabelValues("ok").Inc()
	return vp, nil
}

func (s *Service) enroll(ctx context.Context, userID string, samples [][]float32, model string) (domvp.Voiceprint, error) {
	if err := s.checkEnabled(); err != nil {
		return domvp.Voiceprint{}, err
	}
	if err := domvp.ValidateUserID(userID); err != nil {
		return domvp.Voiceprint{}, err
	}
	if n := len(samples); n < s.cfg.MinEnrollmentSamples || n > s.cfg.MaxEnrollmentSamples {
		return domvp.Voiceprint{}, fmt.Errorf("%w: got %d samples, need between %d and %d",
			domain.ErrInvalidEnrollment, n, s.cfg.MinEnrollmentSamples, s.cfg.MaxEnrollmentSamples)
	}

	vectors := make([]embedding.Vector, len(samples))
	for i, raw := range samples {
		v, err := embedding.New(raw, s.cfg.EmbeddingDim)
		if err != nil {
			return domvp.Voiceprint{}, fmt.Errorf("sample %d: %w", i, err)
		}
		vectors[i] = v
	}
	centroid, err := embedding.Mean(vectors)
	if err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("aggregate samples: %w", err)
	}
	if model == "" {
		model = s.cfg.EmbeddingModel
	}

	unlock, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("lock user: %w", err)
	}
	defer unlock()

	existing, err := s.voiceprints.ListByUser(ctx, userID)
	if err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("list voiceprints: %w", err)
	}

	vp, err := domvp.New(userID, centroid, model, len(samples), s.now())
	if err != nil {
		return domvp.Voiceprint{}, err
	}
	if err := ctx.Err(); err != nil {
		return domvp.Voiceprint{}, err
	}
	if err := s.voiceprints.Save(ctx, vp); err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("save voiceprint: %w", err)
	}
	if err := s.deactivate(ctx, existing, vp.ID()); err != nil {
		return domvp.Voiceprint{}, err
	}

	logger.FromContext(ctx).Info("Voiceprint enrolled",
		zap.String("user_id", userID),
		zap.String("voiceprint_id", vp.ID()),
		zap.Int("num_samples", len(samples)),
		zap.Int("replaced", countActive(existing)),
	)
	return vp, nil
}

// Verify scores probe against the user's active voiceprint and records the decision.
func (s *Service) Verify(ctx context.Context, userID string, probe []float32) (Result, error) {
	if err := s.checkReady(userID); err != nil {
		return Result{}, err
	}
	pv, err := embedding.New(probe, s.cfg.EmbeddingDim)
	if err != nil {
		return Result{}, err
	}
	vp, err := s.activeVoiceprint(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	res, a, err := s.decide(ctx, s.scoring, vp, pv)
	if err != nil {
		metrics.VerificationDecisionsTotal.WithLabelValues("error").Inc()
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := s.attempts.Append(ctx, a); err != nil {
		return Result{}, fmt.Errorf("record attempt: %w", err)
	}
	recordDecision(res)

	logger.FromContext(ctx).Info("Verification decided",
		zap.String("user_id", userID),
		zap.String("voiceprint_id", vp.ID()),
		zap.Bool("verified", res.Verified),
		zap.Float64("raw_score", res.RawScore),
		zap.Float64("score", res.Score),
		zap.Bool("low_confidence", res.Stats.LowConfidence),
	)
	return res, nil
}

// VerifyBatch scores every probe independently against the active voiceprint.
// Only the voiceprint lookup fails the whole call; per-probe failures are
// reported in place and logged as unverified attempts.
func (s *Service) VerifyBatch(ctx context.Context, userID string, probes [][]float32) (BatchResult, error) {
	if err := s.checkReady(userID); err != nil {
		return BatchResult{}, err
	}
	if len(probes) == 0 {
		return BatchResult{}, fmt.Errorf("%w: at least one probe is required", domain.ErrInvalidInput)
	}
	if len(probes) > MaxBatchSize {
		return BatchResult{}, fmt.Errorf("%w: batch size exceeds %d", domain.ErrInvalidInput, MaxBatchSize)
	}
	vp, err := s.activeVoiceprint(ctx, userID)
	if err != nil {
		return BatchResult{}, err
	}

	results := make([]dombatch.Result[Result], len(probes))
	attempts := make([]domattempt.Attempt, len(probes))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, raw := range probes {
		g.Go(func() error {
			pv, err := embedding.New(raw, s.cfg.EmbeddingDim)
			if err != nil {
				results[i] = dombatch.NewError[Result](i, err)
				attempts[i] = domattempt.NewFailure(userID, vp.ID(), "", s.cfg.Threshold, err, s.now())
				return nil
			}
			res, a, err := s.decide(ctx, s.scoring, vp, pv)
			if err != nil {
				results[i] = dombatch.NewError[Result](i, err)
				attempts[i] = domattempt.NewFailure(
					userID, vp.ID(), domattempt.ProbeRef(pv), s.cfg.Threshold, err, s.now())
				return nil
			}
			results[i] = dombatch.NewOK(i, res)
			attempts[i] = a
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}
	if err := s.attempts.Append(ctx, attempts...); err != nil {
		return BatchResult{}, fmt.Errorf("record attempts: %w", err)
	}

	out := BatchResult{Results: results}
	for _, r := range results {
		if r.Status() != dombatch.StatusOK {
			metrics.VerificationDecisionsTotal.WithLabelValues("error").Inc()
			continue
		}
		recordDecision(r.Value())
		if r.Value().Verified {
			out.VerifiedCount++
		}
	}

	logger.FromContext(ctx).Info("Batch verification decided",
		zap.String("user_id", userID),
		zap.String("voiceprint_id", vp.ID()),
		zap.Int("probes", len(probes)),
		zap.Int("verified", out.VerifiedCount),
	)
	return out, nil
}

// decide scores one probe against vp and builds the attempt to record.
func (s *Service) decide(
	ctx context.Context, sc ScoringContext, vp domvp.Voiceprint, probe embedding.Vector,
) (Result, domattempt.Attempt, error) {
	raw, normalized, stats, err := s.score(ctx, sc, vp.Embedding(), probe)
	if err != nil {
		return Result{}, domattempt.Attempt{}, err
	}
	threshold := s.cfg.Threshold
	verified := normalized >= threshold
	a := domattempt.NewDecision(vp.UserID(), vp.ID(), domattempt.ProbeRef(probe),
		raw, normalized, threshold, verified, stats, s.now())
	return Result{
		Verified:     verified,
		Score:        normalized,
		RawScore:     raw,
		Threshold:    threshold,
		Stats:        stats,
		VoiceprintID: vp.ID(),
		AttemptID:    a.ID(),
	}, a, nil
}

// score computes the raw PLDA score of the trial and normalises it against
// both cohort neighbourhoods, queried concurrently.
func (s *Service) score(
	ctx context.Context, sc ScoringContext, enroll, test embedding.Vector,
) (float64, float64, domattempt.CohortStatistics, error) {
	var none domattempt.CohortStatistics
	if sc.Model == nil {
		return 0, 0, none, domain.ErrModelNotLoaded
	}
	pe, err := sc.Model.Project(enroll)
	if err != nil {
		return 0, 0, none, fmt.Errorf("project voiceprint: %w", err)
	}
	pt, err := sc.Model.Project(test)
	if err != nil {
		return 0, 0, none, fmt.Errorf("project probe: %w", err)
	}
	raw := sc.Model.ScoreProjected(pe, pt)

	var enrollScores, testScores []float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		enrollScores, err = s.cohortScores(gctx, sc, "enroll", enroll, pe)
		return err
	})
	g.Go(func() error {
		var err error
		testScores, err = s.cohortScores(gctx, sc, "test", test, pt)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, 0, none, err
	}

	normalized, stats, err := s.norm.Normalize(raw, enrollScores, testScores)
	if err != nil {
		return 0, 0, none, err
	}
	return raw, normalized, stats, nil
}

func (s *Service) cohortScores(
	ctx context.Context, sc ScoringContext, side string, v embedding.Vector, p plda.Projection,
) ([]float64, error) {
	start := time.Now()
	neighbors, err := sc.Cohort.TopK(ctx, v, s.cfg.CohortTopK)
	metrics.CohortQueryDuration.WithLabelValues(side).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s cohort: %w", side, err)
	}
	scores := make([]float64, len(neighbors))
	for i, n := range neighbors {
		pn, err := sc.Model.Project(n.Embedding)
		if err != nil {
			return nil, fmt.Errorf("%s cohort neighbour %s: %w", side, n.Ref, err)
		}
		scores[i] = sc.Model.ScoreProjected(p, pn)
	}
	return scores, nil
}

// ListVoiceprints returns the user's voiceprints, newest first.
func (s *Service) ListVoiceprints(ctx context.Context, userID string) ([]domvp.Voiceprint, error) {
	if err := s.checkEnabled(); err != nil {
		return nil, err
	}
	if err := domvp.ValidateUserID(userID); err != nil {
		return nil, err
	}
	vps, err := s.voiceprints.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list voiceprints: %w", err)
	}
	domvp.SortNewestFirst(vps)
	return vps, nil
}

// SetActive flips the active flag of a voiceprint. Activating one
// deactivates the owner's other voiceprints.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (domvp.Voiceprint, error) {
	if err := s.checkEnabled(); err != nil {
		return domvp.Voiceprint{}, err
	}
	vp, err := s.voiceprints.Get(ctx, id)
	if err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("get voiceprint: %w", err)
	}

	unlock, err := s.locks.acquire(ctx, vp.UserID())
	if err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("lock user: %w", err)
	}
	defer unlock()

	var siblings []domvp.Voiceprint
	if active {
		if siblings, err = s.voiceprints.ListByUser(ctx, vp.UserID()); err != nil {
			return domvp.Voiceprint{}, fmt.Errorf("list voiceprints: %w", err)
		}
	}

	updated := vp.WithActive(active)
	if updated.IsActive() != vp.IsActive() {
		if err := ctx.Err(); err != nil {
			return domvp.Voiceprint{}, err
		}
		if err := s.voiceprints.Save(ctx, updated); err != nil {
			return domvp.Voiceprint{}, fmt.Errorf("save voiceprint: %w", err)
		}
	}
	if err := s.deactivate(ctx, siblings, vp.ID()); err != nil {
		return domvp.Voiceprint{}, err
	}

	logger.FromContext(ctx).Info("Voiceprint updated",
		zap.String("user_id", vp.UserID()),
		zap.String("voiceprint_id", id),
		zap.Bool("is_active", active),
	)
	return updated, nil
}

// DeleteVoiceprint removes a single voiceprint.
func (s *Service) DeleteVoiceprint(ctx context.Context, id string) error {
	if err := s.checkEnabled(); err != nil {
		return err
	}
	vp, err := s.voiceprints.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get voiceprint: %w", err)
	}

	unlock, err := s.locks.acquire(ctx, vp.UserID())
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.voiceprints.Delete(ctx, vp); err != nil {
		return fmt.Errorf("delete voiceprint: %w", err)
	}
	logger.FromContext(ctx).Info("Voiceprint deleted",
		zap.String("user_id", vp.UserID()),
		zap.String("voiceprint_id", id),
	)
	return nil
}

// DeleteUser removes every voiceprint of userID. The attempt history is kept.
func (s *Service) DeleteUser(ctx context.Context, userID string) (int, error) {
	if err := s.checkEnabled(); err != nil {
		return 0, err
	}
	if err := domvp.ValidateUserID(userID); err != nil {
		return 0, err
	}

	unlock, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("lock user: %w", err)
	}
	defer unlock()

	n, err := s.voiceprints.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete voiceprints: %w", err)
	}
	if n == 0 {
		return 0, domain.ErrUserNotEnrolled
	}
	logger.FromContext(ctx).Info("User voiceprints deleted",
		zap.String("user_id", userID),
		zap.Int("deleted", n),
	)
	return n, nil
}

// History returns up to limit recorded attempts of userID, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domattempt.Attempt, error) {
	if err := s.checkEnabled(); err != nil {
		return nil, err
	}
	if err := domvp.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if limit < 0 || limit > MaxHistoryLimit {
		return nil, fmt.Errorf("%w: limit must be between 0 and %d", domain.ErrInvalidInput, MaxHistoryLimit)
	}
	attempts, err := s.attempts.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// activeVoiceprint picks the most recently created active voiceprint of userID.
func (s *Service) activeVoiceprint(ctx context.Context, userID string) (domvp.Voiceprint, error) {
	vps, err := s.voiceprints.ListByUser(ctx, userID)
	if err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("list voiceprints: %w", err)
	}
	vp, ok := domvp.SelectActive(vps)
	if !ok {
		return domvp.Voiceprint{}, domain.ErrUserNotEnrolled
	}
	return vp, nil
}

// deactivate saves every active voiceprint in vps other than keepID as inactive.
func (s *Service) deactivate(ctx context.Context, vps []domvp.Voiceprint, keepID string) error {
	for _, vp := range vps {
		if !vp.IsActive() || vp.ID() == keepID {
			continue
		}
		if err := s.voiceprints.Save(ctx, vp.WithActive(false)); err != nil {
			return fmt.Errorf("deactivate voiceprint %s: %w", vp.ID(), err)
		}
	}
	return nil
}

func (s *Service) checkEnabled() error {
	if !s.enabled {
		return domain.ErrDisabled
	}
	return nil
}

func (s *Service) checkReady(userID string) error {
	if err := s.checkEnabled(); err != nil {
		return err
	}
	if err := domvp.ValidateUserID(userID); err != nil {
		return err
	}
	if s.scoring.Model == nil {
		return domain.ErrModelNotLoaded
	}
	if s.scoring.Cohort == nil {
		return domain.NewDependencyError("cohort index", errors.New("not configured"))
	}
	return nil
}

func recordDecision(r Result) {
	outcome := "rejected"
	if r.Verified {
		outcome = "accepted"
	}
	metrics.VerificationDecisionsTotal.WithLabelValues(outcome).Inc()
	metrics.VerificationScore.WithLabelValues("raw").Observe(r.RawScore)
	metrics.VerificationScore.WithLabelValues("normalized").Observe(r.Score)
	if r.Stats.LowConfidence {
		metrics.CohortLowConfidenceTotal.Inc()
	}
}

func countActive(vps []domvp.Voiceprint) int {
	n := 0
	for _, vp := range vps {
		if vp.IsActive() {
			n++
		}
	}
	return n
}
