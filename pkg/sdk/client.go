package voicegate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/voicegate/internal/db"
	dbRedis "github.com/kailas-cloud/voicegate/internal/db/redis"
	"github.com/kailas-cloud/voicegate/internal/domain"
	domattempt "github.com/kailas-cloud/voicegate/internal/domain/attempt"
	domcohort "github.com/kailas-cloud/voicegate/internal/domain/cohort"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
	"github.com/kailas-cloud/voicegate/internal/plda"
	attemptrepo "github.com/kailas-cloud/voicegate/internal/repository/attempt"
	cohortrepo "github.com/kailas-cloud/voicegate/internal/repository/cohort"
	voiceprintrepo "github.com/kailas-cloud/voicegate/internal/repository/voiceprint"
	"github.com/kailas-cloud/voicegate/internal/repository/vpcache"
	healthuc "github.com/kailas-cloud/voicegate/internal/usecase/health"
	verificationuc "github.com/kailas-cloud/voicegate/internal/usecase/verification"
)

const (
	defaultReadinessTimeout   = 10 * time.Second
	defaultKeyPrefix          = "voicegate:"
	defaultEnrolledCollection = "enrolled_users_ecapa"
	defaultCohortCollection   = "indian_cohort_ecapa"
	defaultHNSWM              = 16
	defaultHNSWEFConstruct    = 200
)

// Internal interfaces, swapped out in tests.
type verificationUseCase interface {
	Enroll(ctx context.Context, userID string, samples [][]float32, model string) (domvp.Voiceprint, error)
	Verify(ctx context.Context, userID string, probe []float32) (verificationuc.Result, error)
	VerifyBatch(ctx context.Context, userID string, probes [][]float32) (verificationuc.BatchResult, error)
	ListVoiceprints(ctx context.Context, userID string) ([]domvp.Voiceprint, error)
	SetActive(ctx context.Context, id string, active bool) (domvp.Voiceprint, error)
	DeleteVoiceprint(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, userID string) (int, error)
	History(ctx context.Context, userID string, limit int) ([]domattempt.Attempt, error)
}

type cohortUseCase interface {
	Seed(ctx context.Context, entries []domcohort.Entry) (int, error)
	Count(ctx context.Context) (int, error)
}

// Client is the voicegate SDK entry point.
type Client struct {
	store        db.Store
	history      *attemptrepo.Repo
	verification verificationUseCase
	cohort       cohortUseCase
	healthSvc    healthUseCase
	embeddingDim int
	obs          *observer
}

// New creates a voicegate Client, connects to the vector store and the history
// database, and makes sure both collection indexes exist.
// The provided context bounds the startup checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("voicegate: database address required (use WithValkey or WithRedis)")
	}
	if cfg.driver != "valkey" && cfg.driver != "redis" {
		return nil, fmt.Errorf("voicegate: unknown driver %q", cfg.driver)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	// A bad artifact is reported before any connection is opened.
	var model *plda.Model
	if cfg.modelPath != "" {
		if model, err = plda.Load(cfg.modelPath); err != nil {
			return nil, fmt.Errorf("voicegate: load plda model: %w", err)
		}
		if model.Dim() != cfg.embeddingDim {
			return nil, fmt.Errorf("voicegate: plda model dimension %d, expected %d", model.Dim(), cfg.embeddingDim)
		}
	}

	// valkey and redis share the FT.* surface, one client serves both
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("voicegate: create %s store: %w", cfg.driver, err)
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("voicegate: database not ready: %w", err)
	}

	history, err := attemptrepo.Open(ctx, cfg.historyDriver, cfg.historyDSN)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("voicegate: open history: %w", err)
	}

	c, err := wireClient(ctx, store, history, model, cfg, obs)
	if err != nil {
		_ = history.Close()
		store.Close()
		return nil, err
	}
	return c, nil
}

func defaultConfig() *clientConfig {
	scoring := domain.DefaultScoringConfig()
	return &clientConfig{
		keyPrefix:          defaultKeyPrefix,
		enrolledCollection: defaultEnrolledCollection,
		cohortCollection:   defaultCohortCollection,
		hnswM:              defaultHNSWM,
		hnswEFConstruct:    defaultHNSWEFConstruct,
		threshold:          scoring.Threshold,
		cohortTopK:         scoring.CohortTopK,
		minSamples:         scoring.MinEnrollmentSamples,
		maxSamples:         scoring.MaxEnrollmentSamples,
		embeddingDim:       scoring.EmbeddingDim,
		minCohortSize:      scoring.MinCohortSize,
		historyDriver:      attemptrepo.DriverSQLite,
		storeTimeout:       2 * time.Second,
		storeBackoff:       100 * time.Millisecond,
	}
}

func (c *clientConfig) scoring() domain.ScoringConfig {
	s := domain.DefaultScoringConfig()
	s.Threshold = c.threshold
	s.CohortTopK = c.cohortTopK
	s.MinEnrollmentSamples = c.minSamples
	s.MaxEnrollmentSamples = c.maxSamples
	s.EmbeddingDim = c.embeddingDim
	s.MinCohortSize = c.minCohortSize
	return s
}

func (c *clientConfig) retry() db.RetryPolicy {
	return db.RetryPolicy{Timeout: c.storeTimeout, MaxRetries: c.storeRetries, Backoff: c.storeBackoff}
}

func wireClient(
	ctx context.Context,
	store db.Store,
	history *attemptrepo.Repo,
	model *plda.Model,
	cfg *clientConfig,
	obs *observer,
) (*Client, error) {
	cohortAlgo := db.VectorHNSW
	if cfg.flatCohort {
		cohortAlgo = db.VectorFlat
	}

	vpRepo := voiceprintrepo.New(store, voiceprintrepo.Config{
		KeyPrefix:   cfg.keyPrefix,
		Collection:  cfg.enrolledCollection,
		Dim:         cfg.embeddingDim,
		M:           cfg.hnswM,
		EFConstruct: cfg.hnswEFConstruct,
		Retry:       cfg.retry(),
	})
	cohortRepo := cohortrepo.New(store, cohortrepo.Config{
		KeyPrefix:   cfg.keyPrefix,
		Collection:  cfg.cohortCollection,
		Dim:         cfg.embeddingDim,
		Algorithm:   cohortAlgo,
		M:           cfg.hnswM,
		EFConstruct: cfg.hnswEFConstruct,
		Retry:       cfg.retry(),
	})
	if err := vpRepo.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("voicegate: ensure voiceprint index: %w", err)
	}
	if err := cohortRepo.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("voicegate: ensure cohort index: %w", err)
	}

	voiceprints := vpcache.New(vpRepo, cfg.cacheSize, cfg.cacheTTL, nil)
	verificationSvc := verificationuc.New(voiceprints, history,
		verificationuc.ScoringContext{Model: model, Cohort: cohortRepo}, cfg.scoring())
	healthSvc := healthuc.New(verificationSvc, store).
		WithHistory(history).
		WithCollections(vpRepo, cohortRepo)

	return &Client{
		store:        store,
		history:      history,
		verification: verificationSvc,
		cohort:       cohortRepo,
		healthSvc:    healthSvc,
		embeddingDim: cfg.embeddingDim,
		obs:          obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.history != nil {
		_ = c.history.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks vector store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
