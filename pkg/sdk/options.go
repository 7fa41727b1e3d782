package voicegate

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey" or "redis"
	addrs    []string
	password string

	keyPrefix          string
	enrolledCollection string
	cohortCollection   string
	hnswM              int
	hnswEFConstruct    int
	flatCohort         bool

	modelPath string

	threshold     float64
	cohortTopK    int
	minSamples    int
	maxSamples    int
	embeddingDim  int
	minCohortSize int

	historyDriver string
	historyDSN    string

	cacheSize int
	cacheTTL  time.Duration

	storeTimeout time.Duration
	storeRetries int
	storeBackoff time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix sets the key prefix shared by both collections.
// Default: "voicegate:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithCollections names the enrolled and cohort collections.
// Defaults: enrolled_users_ecapa, indian_cohort_ecapa.
func WithCollections(enrolled, cohort string) Option {
	return optionFunc(func(c *clientConfig) {
		c.enrolledCollection = enrolled
		c.cohortCollection = cohort
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithFlatCohort indexes the cohort with exact (FLAT) search instead of HNSW.
func WithFlatCohort() Option {
	return optionFunc(func(c *clientConfig) {
		c.flatCohort = true
	})
}

// WithPLDAModel loads the PLDA artifact at path (.msgpack or .json).
// Without a model, enrollment works but verification returns ErrModelNotLoaded.
func WithPLDAModel(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.modelPath = path
	})
}

// WithThreshold sets the decision threshold on normalised scores. Default: 3.0.
func WithThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.threshold = t
	})
}

// WithCohortTopK sets the number of cohort neighbours used for AS-Norm. Default: 30.
func WithCohortTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cohortTopK = k
	})
}

// WithMinCohortSize sets the neighbourhood size below which scores are flagged
// low-confidence. Default: 5.
func WithMinCohortSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.minCohortSize = n
	})
}

// WithEnrollmentSamples bounds the number of samples per enrollment. Defaults: 3..10.
func WithEnrollmentSamples(minSamples, maxSamples int) Option {
	return optionFunc(func(c *clientConfig) {
		c.minSamples = minSamples
		c.maxSamples = maxSamples
	})
}

// WithEmbeddingDim sets the embedding dimensionality. Default: 192 (ECAPA-TDNN).
func WithEmbeddingDim(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingDim = dim
	})
}

// WithHistory selects the attempt log database: "sqlite" (default, in-memory
// when dsn is empty) or "postgres".
func WithHistory(driver, dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.historyDriver = driver
		c.historyDSN = dsn
	})
}

// WithCache caches per-user voiceprint listings. size <= 0 disables it (default).
func WithCache(size int, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheSize = size
		c.cacheTTL = ttl
	})
}

// WithStoreRetry bounds every vector store call: per-attempt timeout,
// number of retries on transient errors and the base backoff.
func WithStoreRetry(timeout time.Duration, maxRetries int, backoff time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.storeTimeout = timeout
		c.storeRetries = maxRetries
		c.storeBackoff = backoff
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
