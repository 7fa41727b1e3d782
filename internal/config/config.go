package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/voicegate/internal/db"
	"github.com/kailas-cloud/voicegate/internal/domain"
)

// Config holds the voicegate API configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Index        IndexConfig        `yaml:"index"`
	Storage      StorageConfig      `yaml:"storage"`
	Collections  CollectionsConfig  `yaml:"collections"`
	Verification VerificationConfig `yaml:"verification"`
	PLDA         PLDAConfig         `yaml:"plda"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	Cache        CacheConfig        `yaml:"cache"`
	History      HistoryConfig      `yaml:"history"`
	Extractor    ExtractorConfig    `yaml:"extractor"`
	Audio        AudioConfig        `yaml:"audio"`
	Auth         AuthConfig         `yaml:"auth"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	CohortAlgorithm string `yaml:"cohort_algorithm"` // hnsw (default) or flat
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// CollectionsConfig names the two vector collections.
type CollectionsConfig struct {
	Enrolled string `yaml:"enrolled"`
	Cohort   string `yaml:"cohort"`
}

// VerificationConfig holds scoring and enrollment settings.
type VerificationConfig struct {
	Enabled              *bool   `yaml:"enabled"`
	Threshold            float64 `yaml:"threshold"`
	CohortTopK           int     `yaml:"cohort_top_k"`
	MinEnrollmentSamples int     `yaml:"min_enrollment_samples"`
	MaxEnrollmentSamples int     `yaml:"max_enrollment_samples"`
	EmbeddingDim         int     `yaml:"embedding_dim"`
	EmbeddingModel       string  `yaml:"embedding_model"`
	MinCohortSize        int     `yaml:"min_cohort_size"`
	StdFloor             float64 `yaml:"std_floor"`
	BatchConcurrency     int     `yaml:"batch_concurrency"`
}

// IsEnabled reports the feature flag; verification is on unless switched off explicitly.
func (v VerificationConfig) IsEnabled() bool {
	return v.Enabled == nil || *v.Enabled
}

// Scoring converts the section to the domain scoring configuration.
func (v VerificationConfig) Scoring() domain.ScoringConfig {
	return domain.ScoringConfig{
		Threshold:            v.Threshold,
		CohortTopK:           v.CohortTopK,
		MinEnrollmentSamples: v.MinEnrollmentSamples,
		MaxEnrollmentSamples: v.MaxEnrollmentSamples,
		EmbeddingDim:         v.EmbeddingDim,
		EmbeddingModel:       v.EmbeddingModel,
		MinCohortSize:        v.MinCohortSize,
		StdFloor:             v.StdFloor,
	}
}

// PLDAConfig locates the PLDA model artifact.
type PLDAConfig struct {
	ModelPath string `yaml:"model_path"`
}

// VectorStoreConfig holds per-call timeout and retry settings for the vector store.
type VectorStoreConfig struct {
	TimeoutMs      int `yaml:"timeout_ms"`
	MaxRetries     int `yaml:"max_retries"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`
}

// RetryPolicy converts the section to a db.RetryPolicy.
func (v VectorStoreConfig) RetryPolicy() db.RetryPolicy {
	return db.RetryPolicy{
		Timeout:    time.Duration(v.TimeoutMs) * time.Millisecond,
		MaxRetries: v.MaxRetries,
		Backoff:    time.Duration(v.RetryBackoffMs) * time.Millisecond,
	}
}

// CacheConfig holds voiceprint cache settings. Size 0 disables the cache.
// ExtractorTTLSec keeps extractor results in the vector store's keyspace; 0 disables it.
type CacheConfig struct {
	Size            int `yaml:"size"`
	TTLSec          int `yaml:"ttl_sec"`
	ExtractorTTLSec int `yaml:"extractor_ttl_sec"`
}

// HistoryConfig holds the attempt log database settings.
type HistoryConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres (default: sqlite)
	DSN    string `yaml:"dsn"`
}

// ExtractorConfig holds embedding extractor settings. An empty URL disables audio endpoints.
type ExtractorConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxRetries int    `yaml:"max_retries"`
}

// AudioConfig holds audio decoding settings.
type AudioConfig struct {
	TargetSampleRate  int    `yaml:"target_sample_rate"`
	XORKey            string `yaml:"xor_key"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file next to the working directory is loaded first when present.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, unmarshals it and validates the result.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 32 << 20
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "voicegate:"
	}
	if c.Collections.Enrolled == "" {
		c.Collections.Enrolled = "enrolled_users_ecapa"
	}
	if c.Collections.Cohort == "" {
		c.Collections.Cohort = "indian_cohort_ecapa"
	}
	c.applyVerificationDefaults()
	if c.VectorStore.TimeoutMs <= 0 {
		c.VectorStore.TimeoutMs = 2000
	}
	if c.VectorStore.MaxRetries < 0 {
		c.VectorStore.MaxRetries = 0
	}
	if c.VectorStore.RetryBackoffMs <= 0 {
		c.VectorStore.RetryBackoffMs = 100
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 60
	}
	if c.Cache.ExtractorTTLSec < 0 {
		c.Cache.ExtractorTTLSec = 0
	}
	if c.History.Driver == "" {
		c.History.Driver = "sqlite"
	}
	if c.Extractor.TimeoutSec <= 0 {
		c.Extractor.TimeoutSec = 10
	}
	if c.Audio.TargetSampleRate <= 0 {
		c.Audio.TargetSampleRate = 16000
	}
}

func (c *Config) applyVerificationDefaults() {
	def := domain.DefaultScoringConfig()
	v := &c.Verification
	if v.Threshold == 0 {
		v.Threshold = def.Threshold
	}
	if v.CohortTopK <= 0 {
		v.CohortTopK = def.CohortTopK
	}
	if v.MinEnrollmentSamples == 0 {
		v.MinEnrollmentSamples = def.MinEnrollmentSamples
	}
	if v.MaxEnrollmentSamples == 0 {
		v.MaxEnrollmentSamples = def.MaxEnrollmentSamples
	}
	if v.EmbeddingDim == 0 {
		v.EmbeddingDim = def.EmbeddingDim
	}
	if v.EmbeddingModel == "" {
		v.EmbeddingModel = def.EmbeddingModel
	}
	if v.MinCohortSize <= 0 {
		v.MinCohortSize = def.MinCohortSize
	}
	if v.StdFloor <= 0 {
		v.StdFloor = def.StdFloor
	}
	if v.BatchConcurrency <= 0 {
		v.BatchConcurrency = 4
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if _, err := db.ParseVectorAlgorithm(c.Index.CohortAlgorithm); err != nil {
		return fmt.Errorf("index.cohort_algorithm: %w", err)
	}

	v := c.Verification
	if math.IsNaN(v.Threshold) || math.IsInf(v.Threshold, 0) {
		return fmt.Errorf("verification.threshold must be finite")
	}
	if v.MinEnrollmentSamples < 1 || v.MinEnrollmentSamples > v.MaxEnrollmentSamples {
		return fmt.Errorf(
			"verification enrollment samples must satisfy 1 <= min <= max, got min=%d max=%d",
			v.MinEnrollmentSamples, v.MaxEnrollmentSamples,
		)
	}
	if v.EmbeddingDim <= 0 {
		return fmt.Errorf("verification.embedding_dim must be positive, got %d", v.EmbeddingDim)
	}

	switch c.History.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("history.driver must be \"sqlite\" or \"postgres\", got %q", c.History.Driver)
	}
	if c.History.Driver == "postgres" && c.History.DSN == "" {
		return fmt.Errorf("history.dsn is required for postgres")
	}
	if c.Audio.EncryptionEnabled && c.Audio.XORKey == "" {
		return fmt.Errorf("audio.xor_key is required when encryption is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
