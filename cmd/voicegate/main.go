package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voicegate/internal/audio"
	"github.com/kailas-cloud/voicegate/internal/config"
	"github.com/kailas-cloud/voicegate/internal/db"
	dbRedis "github.com/kailas-cloud/voicegate/internal/db/redis"
	logpkg "github.com/kailas-cloud/voicegate/internal/logger"
	"github.com/kailas-cloud/voicegate/internal/metrics"
	"github.com/kailas-cloud/voicegate/internal/plda"
	attemptrepo "github.com/kailas-cloud/voicegate/internal/repository/attempt"
	cohortrepo "github.com/kailas-cloud/voicegate/internal/repository/cohort"
	voiceprintrepo "github.com/kailas-cloud/voicegate/internal/repository/voiceprint"
	"github.com/kailas-cloud/voicegate/internal/repository/embcache"
	"github.com/kailas-cloud/voicegate/internal/repository/vpcache"
	chiTransport "github.com/kailas-cloud/voicegate/internal/transport/chi"
	"github.com/kailas-cloud/voicegate/internal/transport/extractor"
	extractionuc "github.com/kailas-cloud/voicegate/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/voicegate/internal/usecase/health"
	verificationuc "github.com/kailas-cloud/voicegate/internal/usecase/verification"
	"github.com/kailas-cloud/voicegate/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	info := version.Get()
	logger.Info("Starting voicegate API server",
		zap.String("version", info.Version),
		zap.String("commit", info.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Bool("verification_enabled", cfg.Verification.IsEnabled()),
	)

	metrics.RegisterVerificationMetrics()

	// valkey and redis share the FT.* surface, one client serves both
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	scoring := cfg.Verification.Scoring()
	cohortAlgo, _ := db.ParseVectorAlgorithm(cfg.Index.CohortAlgorithm) // validated by config

	vpRepo := voiceprintrepo.New(store, voiceprintrepo.Config{
		KeyPrefix:   cfg.Storage.KeyPrefix,
		Collection:  cfg.Collections.Enrolled,
		Dim:         scoring.EmbeddingDim,
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
		Retry:       retryPolicy(cfg, "voiceprint_store"),
	})
	cohortRepo := cohortrepo.New(store, cohortrepo.Config{
		KeyPrefix:   cfg.Storage.KeyPrefix,
		Collection:  cfg.Collections.Cohort,
		Dim:         scoring.EmbeddingDim,
		Algorithm:   cohortAlgo,
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
		Retry:       retryPolicy(cfg, "cohort_index"),
	})
	if err := vpRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure voiceprint index", zap.Error(err))
	}
	if err := cohortRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure cohort index", zap.Error(err))
	}
	if n, err := cohortRepo.Count(ctx); err != nil {
		logger.Warn("Cohort size unknown", zap.Error(err))
	} else {
		logger.Info("Cohort index ready", zap.String("index", cohortRepo.IndexName()), zap.Int("size", n))
		if n == 0 {
			logger.Warn("Cohort index is empty, verification will be unavailable until it is seeded")
		}
	}

	voiceprints := vpcache.New(vpRepo, cfg.Cache.Size, time.Duration(cfg.Cache.TTLSec)*time.Second,
		metrics.VoiceprintCacheTotal)

	history, err := attemptrepo.Open(ctx, cfg.History.Driver, cfg.History.DSN)
	if err != nil {
		logger.Fatal("Failed to open attempt history", zap.String("driver", cfg.History.Driver), zap.Error(err))
	}
	defer func() { _ = history.Close() }()

	// A missing model keeps the process up: health reports it and verification returns 503.
	model, err := plda.Load(cfg.PLDA.ModelPath)
	if err != nil {
		logger.Error("Failed to load PLDA model", zap.String("path", cfg.PLDA.ModelPath), zap.Error(err))
	} else if model.Dim() != scoring.EmbeddingDim {
		logger.Fatal("PLDA model dimension mismatch",
			zap.Int("model_dim", model.Dim()),
			zap.Int("embedding_dim", scoring.EmbeddingDim),
		)
	} else {
		logger.Info("PLDA model loaded", zap.String("path", cfg.PLDA.ModelPath), zap.Int("dim", model.Dim()))
	}

	verificationSvc := verificationuc.New(voiceprints, history,
		verificationuc.ScoringContext{Model: model, Cohort: cohortRepo}, scoring).
		WithEnabled(cfg.Verification.IsEnabled()).
		WithBatchConcurrency(cfg.Verification.BatchConcurrency)

	healthSvc := healthuc.New(verificationSvc, store).
		WithHistory(history).
		WithCollections(vpRepo, cohortRepo)

	// Pass a nil interface, not a typed nil pointer, when audio is not configured.
	var extractionSvc chiTransport.ExtractionService
	if cfg.Extractor.URL != "" {
		client := extractor.New(&extractor.Config{
			URL:        cfg.Extractor.URL,
			APIKey:     cfg.Extractor.APIKey,
			Timeout:    time.Duration(cfg.Extractor.TimeoutSec) * time.Second,
			MaxRetries: cfg.Extractor.MaxRetries,
			Logger:     logger,
		})
		var ext extractionuc.Extractor = client
		if cfg.Cache.ExtractorTTLSec > 0 {
			ext = embcache.New(client, store, cfg.Storage.KeyPrefix,
				time.Duration(cfg.Cache.ExtractorTTLSec)*time.Second, metrics.ExtractorCacheTotal, logger)
		}
		svc := extractionuc.New(ext, scoring.EmbeddingDim).WithSampleRate(cfg.Audio.TargetSampleRate)
		if cfg.Audio.EncryptionEnabled {
			cipher, err := audio.NewXORCipher(cfg.Audio.XORKey)
			if err != nil {
				logger.Fatal("Invalid audio encryption key", zap.Error(err))
			}
			svc = svc.WithCipher(cipher)
		}
		extractionSvc = svc
		healthSvc = healthSvc.WithExtractor(client)
		logger.Info("Audio endpoints enabled", zap.String("extractor_url", cfg.Extractor.URL))
	}

	server := chiTransport.NewServer(verificationSvc, extractionSvc, healthSvc, logger).
		WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	chiTransport.Handler(server, chiTransport.ServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
				Code:    chiTransport.ErrorCodeBadRequest,
				Message: err.Error(),
			})
		},
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// retryPolicy returns the vector store policy with retries counted under dependency.
func retryPolicy(cfg config.Config, dependency string) db.RetryPolicy {
	p := cfg.VectorStore.RetryPolicy()
	p.OnRetry = metrics.RetryCounter(dependency)
	return p
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request. Bodies carry biometric data and are never logged.
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
