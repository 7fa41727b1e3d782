package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voicegate/internal/config"
	"github.com/kailas-cloud/voicegate/internal/db"
	dbRedis "github.com/kailas-cloud/voicegate/internal/db/redis"
	logpkg "github.com/kailas-cloud/voicegate/internal/logger"
	cohortrepo "github.com/kailas-cloud/voicegate/internal/repository/cohort"
)

var (
	// Global flags
	env     string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cohortseed",
	Short: "Manage the voicegate impostor cohort",
	Long: `cohortseed populates and inspects the cohort index used for score normalisation.

Connection settings are read from config/<env>.yaml, the same file the API server uses.

Examples:
  cohortseed seed -f cohort.jsonl
  cohortseed seed -f embeddings.msgpack --max 5000 --force
  cohortseed stats`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command; SIGINT/SIGTERM cancel the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", config.GetEnv(), "config environment (local, dev, prod)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// session bundles what every command needs from the vector store.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	cohort *cohortrepo.Repo
	close  func()
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %v: %w", cfg.Database.Addrs, err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}

	algo, _ := db.ParseVectorAlgorithm(cfg.Index.CohortAlgorithm)
	repo := cohortrepo.New(store, cohortrepo.Config{
		KeyPrefix:   cfg.Storage.KeyPrefix,
		Collection:  cfg.Collections.Cohort,
		Dim:         cfg.Verification.EmbeddingDim,
		Algorithm:   algo,
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
		Retry:       cfg.VectorStore.RetryPolicy(),
	})

	return &session{
		cfg:    cfg,
		logger: logger,
		cohort: repo,
		close: func() {
			_ = logger.Sync()
			store.Close()
		},
	}, nil
}
