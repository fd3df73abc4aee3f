// Command aggregator runs one window close and event purge pass and exits.
// It is meant for cron jobs in deployments that disable the in-process
// scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	usageapp "github.com/faasbill/backend/internal/application/usage"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/usage"
	"github.com/faasbill/backend/internal/infrastructure/cache"
	"github.com/faasbill/backend/internal/infrastructure/config"
	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/faasbill/backend/internal/infrastructure/persistence"
	"github.com/faasbill/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

func main() {
	var (
		at      string
		noPurge bool
	)
	flag.StringVar(&at, "at", "", "Close windows as of this RFC3339 time (default: now)")
	flag.BoolVar(&noPurge, "no-purge", false, "Skip purging processed events past retention")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	clock := shared.SystemClock
	if at != "" {
		fixed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			log.Fatal("Invalid -at time", zap.String("value", at), zap.Error(err))
		}
		clock = shared.ClockFunc(func() time.Time { return fixed.UTC() })
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Usage.RunTimeout*2)
	defer cancel()

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	// closing and purging never consult the dedupe store
	stores := cache.NewFactory(cfg.Redis, cache.WithLogger(log)).InMemory()
	defer stores.Close()

	usageService, err := usageapp.NewService(
		persistence.NewGormUsageRepository(db.DB),
		persistence.NewGormServiceRepository(db.DB),
		stores.Idempotency,
		clock,
		usageapp.Options{
			Policy:         usage.WindowPolicy{Size: cfg.Usage.WindowSize, Grace: cfg.Usage.GracePeriod},
			MaxClockSkew:   cfg.Usage.MaxClockSkew,
			DedupeTTL:      cfg.Usage.DedupeTTL,
			EventRetention: cfg.Usage.EventRetention,
			MaxBatchSize:   cfg.Usage.MaxBatchSize,
		},
		log,
	)
	if err != nil {
		log.Fatal("Invalid usage configuration", zap.Error(err))
	}

	purgeInterval := cfg.Usage.PurgeInterval
	if noPurge {
		purgeInterval = 0
	}
	runner := scheduler.NewWindowCloseScheduler(usageService, log, scheduler.WindowCloseSchedulerConfig{
		Enabled:       true,
		CloseInterval: cfg.Usage.CloseInterval,
		PurgeInterval: purgeInterval,
		RunTimeout:    cfg.Usage.RunTimeout,
	})
	runner.SetNow(clock.Now)
	runner.RunOnce(ctx)

	log.Info("Aggregation pass finished", zap.Time("as_of", clock.Now()))
}
