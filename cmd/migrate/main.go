package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nushungry/review-migrator/internal/config"
	"github.com/nushungry/review-migrator/internal/database"
	"github.com/nushungry/review-migrator/internal/docstore"
	migerrors "github.com/nushungry/review-migrator/internal/errors"
	"github.com/nushungry/review-migrator/internal/logging"
	"github.com/nushungry/review-migrator/internal/migration"
	"github.com/nushungry/review-migrator/internal/monitoring"
	"github.com/nushungry/review-migrator/internal/reader"
	"github.com/rs/zerolog/log"
)

func main() {
	// Environment first; flags override it and validation runs after both
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	flag.BoolVar(&cfg.Migration.DryRun, "dry-run", cfg.Migration.DryRun, "Read and transform only, write nothing")
	flag.IntVar(&cfg.Migration.BatchSize, "batch-size", cfg.Migration.BatchSize, "Documents per bulk insert")
	flag.BoolVar(&cfg.Migration.Clean, "clean", cfg.Migration.Clean, "Empty destination collections before migrating")
	flag.BoolVar(&cfg.Migration.SkipIndexes, "skip-indexes", cfg.Migration.SkipIndexes, "Do not create destination indexes")
	flag.BoolVar(&cfg.Migration.SkipVerify, "skip-verify", cfg.Migration.SkipVerify, "Do not compare source and destination counts")
	flag.StringVar(&cfg.Source.URL, "source", cfg.Source.URL, "Source database URL (overrides SOURCE_DATABASE_URL)")
	flag.StringVar(&cfg.Mongo.URI, "mongo-uri", cfg.Mongo.URI, "MongoDB URI (overrides MONGO_URI)")
	flag.StringVar(&cfg.Mongo.Database, "mongo-db", cfg.Mongo.Database, "MongoDB database (overrides MONGO_DATABASE)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", migerrors.New(migerrors.ErrConfig, "startup", "invalid flags", err))
		os.Exit(1)
	}

	logging.Setup(&cfg.Logging)

	if code := exitCode(run(cfg)); code != 0 {
		os.Exit(code)
	}
}

// exitCode logs the outcome of a run and returns the process exit status.
// Only fatal errors produce a non-zero status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	code := migerrors.CodeOf(err)
	if !migerrors.IsFatal(code) {
		log.Warn().
			Err(err).
			Str("code", string(code)).
			Msg("Review migration completed with warnings")
		return 0
	}

	log.Error().
		Err(err).
		Str("code", string(code)).
		Msg("Review migration failed")
	return 1
}

// run owns both store connections and releases them before returning,
// whatever the outcome. A completed run whose counts do not match returns
// the non-fatal verification error.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitoring.Init()

	db, err := database.New(ctx, &cfg.Source)
	if err != nil {
		return migerrors.New(migerrors.ErrSourceConnect, "connect", "failed to connect to source database", err)
	}
	defer db.Close()

	mongo, err := docstore.Connect(ctx, &cfg.Mongo)
	if err != nil {
		return migerrors.New(migerrors.ErrDestConnect, "connect", "failed to connect to MongoDB", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongo.Close(closeCtx)
	}()

	m := migration.New(cfg, reader.New(db.Pool), mongo)
	summary, runErr := m.Run(ctx)
	if runErr == nil && summary.Verdict != nil {
		runErr = summary.Verdict.Err()
	}

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := monitoring.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, m.RunID()); err != nil {
			log.Warn().Err(err).Msg("Failed to push metrics")
		}
		cancel()
	}

	return runErr
}
