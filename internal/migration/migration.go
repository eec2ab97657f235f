// Package migration sequences a review data migration run.
package migration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nushungry/review-migrator/internal/config"
	"github.com/nushungry/review-migrator/internal/docstore"
	migerrors "github.com/nushungry/review-migrator/internal/errors"
	"github.com/nushungry/review-migrator/internal/indexes"
	"github.com/nushungry/review-migrator/internal/loader"
	"github.com/nushungry/review-migrator/internal/logging"
	"github.com/nushungry/review-migrator/internal/models"
	"github.com/nushungry/review-migrator/internal/monitoring"
	"github.com/nushungry/review-migrator/internal/transform"
	"github.com/nushungry/review-migrator/internal/verify"
	"github.com/rs/zerolog"
)

// Source is the read side of the migration
type Source interface {
	FetchReviews(ctx context.Context) ([]models.ReviewRow, error)
	FetchLikes(ctx context.Context) ([]models.ReviewLikeRow, error)
	FetchReports(ctx context.Context) ([]models.ReviewReportRow, error)
	verify.SourceCounter
}

// EntityResult is the outcome of migrating one entity type
type EntityResult struct {
	Entity            models.EntityType `json:"entity"`
	Collection        string            `json:"collection"`
	Read              int               `json:"read"`
	Transformed       int               `json:"transformed"`
	TransformFailures int               `json:"transform_failures"`
	// WouldWrite is set instead of Load in dry-run mode
	WouldWrite int           `json:"would_write,omitempty"`
	Load       loader.Result `json:"load"`
}

// Summary aggregates a whole run
type Summary struct {
	RunID          string                `json:"run_id"`
	DryRun         bool                  `json:"dry_run"`
	Cleaned        bool                  `json:"cleaned"`
	IndexesEnsured bool                  `json:"indexes_ensured"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
	Entities       []EntityResult        `json:"entities"`
	Diagnostics    transform.Diagnostics `json:"diagnostics"`
	Verdict        *verify.Verdict       `json:"verdict,omitempty"`
}

// Migrator runs one migration: clean, load reviews, likes and reports,
// then provision indexes and verify
type Migrator struct {
	cfg    *config.Config
	source Source
	dest   docstore.Database
	loader *loader.Loader
	runID  string
	logger zerolog.Logger
}

// New creates a migrator. The configuration is read, never modified.
func New(cfg *config.Config, source Source, dest docstore.Database) *Migrator {
	runID := uuid.NewString()
	return &Migrator{
		cfg:    cfg,
		source: source,
		dest:   dest,
		loader: loader.New(cfg.Migration.BatchSize),
		runID:  runID,
		logger: logging.NewLogger("migration").With().Str("run_id", runID).Logger(),
	}
}

// RunID identifies this run in logs and metrics
func (m *Migrator) RunID() string {
	return m.runID
}

// Run executes the migration. Any returned error is fatal; per-record
// transform and write failures are reported in the summary instead.
func (m *Migrator) Run(ctx context.Context) (*Summary, error) {
	opts := m.cfg.Migration
	names := m.cfg.Mongo.Collection

	summary := &Summary{
		RunID:     m.runID,
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}

	m.logger.Info().
		Bool("dry_run", opts.DryRun).
		Bool("clean", opts.Clean).
		Int("batch_size", m.loader.BatchSize()).
		Msg("Starting review migration")

	if opts.Clean {
		if opts.DryRun {
			m.logger.Warn().Msg("Clean ignored in dry-run mode")
		} else {
			if err := m.clean(ctx, names); err != nil {
				return summary, err
			}
			summary.Cleaned = true
		}
	}

	steps := []struct {
		entity     models.EntityType
		collection string
		extract    func(context.Context, *transform.Diagnostics) (int, []models.Document, error)
	}{
		{models.EntityReview, names.Reviews, m.extractReviews},
		{models.EntityLike, names.Likes, m.extractLikes},
		{models.EntityReport, names.Reports, m.extractReports},
	}

	for i, step := range steps {
		if err := interrupted(ctx, string(step.entity)); err != nil {
			return summary, err
		}

		m.logger.Info().
			Int("step", i+1).
			Int("of", len(steps)).
			Str("entity", string(step.entity)).
			Msg("Migrating entity")

		read, docs, err := step.extract(ctx, &summary.Diagnostics)
		if err != nil {
			return summary, migerrors.New(migerrors.ErrSourceRead, string(step.entity), "failed to read source rows", err)
		}

		result := EntityResult{
			Entity:            step.entity,
			Collection:        step.collection,
			Read:              read,
			Transformed:       len(docs),
			TransformFailures: read - len(docs),
		}
		monitoring.RecordTransform(string(step.entity), result.Transformed, result.TransformFailures)

		var loadErr error
		if opts.DryRun {
			result.WouldWrite = len(docs)
		} else {
			result.Load, loadErr = m.loader.Load(ctx, m.dest.Collection(step.collection), docs)
		}

		m.logEntityResult(result, &summary.Diagnostics)
		summary.Entities = append(summary.Entities, result)
		if loadErr != nil {
			return summary, migerrors.New(migerrors.ErrInterrupted, step.collection, "load interrupted", loadErr)
		}
	}

	if err := interrupted(ctx, "indexes"); err != nil {
		return summary, err
	}
	if !opts.DryRun && !opts.SkipIndexes {
		if err := indexes.Ensure(ctx, m.dest, names); err != nil {
			return summary, err
		}
		summary.IndexesEnsured = true
	}

	if !opts.DryRun && !opts.SkipVerify {
		verdict, err := verify.Verify(ctx, m.source, m.dest, names)
		if err != nil {
			return summary, err
		}
		summary.Verdict = &verdict
		if err := verdict.Err(); err != nil {
			m.logger.Warn().
				Str("error_code", string(migerrors.CodeOf(err))).
				Err(err).
				Msg("Destination does not match source")
		}
	}

	summary.FinishedAt = time.Now().UTC()
	monitoring.RecordRun(summary.FinishedAt, summary.FinishedAt.Sub(summary.StartedAt))
	m.logSummary(summary)

	return summary, nil
}

// interrupted returns an ErrInterrupted error once ctx is done
func interrupted(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return migerrors.New(migerrors.ErrInterrupted, stage, "migration interrupted", err)
	}
	return nil
}

func (m *Migrator) clean(ctx context.Context, names config.CollectionNames) error {
	for _, name := range []string{names.Reviews, names.Likes, names.Reports} {
		deleted, err := m.dest.Collection(name).DeleteAll(ctx)
		if err != nil {
			return migerrors.New(migerrors.ErrClean, name, "failed to clear collection", err)
		}
		m.logger.Warn().
			Str("collection", name).
			Int64("deleted", deleted).
			Msg("Collection cleared")
	}
	return nil
}

func (m *Migrator) extractReviews(ctx context.Context, diag *transform.Diagnostics) (int, []models.Document, error) {
	rows, err := m.source.FetchReviews(ctx)
	if err != nil {
		return 0, nil, err
	}
	return len(rows), transform.Reviews(rows, diag), nil
}

func (m *Migrator) extractLikes(ctx context.Context, diag *transform.Diagnostics) (int, []models.Document, error) {
	rows, err := m.source.FetchLikes(ctx)
	if err != nil {
		return 0, nil, err
	}
	return len(rows), transform.Likes(rows, diag), nil
}

func (m *Migrator) extractReports(ctx context.Context, diag *transform.Diagnostics) (int, []models.Document, error) {
	rows, err := m.source.FetchReports(ctx)
	if err != nil {
		return 0, nil, err
	}
	return len(rows), transform.Reports(rows, diag), nil
}

func (m *Migrator) logEntityResult(r EntityResult, diag *transform.Diagnostics) {
	for _, f := range diag.Failures {
		if f.Entity != r.Entity {
			continue
		}
		m.logger.Warn().
			Str("entity", string(f.Entity)).
			Int64("source_id", f.SourceID).
			Str("reason", f.Reason).
			Msg("Record dropped by transformer")
	}

	event := m.logger.Info().
		Str("entity", string(r.Entity)).
		Str("collection", r.Collection).
		Int("read", r.Read).
		Int("transformed", r.Transformed).
		Int("transform_failures", r.TransformFailures)

	if m.cfg.Migration.DryRun {
		event.Int("would_write", r.WouldWrite).Msg("Dry run: documents not written")
		return
	}
	event.
		Int("inserted", r.Load.Inserted).
		Int("failed", r.Load.Failed).
		Int("duplicates", r.Load.Duplicates).
		Int("batches", r.Load.Batches).
		Msg("Entity migrated")
}

func (m *Migrator) logSummary(s *Summary) {
	event := m.logger.Info()
	if !s.Diagnostics.Empty() || (s.Verdict != nil && !s.Verdict.Pass) {
		event = m.logger.Warn()
	}
	event = event.
		Bool("dry_run", s.DryRun).
		Bool("cleaned", s.Cleaned).
		Bool("indexes_ensured", s.IndexesEnsured).
		Int("transform_failures", len(s.Diagnostics.Failures)).
		Dur("duration", s.FinishedAt.Sub(s.StartedAt))
	if s.Verdict != nil {
		event = event.Bool("verified", s.Verdict.Pass)
	}
	event.Msg("Review migration completed")
}
