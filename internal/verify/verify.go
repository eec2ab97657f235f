// Package verify compares source and destination counts after a load.
package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/nushungry/review-migrator/internal/config"
	"github.com/nushungry/review-migrator/internal/docstore"
	migerrors "github.com/nushungry/review-migrator/internal/errors"
	"github.com/nushungry/review-migrator/internal/logging"
	"github.com/nushungry/review-migrator/internal/models"
	"github.com/nushungry/review-migrator/internal/monitoring"
)

// SourceCounter counts eligible source rows per entity
type SourceCounter interface {
	Count(ctx context.Context, entity models.EntityType) (int64, error)
}

// EntityCount is the comparison for one entity type
type EntityCount struct {
	Entity      models.EntityType `json:"entity"`
	Collection  string            `json:"collection"`
	Source      int64             `json:"source"`
	Destination int64             `json:"destination"`
}

// Match reports whether both sides agree
func (c EntityCount) Match() bool {
	return c.Source == c.Destination
}

// Verdict is the outcome of a verification pass. It is advisory only.
type Verdict struct {
	Pass   bool          `json:"pass"`
	Counts []EntityCount `json:"counts"`
}

// Mismatches returns the entities whose counts differ
func (v Verdict) Mismatches() []EntityCount {
	var out []EntityCount
	for _, c := range v.Counts {
		if !c.Match() {
			out = append(out, c)
		}
	}
	return out
}

// Err returns an ErrVerifyMismatch error describing every mismatch, or nil
// when the verification passed
func (v Verdict) Err() error {
	mismatches := v.Mismatches()
	if len(mismatches) == 0 {
		return nil
	}
	parts := make([]string, 0, len(mismatches))
	for _, c := range mismatches {
		parts = append(parts, fmt.Sprintf("%s source=%d destination=%d", c.Collection, c.Source, c.Destination))
	}
	return migerrors.New(migerrors.ErrVerifyMismatch, "verify", "count mismatch: "+strings.Join(parts, ", "), nil)
}

// Verify counts every entity on both sides. It returns an error only when a
// count cannot be obtained; a mismatch is reported through the verdict.
func Verify(ctx context.Context, src SourceCounter, db docstore.Database, names config.CollectionNames) (Verdict, error) {
	logger := logging.NewLogger("verify")

	collections := map[models.EntityType]string{
		models.EntityReview: names.Reviews,
		models.EntityLike:   names.Likes,
		models.EntityReport: names.Reports,
	}

	verdict := Verdict{Pass: true}
	for _, entity := range models.EntityTypes {
		coll := collections[entity]

		srcCount, err := src.Count(ctx, entity)
		if err != nil {
			return Verdict{}, migerrors.New(migerrors.ErrSourceCount, string(entity), "failed to count source rows", err)
		}
		dstCount, err := db.Collection(coll).Count(ctx)
		if err != nil {
			return Verdict{}, migerrors.New(migerrors.ErrDestCount, coll, "failed to count documents", err)
		}

		c := EntityCount{Entity: entity, Collection: coll, Source: srcCount, Destination: dstCount}
		verdict.Counts = append(verdict.Counts, c)
		if !c.Match() {
			verdict.Pass = false
		}

		monitoring.RecordCounts(string(entity), srcCount, dstCount)
		logger.Info().
			Str("entity", string(entity)).
			Int64("source", srcCount).
			Int64("destination", dstCount).
			Msg("Counts compared")
	}

	monitoring.SetVerificationPass(verdict.Pass)
	if verdict.Pass {
		logger.Info().Msg("Verification passed")
	} else {
		for _, c := range verdict.Mismatches() {
			logger.Warn().
				Str("error_code", string(migerrors.ErrVerifyMismatch)).
				Str("entity", string(c.Entity)).
				Int64("source", c.Source).
				Int64("destination", c.Destination).
				Msg("Count mismatch")
		}
	}

	return verdict, nil
}
