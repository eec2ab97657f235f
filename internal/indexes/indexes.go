// Package indexes provisions the query indexes of the destination collections.
package indexes

import (
	"context"

	"github.com/nushungry/review-migrator/internal/config"
	"github.com/nushungry/review-migrator/internal/docstore"
	migerrors "github.com/nushungry/review-migrator/internal/errors"
	"github.com/nushungry/review-migrator/internal/logging"
)

// CollectionIndexes is the index set of one collection
type CollectionIndexes struct {
	Collection string
	Specs      []docstore.IndexSpec
}

// Plan returns the indexes the review service queries rely on
func Plan(names config.CollectionNames) []CollectionIndexes {
	return []CollectionIndexes{
		{
			Collection: names.Reviews,
			Specs: []docstore.IndexSpec{
				{Keys: []docstore.IndexKey{docstore.Asc("stallId"), docstore.Desc("createdAt")}},
				{Keys: []docstore.IndexKey{docstore.Asc("userId"), docstore.Desc("createdAt")}},
				{Keys: []docstore.IndexKey{docstore.Asc("stallId"), docstore.Desc("likesCount")}},
				{Keys: []docstore.IndexKey{docstore.Asc("rating")}},
			},
		},
		{
			Collection: names.Likes,
			Specs: []docstore.IndexSpec{
				{Keys: []docstore.IndexKey{docstore.Asc("reviewId"), docstore.Asc("userId")}, Unique: true},
				{Keys: []docstore.IndexKey{docstore.Asc("reviewId")}},
			},
		},
		{
			Collection: names.Reports,
			Specs: []docstore.IndexSpec{
				{Keys: []docstore.IndexKey{docstore.Asc("reviewId")}},
				{Keys: []docstore.IndexKey{docstore.Asc("status")}},
				{Keys: []docstore.IndexKey{docstore.Asc("reporterId")}},
			},
		},
	}
}

// Ensure creates every planned index. Existing identical indexes are left
// untouched, so it is safe to call on every run.
func Ensure(ctx context.Context, db docstore.Database, names config.CollectionNames) error {
	logger := logging.NewLogger("indexes")

	for _, plan := range Plan(names) {
		created, err := db.Collection(plan.Collection).CreateIndexes(ctx, plan.Specs)
		if err != nil {
			return migerrors.New(migerrors.ErrIndex, plan.Collection, "failed to create indexes", err)
		}
		logger.Info().
			Str("collection", plan.Collection).
			Strs("indexes", created).
			Msg("Indexes ensured")
	}
	return nil
}
