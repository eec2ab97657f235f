package migration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nushungry/review-migrator/internal/config"
	"github.com/nushungry/review-migrator/internal/docstore/docstoretest"
	migerrors "github.com/nushungry/review-migrator/internal/errors"
	"github.com/nushungry/review-migrator/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	reviews []models.ReviewRow
	likes   []models.ReviewLikeRow
	reports []models.ReviewReportRow

	likesErr error
	fetches  int
}

func (f *fakeSource) FetchReviews(context.Context) ([]models.ReviewRow, error) {
	f.fetches++
	return f.reviews, nil
}

func (f *fakeSource) FetchLikes(context.Context) ([]models.ReviewLikeRow, error) {
	f.fetches++
	if f.likesErr != nil {
		return nil, f.likesErr
	}
	return f.likes, nil
}

func (f *fakeSource) FetchReports(context.Context) ([]models.ReviewReportRow, error) {
	f.fetches++
	return f.reports, nil
}

func (f *fakeSource) Count(_ context.Context, entity models.EntityType) (int64, error) {
	switch entity {
	case models.EntityReview:
		return int64(len(f.reviews)), nil
	case models.EntityLike:
		return int64(len(f.likes)), nil
	case models.EntityReport:
		return int64(len(f.reports)), nil
	}
	return 0, fmt.Errorf("unknown entity %s", entity)
}

func str(s string) *string { return &s }

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newSource(reviews, likesPerReview int) *fakeSource {
	src := &fakeSource{}
	likeID, reportID := int64(1), int64(1)
	for i := 1; i <= reviews; i++ {
		id := int64(i)
		src.reviews = append(src.reviews, models.ReviewRow{
			ID:        id,
			StallID:   1 + id%3,
			StallName: str("Stall"),
			UserID:    100 + id,
			Username:  str("user"),
			Rating:    decimal.NewFromInt(4),
			Comment:   str("ok"),
			ImageURLs: models.EncodedImageURLs(`["a.jpg"]`),
			CreatedAt: models.NewTimestamp(t0.Add(-time.Duration(i) * time.Hour)),
			UpdatedAt: models.NewRawTimestamp("2024-06-01 10:00:00"),
		})
		for u := 0; u < likesPerReview; u++ {
			src.likes = append(src.likes, models.ReviewLikeRow{
				ID:        likeID,
				ReviewID:  id,
				UserID:    int64(200 + u),
				CreatedAt: models.NewTimestamp(t0),
			})
			likeID++
		}
		src.reports = append(src.reports, models.ReviewReportRow{
			ID:         reportID,
			ReviewID:   id,
			ReporterID: 300,
			Reason:     str("UNKNOWN"),
			Status:     str("PENDING"),
			CreatedAt:  models.NewTimestamp(t0),
		})
		reportID++
	}
	return src
}

func testConfig() *config.Config {
	return &config.Config{
		Mongo: config.MongoConfig{
			Collection: config.CollectionNames{Reviews: "review", Likes: "reviewLike", Reports: "reviewReport"},
		},
		Migration: config.MigrationConfig{BatchSize: 100},
	}
}

func count(t *testing.T, db *docstoretest.MemoryDatabase, coll string) int64 {
	t.Helper()
	n, err := db.Collection(coll).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestRun_LiveMigratesAllEntities(t *testing.T) {
	src := newSource(250, 2)
	db := docstoretest.NewMemoryDatabase()

	summary, err := New(testConfig(), src, db).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(250), count(t, db, "review"))
	assert.Equal(t, int64(500), count(t, db, "reviewLike"))
	assert.Equal(t, int64(250), count(t, db, "reviewReport"))

	require.Len(t, summary.Entities, 3)
	assert.Equal(t, models.EntityReview, summary.Entities[0].Entity)
	assert.Equal(t, models.EntityLike, summary.Entities[1].Entity)
	assert.Equal(t, models.EntityReport, summary.Entities[2].Entity)
	assert.Equal(t, 250, summary.Entities[0].Load.Inserted)
	assert.Equal(t, 3, summary.Entities[0].Load.Batches)
	assert.Equal(t, []int{100, 100, 50}, db.MemoryCollection("review").Batches)

	assert.True(t, summary.IndexesEnsured)
	require.NotNil(t, summary.Verdict)
	assert.True(t, summary.Verdict.Pass)
	assert.NoError(t, summary.Verdict.Err())
	assert.True(t, summary.Diagnostics.Empty())
	assert.NotEmpty(t, summary.RunID)

	report, ok := db.MemoryCollection("reviewReport").Get("1")
	require.True(t, ok)
	assert.Equal(t, "OTHER", report["reason"])
	assert.Equal(t, "1", report["reviewId"])
}

func TestRun_RerunWithoutCleanIsIdempotent(t *testing.T) {
	src := newSource(30, 1)
	db := docstoretest.NewMemoryDatabase()
	cfg := testConfig()

	_, err := New(cfg, src, db).Run(context.Background())
	require.NoError(t, err)
	second, err := New(cfg, src, db).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(30), count(t, db, "review"))
	assert.Equal(t, int64(30), count(t, db, "reviewLike"))
	for _, e := range second.Entities {
		assert.Zero(t, e.Load.Inserted, e.Entity)
		assert.Equal(t, e.Transformed, e.Load.Duplicates, e.Entity)
	}
	require.NotNil(t, second.Verdict)
	assert.True(t, second.Verdict.Pass)
}

func TestRun_DryRunPerformsNoWrites(t *testing.T) {
	src := newSource(120, 3)
	db := docstoretest.NewMemoryDatabase()
	cfg := testConfig()
	cfg.Migration.DryRun = true
	cfg.Migration.Clean = true
	cfg.Migration.BatchSize = 7

	summary, err := New(cfg, src, db).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, db.Mutations())
	assert.Equal(t, 3, src.fetches)
	assert.False(t, summary.Cleaned)
	assert.False(t, summary.IndexesEnsured)
	assert.Nil(t, summary.Verdict)
	assert.Equal(t, 120, summary.Entities[0].WouldWrite)
	assert.Equal(t, 360, summary.Entities[1].WouldWrite)
	assert.Equal(t, 120, summary.Entities[2].WouldWrite)
}

func TestRun_CleanEmptiesCollectionsFirst(t *testing.T) {
	db := docstoretest.NewMemoryDatabase()
	_, err := db.Collection("review").InsertUnordered(context.Background(), []models.Document{
		models.ReviewDocument{ID: "stale", CreatedAt: t0, UpdatedAt: t0, ImageURLs: []string{}},
	})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Migration.Clean = true

	summary, err := New(cfg, newSource(5, 1), db).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Cleaned)
	_, found := db.MemoryCollection("review").Get("stale")
	assert.False(t, found)
	assert.Equal(t, int64(5), count(t, db, "review"))
	assert.True(t, summary.Verdict.Pass)
}

func TestRun_ReadErrorIsFatal(t *testing.T) {
	src := newSource(5, 1)
	src.likesErr = errors.New("connection refused")
	db := docstoretest.NewMemoryDatabase()

	summary, err := New(testConfig(), src, db).Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, migerrors.ErrSourceRead, migerrors.CodeOf(err))
	assert.True(t, migerrors.IsFatal(migerrors.CodeOf(err)))
	require.Len(t, summary.Entities, 1)
	assert.Zero(t, count(t, db, "reviewReport"))
	assert.Empty(t, db.MemoryCollection("review").IndexNames())
}

func TestRun_TransformFailuresAreReportedNotFatal(t *testing.T) {
	src := newSource(10, 0)
	src.reviews[3].ImageURLs = models.EncodedImageURLs(`not json`)
	db := docstoretest.NewMemoryDatabase()

	summary, err := New(testConfig(), src, db).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(9), count(t, db, "review"))
	assert.Equal(t, 1, summary.Entities[0].TransformFailures)
	require.Len(t, summary.Diagnostics.Failures, 1)
	assert.Equal(t, int64(4), summary.Diagnostics.Failures[0].SourceID)

	// the dropped record shows up as a count mismatch
	require.NotNil(t, summary.Verdict)
	assert.False(t, summary.Verdict.Pass)
	mismatch := summary.Verdict.Err()
	require.Error(t, mismatch)
	assert.Equal(t, migerrors.ErrVerifyMismatch, migerrors.CodeOf(mismatch))
	assert.False(t, migerrors.IsFatal(migerrors.CodeOf(mismatch)))
}

func TestRun_InterruptStopsBeforeNextBatch(t *testing.T) {
	src := newSource(250, 1)
	db := docstoretest.NewMemoryDatabase()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db.MemoryCollection("review").OnInsert = func(batch int) {
		if batch == 1 {
			cancel()
		}
	}

	summary, err := New(testConfig(), src, db).Run(ctx)

	require.Error(t, err)
	assert.Equal(t, migerrors.ErrInterrupted, migerrors.CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, migerrors.IsFatal(migerrors.CodeOf(err)))

	assert.Equal(t, []int{100}, db.MemoryCollection("review").Batches)
	require.Len(t, summary.Entities, 1)
	assert.Equal(t, 100, summary.Entities[0].Load.Inserted)
	assert.Zero(t, summary.Entities[0].Load.Failed)
	assert.Empty(t, db.MemoryCollection("reviewLike").Batches)
	assert.Empty(t, db.MemoryCollection("review").IndexNames())
	assert.False(t, summary.IndexesEnsured)
}

func TestRun_SkipFlags(t *testing.T) {
	cfg := testConfig()
	cfg.Migration.SkipIndexes = true
	cfg.Migration.SkipVerify = true
	db := docstoretest.NewMemoryDatabase()

	summary, err := New(cfg, newSource(3, 1), db).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.IndexesEnsured)
	assert.Nil(t, summary.Verdict)
	assert.Empty(t, db.MemoryCollection("reviewLike").IndexNames())
}

func TestRun_DuplicateLikePairFailsUniqueIndex(t *testing.T) {
	src := newSource(1, 1)
	src.likes = append(src.likes, models.ReviewLikeRow{
		ID:        99,
		ReviewID:  src.likes[0].ReviewID,
		UserID:    src.likes[0].UserID,
		CreatedAt: models.NewTimestamp(t0),
	})
	db := docstoretest.NewMemoryDatabase()

	_, err := New(testConfig(), src, db).Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, migerrors.ErrIndex, migerrors.CodeOf(err))
}

func TestNew_AssignsDistinctRunIDs(t *testing.T) {
	a := New(testConfig(), newSource(0, 0), docstoretest.NewMemoryDatabase())
	b := New(testConfig(), newSource(0, 0), docstoretest.NewMemoryDatabase())
	assert.NotEqual(t, a.RunID(), b.RunID())
}
