// Package reader extracts review data from the source store.
package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nushungry/review-migrator/internal/logging"
	"github.com/nushungry/review-migrator/internal/models"
	"github.com/nushungry/review-migrator/internal/monitoring"
	"github.com/rs/zerolog"
)

// Querier is the read side of a pgx connection or pool
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const reviewsQuery = `
SELECT
	r.id,
	r.stall_id,
	s.name AS stall_name,
	r.user_id,
	u.username,
	u.avatar_url AS user_avatar_url,
	r.rating,
	r.comment,
	r.image_urls::text AS image_urls,
	r.total_cost,
	r.number_of_people,
	r.likes_count,
	r.created_at,
	r.updated_at
FROM review r
LEFT JOIN users u ON r.user_id = u.id
LEFT JOIN stall s ON r.stall_id = s.id
WHERE r.moderation_status = $1
ORDER BY r.created_at DESC`

const likesQuery = `
SELECT
	id,
	review_id,
	user_id,
	created_at
FROM review_likes
ORDER BY created_at DESC`

const reportsQuery = `
SELECT
	id,
	review_id,
	reporter_id,
	reason,
	description,
	status,
	moderator_id AS handled_by,
	created_at,
	moderated_at AS handled_at
FROM review_reports
ORDER BY created_at DESC`

const (
	countReviewsQuery = `SELECT COUNT(*) FROM review WHERE moderation_status = $1`
	countLikesQuery   = `SELECT COUNT(*) FROM review_likes`
	countReportsQuery = `SELECT COUNT(*) FROM review_reports`
)

// Reader runs the extraction queries
type Reader struct {
	db     Querier
	logger zerolog.Logger
}

// New creates a reader over db
func New(db Querier) *Reader {
	return &Reader{
		db:     db,
		logger: logging.NewLogger("reader"),
	}
}

// FetchReviews returns every approved review, newest first, with stall and
// author columns joined in
func (r *Reader) FetchReviews(ctx context.Context) ([]models.ReviewRow, error) {
	return fetch[models.ReviewRow](ctx, r, models.EntityReview, reviewsQuery, models.ModerationStatusApproved)
}

// FetchLikes returns every like, newest first
func (r *Reader) FetchLikes(ctx context.Context) ([]models.ReviewLikeRow, error) {
	return fetch[models.ReviewLikeRow](ctx, r, models.EntityLike, likesQuery)
}

// FetchReports returns every report, newest first
func (r *Reader) FetchReports(ctx context.Context) ([]models.ReviewReportRow, error) {
	return fetch[models.ReviewReportRow](ctx, r, models.EntityReport, reportsQuery)
}

// Count returns the number of source rows eligible for migration. Reviews
// use the same approved filter as FetchReviews.
func (r *Reader) Count(ctx context.Context, entity models.EntityType) (int64, error) {
	var (
		query string
		args  []any
	)
	switch entity {
	case models.EntityReview:
		query, args = countReviewsQuery, []any{models.ModerationStatusApproved}
	case models.EntityLike:
		query = countLikesQuery
	case models.EntityReport:
		query = countReportsQuery
	default:
		return 0, fmt.Errorf("unknown entity type %q", entity)
	}

	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s rows: %w", entity, err)
	}
	return n, nil
}

func fetch[T any](ctx context.Context, r *Reader, entity models.EntityType, query string, args ...any) ([]T, error) {
	start := time.Now()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s rows: %w", entity, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s rows: %w", entity, err)
	}

	elapsed := time.Since(start)
	monitoring.RecordRead(string(entity), len(out), elapsed)
	r.logger.Info().
		Str("entity", string(entity)).
		Int("rows", len(out)).
		Dur("latency", elapsed).
		Msg("Fetched source rows")

	return out, nil
}
