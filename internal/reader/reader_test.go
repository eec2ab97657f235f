package reader

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nushungry/review-migrator/internal/models"
	"github.com/nushungry/review-migrator/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDB     *pgxpool.Pool
	testSchema string
)

const fixtureSchema = `
CREATE TABLE users (id BIGINT PRIMARY KEY, username TEXT, avatar_url TEXT);
CREATE TABLE stall (id BIGINT PRIMARY KEY, name TEXT);
CREATE TABLE review (
	id BIGINT PRIMARY KEY,
	stall_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	rating NUMERIC(3,1) NOT NULL,
	comment TEXT,
	image_urls JSONB,
	total_cost NUMERIC(10,2),
	number_of_people INT,
	likes_count INT,
	moderation_status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE review_likes (id BIGINT PRIMARY KEY, review_id BIGINT NOT NULL, user_id BIGINT NOT NULL, created_at TIMESTAMP NOT NULL);
CREATE TABLE review_reports (
	id BIGINT PRIMARY KEY,
	review_id BIGINT NOT NULL,
	reporter_id BIGINT NOT NULL,
	reason TEXT,
	description TEXT,
	status TEXT,
	moderator_id BIGINT,
	created_at TIMESTAMP NOT NULL,
	moderated_at TIMESTAMP
);

INSERT INTO users VALUES (1, 'alice', 'https://cdn/a.png'), (2, 'bob', NULL);
INSERT INTO stall VALUES (10, 'Chicken Rice');
INSERT INTO review VALUES
	(1, 10, 1, 4.5, 'great', '["a.jpg","b.jpg"]', 12.80, 2, 3, 'APPROVED', '2024-05-01T10:00:00Z', '2024-05-01 10:00:00'),
	(2, 10, 2, 3.0, NULL, NULL, NULL, NULL, NULL, 'APPROVED', '2024-05-02T10:00:00Z', '2024-05-02 10:00:00'),
	(3, 99, 1, 1.0, 'spam', NULL, NULL, NULL, 0, 'PENDING', '2024-05-03T10:00:00Z', '2024-05-03 10:00:00');
INSERT INTO review_likes VALUES (1, 1, 2, '2024-05-04 10:00:00'), (2, 2, 1, '2024-05-05 10:00:00');
INSERT INTO review_reports VALUES
	(1, 1, 2, 'SPAM', 'ad link', 'APPROVED', 7, '2024-05-06 10:00:00', '2024-05-07 10:00:00'),
	(2, 3, 1, 'WEIRD', NULL, 'UNKNOWN', NULL, '2024-05-08 10:00:00', NULL);
`

func TestMain(m *testing.M) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL != "" {
		ctx := context.Background()
		testSchema = "reader_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err == nil {
			cfg.ConnConfig.RuntimeParams["search_path"] = testSchema
			testDB, err = pgxpool.NewWithConfig(ctx, cfg)
		}
		if err == nil {
			_, err = testDB.Exec(ctx, "CREATE SCHEMA "+testSchema)
		}
		if err == nil {
			_, err = testDB.Exec(ctx, fixtureSchema)
		}
		if err != nil {
			fmt.Printf("Warning: Failed to prepare test database: %v\n", err)
			if testDB != nil {
				testDB.Close()
			}
			testDB = nil
		}
	}

	code := m.Run()

	if testDB != nil {
		_, _ = testDB.Exec(context.Background(), "DROP SCHEMA "+testSchema+" CASCADE")
		testDB.Close()
	}

	os.Exit(code)
}

func requireDB(t *testing.T) *Reader {
	t.Helper()
	if testDB == nil {
		t.Skip("TEST_DATABASE_URL not set or unreachable")
	}
	return New(testDB)
}

func TestFetchReviews_ApprovedOnlyNewestFirst(t *testing.T) {
	r := requireDB(t)

	rows, err := r.FetchReviews(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(2), rows[0].ID)
	assert.Equal(t, int64(1), rows[1].ID)

	first := rows[1]
	require.NotNil(t, first.StallName)
	assert.Equal(t, "Chicken Rice", *first.StallName)
	require.NotNil(t, first.Username)
	assert.Equal(t, "alice", *first.Username)
	assert.Equal(t, "4.5", first.Rating.String())
	assert.True(t, first.TotalCost.Valid)

	doc, err := transform.Review(first)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, doc.ImageURLs)
	assert.Equal(t, 12.8, *doc.TotalCost)
	assert.True(t, doc.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	second, err := transform.Review(rows[0])
	require.NoError(t, err)
	assert.Empty(t, second.ImageURLs)
	assert.Nil(t, second.TotalCost)
	assert.Equal(t, "", second.UserAvatarURL)
}

func TestFetchLikesAndReports(t *testing.T) {
	r := requireDB(t)
	ctx := context.Background()

	likes, err := r.FetchLikes(ctx)
	require.NoError(t, err)
	require.Len(t, likes, 2)
	assert.Equal(t, int64(2), likes[0].ID)

	reports, err := r.FetchReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	folded, err := transform.Report(reports[0])
	require.NoError(t, err)
	assert.Equal(t, models.ReportReasonOther, folded.Reason)
	assert.Equal(t, models.ReportStatusPending, folded.Status)
	assert.Nil(t, folded.HandledAt)

	handled, err := transform.Report(reports[1])
	require.NoError(t, err)
	require.NotNil(t, handled.HandledBy)
	assert.Equal(t, int64(7), *handled.HandledBy)
	require.NotNil(t, handled.HandledAt)
}

func TestCount_UsesApprovedFilterForReviews(t *testing.T) {
	r := requireDB(t)
	ctx := context.Background()

	n, err := r.Count(ctx, models.EntityReview)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = r.Count(ctx, models.EntityLike)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = r.Count(ctx, models.EntityReport)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCount_UnknownEntity(t *testing.T) {
	_, err := New(nil).Count(context.Background(), models.EntityType("bogus"))
	assert.Error(t, err)
}
