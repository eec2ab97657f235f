// Package transform maps source rows onto destination documents.
//
// Every function here is pure: the same row always yields the same
// document and nothing performs I/O.
package transform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nushungry/review-migrator/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func rowValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Layouts accepted for textual timestamps, tried in order. Values without a
// zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Review transforms an approved review row into its document
func Review(row models.ReviewRow) (models.ReviewDocument, error) {
	if err := rowValidator().Struct(row); err != nil {
		return models.ReviewDocument{}, fmt.Errorf("invalid review row: %w", err)
	}

	imageURLs, err := DecodeImageURLs(row.ImageURLs)
	if err != nil {
		return models.ReviewDocument{}, err
	}
	createdAt, err := NormalizeTime(row.CreatedAt)
	if err != nil {
		return models.ReviewDocument{}, fmt.Errorf("created_at: %w", err)
	}
	updatedAt, err := NormalizeTime(row.UpdatedAt)
	if err != nil {
		return models.ReviewDocument{}, fmt.Errorf("updated_at: %w", err)
	}

	doc := models.ReviewDocument{
		ID:            FormatID(row.ID),
		StallID:       row.StallID,
		StallName:     deref(row.StallName),
		UserID:        row.UserID,
		Username:      deref(row.Username),
		UserAvatarURL: deref(row.UserAvatarURL),
		Rating:        row.Rating.InexactFloat64(),
		Comment:       deref(row.Comment),
		ImageURLs:     imageURLs,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
	if row.TotalCost.Valid {
		cost := row.TotalCost.Decimal.InexactFloat64()
		doc.TotalCost = &cost
	}
	if row.NumberOfPeople != nil {
		n := int(*row.NumberOfPeople)
		doc.NumberOfPeople = &n
	}
	if row.LikesCount != nil {
		doc.LikesCount = int(*row.LikesCount)
	}

	return doc, nil
}

// Like transforms a like row into its document
func Like(row models.ReviewLikeRow) (models.ReviewLikeDocument, error) {
	if err := rowValidator().Struct(row); err != nil {
		return models.ReviewLikeDocument{}, fmt.Errorf("invalid like row: %w", err)
	}

	createdAt, err := NormalizeTime(row.CreatedAt)
	if err != nil {
		return models.ReviewLikeDocument{}, fmt.Errorf("created_at: %w", err)
	}

	return models.ReviewLikeDocument{
		ID:        FormatID(row.ID),
		ReviewID:  FormatID(row.ReviewID),
		UserID:    row.UserID,
		CreatedAt: createdAt,
	}, nil
}

// Report transforms a report row into its document
func Report(row models.ReviewReportRow) (models.ReviewReportDocument, error) {
	if err := rowValidator().Struct(row); err != nil {
		return models.ReviewReportDocument{}, fmt.Errorf("invalid report row: %w", err)
	}

	createdAt, err := NormalizeTime(row.CreatedAt)
	if err != nil {
		return models.ReviewReportDocument{}, fmt.Errorf("created_at: %w", err)
	}

	doc := models.ReviewReportDocument{
		ID:           FormatID(row.ID),
		ReviewID:     FormatID(row.ReviewID),
		ReporterID:   row.ReporterID,
		ReporterName: "",
		Reason:       models.ParseReportReason(row.Reason),
		Description:  deref(row.Description),
		Status:       models.ParseReportStatus(row.Status),
		HandledBy:    row.HandledBy,
		HandleNote:   "",
		CreatedAt:    createdAt,
	}
	if row.HandledAt.Valid {
		handledAt, err := NormalizeTime(row.HandledAt)
		if err != nil {
			return models.ReviewReportDocument{}, fmt.Errorf("handled_at: %w", err)
		}
		doc.HandledAt = &handledAt
	}

	return doc, nil
}

// FormatID derives the destination identity from a source id
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// DecodeImageURLs returns the ordered image list of a review. An empty or
// missing value yields an empty list; malformed JSON is an error.
func DecodeImageURLs(u models.ImageURLs) ([]string, error) {
	if u.Structured {
		out := make([]string, len(u.List))
		copy(out, u.List)
		return out, nil
	}

	encoded := strings.TrimSpace(u.Encoded)
	if encoded == "" {
		return []string{}, nil
	}

	var urls []string
	if err := json.Unmarshal([]byte(encoded), &urls); err != nil {
		return nil, fmt.Errorf("image_urls: malformed JSON array: %w", err)
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// NormalizeTime converts a source timestamp to UTC, parsing textual values
func NormalizeTime(ts models.Timestamp) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("timestamp is null")
	}
	if ts.Raw == "" {
		return ts.Time.UTC(), nil
	}

	raw := strings.TrimSpace(ts.Raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", ts.Raw)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
