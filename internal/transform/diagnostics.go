package transform

import (
	"strconv"

	migerrors "github.com/nushungry/review-migrator/internal/errors"
	"github.com/nushungry/review-migrator/internal/models"
)

// Failure records one row the transformer could not convert
type Failure struct {
	Entity   models.EntityType   `json:"entity"`
	SourceID int64               `json:"source_id"`
	Code     migerrors.ErrorCode `json:"code"`
	Reason   string              `json:"reason"`
}

// Diagnostics collects per-record transform failures for a run. Failed rows are
// dropped from the load but never abort it.
type Diagnostics struct {
	Failures []Failure `json:"failures"`
}

// Add records err as a transform failure of the given row
func (d *Diagnostics) Add(entity models.EntityType, id int64, err error) {
	me := migerrors.New(migerrors.ErrTransform, string(entity)+"/"+strconv.FormatInt(id, 10), "record dropped", err)
	d.Failures = append(d.Failures, Failure{
		Entity:   entity,
		SourceID: id,
		Code:     me.Code,
		Reason:   me.Error(),
	})
}

// Count returns the number of failures recorded for entity
func (d *Diagnostics) Count(entity models.EntityType) int {
	n := 0
	for _, f := range d.Failures {
		if f.Entity == entity {
			n++
		}
	}
	return n
}

// Empty reports whether no failures were recorded
func (d *Diagnostics) Empty() bool {
	return len(d.Failures) == 0
}

// Reviews transforms rows in order, skipping and reporting failures
func Reviews(rows []models.ReviewRow, diag *Diagnostics) []models.Document {
	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := Review(row)
		if err != nil {
			diag.Add(models.EntityReview, row.ID, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// Likes transforms rows in order, skipping and reporting failures
func Likes(rows []models.ReviewLikeRow, diag *Diagnostics) []models.Document {
	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := Like(row)
		if err != nil {
			diag.Add(models.EntityLike, row.ID, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// Reports transforms rows in order, skipping and reporting failures
func Reports(rows []models.ReviewReportRow, diag *Diagnostics) []models.Document {
	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := Report(row)
		if err != nil {
			diag.Add(models.EntityReport, row.ID, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
