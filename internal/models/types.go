package models

import (
	"fmt"
	"time"
)

// EntityType names one of the migrated entities
type EntityType string

const (
	EntityReview EntityType = "review"
	EntityLike   EntityType = "review_like"
	EntityReport EntityType = "review_report"
)

// EntityTypes lists entities in referential order
var EntityTypes = []EntityType{EntityReview, EntityLike, EntityReport}

// Document is anything written to the destination store
type Document interface {
	DocumentID() string
}

// Timestamp holds a source timestamp column. Drivers return either a
// native time or text depending on the column type; text is kept raw and
// parsed by the transformer.
type Timestamp struct {
	Time  time.Time
	Raw   string
	Valid bool
}

// NewTimestamp wraps a native time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// NewRawTimestamp wraps a textual timestamp
func NewRawTimestamp(s string) Timestamp {
	return Timestamp{Raw: s, Valid: true}
}

// Scan implements sql.Scanner
func (t *Timestamp) Scan(src any) error {
	*t = Timestamp{}
	switch v := src.(type) {
	case nil:
		return nil
	case time.Time:
		t.Time, t.Valid = v, true
	case string:
		t.Raw, t.Valid = v, true
	case []byte:
		t.Raw, t.Valid = string(v), true
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
	return nil
}

// ImageURLs holds the source image list, either still encoded as a JSON
// array string or already decoded by the driver
type ImageURLs struct {
	Encoded    string
	List       []string
	Structured bool
}

// EncodedImageURLs wraps a JSON-encoded image list
func EncodedImageURLs(s string) ImageURLs {
	return ImageURLs{Encoded: s}
}

// StructuredImageURLs wraps an already decoded image list
func StructuredImageURLs(urls []string) ImageURLs {
	return ImageURLs{List: urls, Structured: true}
}

// Scan implements sql.Scanner
func (u *ImageURLs) Scan(src any) error {
	*u = ImageURLs{}
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		u.Encoded = v
	case []byte:
		u.Encoded = string(v)
	case []string:
		u.List, u.Structured = v, true
	default:
		return fmt.Errorf("cannot scan %T into ImageURLs", src)
	}
	return nil
}
