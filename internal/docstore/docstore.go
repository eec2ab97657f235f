// Package docstore is the boundary to the destination document store.
package docstore

import (
	"context"

	"github.com/nushungry/review-migrator/internal/models"
)

// Database hands out collections by name
type Database interface {
	Collection(name string) Collection
}

// Collection is the subset of document-store operations a migration needs
type Collection interface {
	Name() string
	// InsertUnordered writes docs so that a failing document does not stop
	// the remaining ones. A non-nil error means the batch as a whole could
	// not be attempted and no per-document outcome is known.
	InsertUnordered(ctx context.Context, docs []models.Document) (InsertResult, error)
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
	CreateIndexes(ctx context.Context, specs []IndexSpec) ([]string, error)
}

// InsertResult is the per-document outcome of one unordered insert
type InsertResult struct {
	Inserted    int
	WriteErrors []WriteError
	// WriteConcern is set when the server accepted the documents but could
	// not confirm the requested write concern
	WriteConcern *WriteError
}

// WriteError describes one rejected document
type WriteError struct {
	Index   int // position in the submitted batch
	Code    int
	Message string
}

// IndexKey is one field of an index, Order 1 ascending or -1 descending
type IndexKey struct {
	Field string
	Order int
}

// IndexSpec describes a destination index
type IndexSpec struct {
	Keys   []IndexKey
	Unique bool
}

// Asc is an ascending index key
func Asc(field string) IndexKey { return IndexKey{Field: field, Order: 1} }

// Desc is a descending index key
func Desc(field string) IndexKey { return IndexKey{Field: field, Order: -1} }
