// Package docstoretest provides an in-memory docstore.Database with MongoDB
// duplicate key semantics for tests.
package docstoretest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nushungry/review-migrator/internal/docstore"
	"github.com/nushungry/review-migrator/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// duplicateKeyCode mirrors the MongoDB E11000 code
const duplicateKeyCode = 11000

// MemoryDatabase is an in-process docstore.Database
type MemoryDatabase struct {
	mu          sync.Mutex
	collections map[string]*MemoryCollection
}

// NewMemoryDatabase creates an empty in-memory database
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{collections: make(map[string]*MemoryCollection)}
}

// Collection implements docstore.Database
func (m *MemoryDatabase) Collection(name string) docstore.Collection {
	return m.MemoryCollection(name)
}

// MemoryCollection returns the concrete collection for inspection
func (m *MemoryDatabase) MemoryCollection(name string) *MemoryCollection {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[name]
	if !ok {
		c = &MemoryCollection{
			name: name,
			docs: make(map[string]bson.M),
		}
		m.collections[name] = c
	}
	return c
}

// Mutations returns the number of mutating calls made on all collections
func (m *MemoryDatabase) Mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.collections {
		n += c.Mutations()
	}
	return n
}

// MemoryCollection stores documents keyed by _id
type MemoryCollection struct {
	mu      sync.Mutex
	name    string
	order   []string
	docs    map[string]bson.M
	unique  []docstore.IndexSpec
	indexes map[string]docstore.IndexSpec

	// Batches records the size of every InsertUnordered call
	Batches     []int
	DeleteCalls int
	IndexCalls  int

	// FailBatch, when set, is returned for the given 1-based batch number
	FailBatch map[int]error
	// OnInsert, when set, runs before every InsertUnordered call
	OnInsert func(batch int)
}

func (c *MemoryCollection) Name() string {
	return c.name
}

func (c *MemoryCollection) InsertUnordered(_ context.Context, docs []models.Document) (docstore.InsertResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Batches = append(c.Batches, len(docs))
	if c.OnInsert != nil {
		c.OnInsert(len(c.Batches))
	}
	if err, ok := c.FailBatch[len(c.Batches)]; ok {
		return docstore.InsertResult{}, err
	}

	var result docstore.InsertResult
	for i, d := range docs {
		m, err := toBSON(d)
		if err != nil {
			result.WriteErrors = append(result.WriteErrors, docstore.WriteError{Index: i, Code: 2, Message: err.Error()})
			continue
		}
		id := fmt.Sprint(m["_id"])
		if _, exists := c.docs[id]; exists {
			result.WriteErrors = append(result.WriteErrors, docstore.WriteError{
				Index:   i,
				Code:    duplicateKeyCode,
				Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: _id_ dup key: { _id: %q }", c.name, id),
			})
			continue
		}
		if spec, dup := c.violatesUnique(m); dup {
			result.WriteErrors = append(result.WriteErrors, docstore.WriteError{
				Index:   i,
				Code:    duplicateKeyCode,
				Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: %s", c.name, indexName(spec)),
			})
			continue
		}
		c.docs[id] = m
		c.order = append(c.order, id)
		result.Inserted++
	}
	return result, nil
}

func (c *MemoryCollection) DeleteAll(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.DeleteCalls++
	n := int64(len(c.docs))
	c.docs = make(map[string]bson.M)
	c.order = nil
	return n, nil
}

func (c *MemoryCollection) Count(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.docs)), nil
}

func (c *MemoryCollection) CreateIndexes(_ context.Context, specs []docstore.IndexSpec) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.IndexCalls++
	if c.indexes == nil {
		c.indexes = make(map[string]docstore.IndexSpec)
	}

	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		name := indexName(spec)
		if existing, ok := c.indexes[name]; ok {
			if existing.Unique != spec.Unique {
				return nil, fmt.Errorf("index %s already exists with different options", name)
			}
			names = append(names, name)
			continue
		}
		if spec.Unique {
			seen := make(map[string]bool, len(c.docs))
			for _, id := range c.order {
				key := uniqueKey(spec, c.docs[id])
				if seen[key] {
					return nil, fmt.Errorf("E11000 duplicate key error building index %s", name)
				}
				seen[key] = true
			}
			c.unique = append(c.unique, spec)
		}
		c.indexes[name] = spec
		names = append(names, name)
	}
	return names, nil
}

// IndexNames lists the indexes created on the collection
func (c *MemoryCollection) IndexNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.indexes))
	for name := range c.indexes {
		names = append(names, name)
	}
	return names
}

// Index returns the spec of a named index
func (c *MemoryCollection) Index(name string) (docstore.IndexSpec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	spec, ok := c.indexes[name]
	return spec, ok
}

// Get returns a stored document by _id
func (c *MemoryCollection) Get(id string) (bson.M, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	return doc, ok
}

// Remove deletes a document by _id
func (c *MemoryCollection) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return false
	}
	delete(c.docs, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// IDs returns document identities in insertion order
func (c *MemoryCollection) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// Mutations returns the number of mutating calls made on the collection
func (c *MemoryCollection) Mutations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Batches) + c.DeleteCalls + c.IndexCalls
}

func (c *MemoryCollection) violatesUnique(doc bson.M) (docstore.IndexSpec, bool) {
	for _, spec := range c.unique {
		key := uniqueKey(spec, doc)
		for _, id := range c.order {
			if uniqueKey(spec, c.docs[id]) == key {
				return spec, true
			}
		}
	}
	return docstore.IndexSpec{}, false
}

func uniqueKey(spec docstore.IndexSpec, doc bson.M) string {
	parts := make([]string, len(spec.Keys))
	for i, k := range spec.Keys {
		parts[i] = fmt.Sprintf("%v", doc[k.Field])
	}
	return strings.Join(parts, "\x00")
}

// indexName follows the MongoDB default naming scheme, e.g. stallId_1_createdAt_-1
func indexName(spec docstore.IndexSpec) string {
	parts := make([]string, 0, len(spec.Keys)*2)
	for _, k := range spec.Keys {
		parts = append(parts, k.Field, fmt.Sprint(k.Order))
	}
	return strings.Join(parts, "_")
}

func toBSON(doc models.Document) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
