// Package docstore provides the document storage collaborator used by the
// FHIR transformation and audit subsystems. Documents are plain JSON objects
// keyed by a logical collection path and a document id, with equality and
// containment queries, ordering, a result limit, and batched writes.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when no document exists under the given key.
var ErrNotFound = errors.New("docstore: document not found")

// Op selects how a filter value is matched against a document field.
type Op string

const (
	// OpEq matches when the value at Field equals the filter value.
	OpEq Op = "=="
	// OpContains matches when the array at Field contains an element that is
	// a structural superset of the filter value.
	OpContains Op = "array-contains"
)

// Filter constrains a query to documents matching one field.
// Field is a dot-separated path into the document ("subject.reference").
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Query describes a filtered, ordered, capped read of one collection.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is the key-value-with-query contract the engine consumes. A batch
// write either succeeds entirely or reports how many documents were written
// before the failure.
type Store interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Set(ctx context.Context, collection, id string, doc interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]json.RawMessage, error)
	SetBatch(ctx context.Context, collection string, docs map[string]interface{}) (int, error)
}
