package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/healsync/healsync/internal/platform/docstore"
)

func docstoreMem() *docstore.MemStore {
	return docstore.NewMemStore()
}

// failingStore errors every operation.
type failingStore struct{}

var errStore = errors.New("store down")

func (failingStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	return nil, errStore
}

func (failingStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	return errStore
}

func (failingStore) Delete(ctx context.Context, collection, id string) error {
	return errStore
}

func (failingStore) Query(ctx context.Context, collection string, q docstore.Query) ([]json.RawMessage, error) {
	return nil, errStore
}

func (failingStore) SetBatch(ctx context.Context, collection string, docs map[string]interface{}) (int, error) {
	return 0, errStore
}
