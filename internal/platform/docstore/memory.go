package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory Store used in tests and local development. It
// mirrors the Postgres implementation's matching semantics: equality on a
// dotted path and structural containment on arrays.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]map[string]json.RawMessage
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]map[string]json.RawMessage)}
}

func (s *MemStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *MemStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: marshal %s/%s: %w", collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]json.RawMessage)
	}
	s.data[collection][id] = body
	return nil
}

func (s *MemStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	return nil
}

func (s *MemStore) Query(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type keyed struct {
		sortKey string
		doc     json.RawMessage
	}
	var matched []keyed

	for _, raw := range s.data[collection] {
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		if !matchesAll(doc, q.Filters) {
			continue
		}
		key := ""
		if q.OrderBy != "" {
			key = fmt.Sprintf("%v", valueAtPath(doc, q.OrderBy))
		}
		matched = append(matched, keyed{sortKey: key, doc: raw})
	}

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			if q.Desc {
				return matched[i].sortKey > matched[j].sortKey
			}
			return matched[i].sortKey < matched[j].sortKey
		})
	}

	docs := make([]json.RawMessage, 0, len(matched))
	for _, m := range matched {
		docs = append(docs, m.doc)
		if q.Limit > 0 && len(docs) >= q.Limit {
			break
		}
	}
	return docs, nil
}

func (s *MemStore) SetBatch(ctx context.Context, collection string, docs map[string]interface{}) (int, error) {
	written := 0
	for id, doc := range docs {
		if err := s.Set(ctx, collection, id, doc); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Len reports the number of documents in a collection.
func (s *MemStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[collection])
}

func matchesAll(doc map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		switch f.Op {
		case OpContains:
			arr, ok := valueAtPath(doc, f.Field).([]interface{})
			if !ok {
				return false
			}
			found := false
			for _, elem := range arr {
				if isSuperset(elem, f.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			got := valueAtPath(doc, f.Field)
			if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", f.Value) {
				return false
			}
		}
	}
	return true
}

func valueAtPath(doc map[string]interface{}, path string) interface{} {
	var cur interface{} = doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

// isSuperset reports whether got structurally contains want: every key in a
// want map must be a superset-match in got, scalars compare by string form.
func isSuperset(got, want interface{}) bool {
	wm, ok := normalize(want).(map[string]interface{})
	if !ok {
		return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", want)
	}
	gm, ok := got.(map[string]interface{})
	if !ok {
		return false
	}
	for k, wv := range wm {
		gv, ok := gm[k]
		if !ok || !isSuperset(gv, wv) {
			return false
		}
	}
	return true
}

// normalize converts arbitrary filter values (typed structs, nested maps)
// into the generic form documents decode to.
func normalize(v interface{}) interface{} {
	body, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return v
	}
	return out
}
