package fhir

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Bundle wraps an ordered list of resources for export or query responses.
// Bundles are transient; they are never persisted.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Timestamp    string        `json:"timestamp,omitempty"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// Bundle types produced by this system.
const (
	BundleCollection = "collection"
	BundleSearchset  = "searchset"
)

// NewBundle assembles a Bundle from resources in the given order. Each
// entry's fullUrl is derived solely from the resource id (urn:uuid:{id}), so
// the same resource list always yields the same entries; only the top-level
// bundle id is fresh per call. An empty resource list is valid.
func NewBundle(resources []interface{}, bundleType string) *Bundle {
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			continue
		}
		entry := BundleEntry{Resource: raw}
		if id := resourceID(r); id != "" {
			entry.FullURL = "urn:uuid:" + id
		}
		entries = append(entries, entry)
	}
	return &Bundle{
		ResourceType: "Bundle",
		ID:           uuid.NewString(),
		Type:         bundleType,
		Entry:        entries,
	}
}

// resourceID extracts the id of a resource regardless of its concrete type.
func resourceID(r interface{}) string {
	m, ok := toMap(r)
	if !ok {
		return ""
	}
	id, _ := m["id"].(string)
	return id
}

// toMap converts a resource to its generic map form via a JSON round-trip.
func toMap(v interface{}) (map[string]interface{}, bool) {
	switch val := v.(type) {
	case map[string]interface{}:
		return val, true
	case json.RawMessage:
		var m map[string]interface{}
		if err := json.Unmarshal(val, &m); err != nil {
			return nil, false
		}
		return m, true
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, false
		}
		return m, true
	}
}
