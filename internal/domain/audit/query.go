package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

// DefaultTrailCap bounds audit trail reads when the caller gives no limit.
const DefaultTrailCap = 50

// Queries reads AuditEvents back out of the audit collection. Results are
// always ordered newest first and capped.
type Queries struct {
	store docstore.Store
	cap   int
}

func NewQueries(store docstore.Store, cap int) *Queries {
	if cap <= 0 {
		cap = DefaultTrailCap
	}
	return &Queries{store: store, cap: cap}
}

// ForPatient returns events whose first entity references the given patient.
func (q *Queries) ForPatient(ctx context.Context, patientID string, limit int) ([]*fhir.AuditEvent, error) {
	return q.ForEntity(ctx, "Patient/"+patientID, limit)
}

// ForEntity returns events touching any resource, matched by its raw
// reference string, e.g. "Encounter/v1".
func (q *Queries) ForEntity(ctx context.Context, reference string, limit int) ([]*fhir.AuditEvent, error) {
	return q.run(ctx, docstore.Filter{
		Field: "entity",
		Op:    docstore.OpContains,
		Value: map[string]interface{}{
			"what": map[string]interface{}{"reference": reference},
		},
	}, limit)
}

// ForActor returns events performed by the given user.
func (q *Queries) ForActor(ctx context.Context, actorID string, limit int) ([]*fhir.AuditEvent, error) {
	return q.run(ctx, docstore.Filter{
		Field: "agent",
		Op:    docstore.OpContains,
		Value: map[string]interface{}{
			"who": map[string]interface{}{"reference": "Practitioner/" + actorID},
		},
	}, limit)
}

func (q *Queries) run(ctx context.Context, filter docstore.Filter, limit int) ([]*fhir.AuditEvent, error) {
	if limit <= 0 || limit > q.cap {
		limit = q.cap
	}
	docs, err := q.store.Query(ctx, legacy.CollectionAuditEvents, docstore.Query{
		Filters: []docstore.Filter{filter},
		OrderBy: "recorded",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}

	events := make([]*fhir.AuditEvent, 0, len(docs))
	for _, doc := range docs {
		var e fhir.AuditEvent
		if err := json.Unmarshal(doc, &e); err != nil {
			// A malformed document must not hide the rest of the trail.
			continue
		}
		events = append(events, &e)
	}
	return events, nil
}
