// Package visit manages clinical visit records filed by doctors, with an
// Encounter twin written to the FHIR collection on every create.
package visit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healsync/healsync/internal/domain/audit"
	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

type Service struct {
	store   docstore.Store
	convert *legacy.Converter
	audit   *audit.Recorder
	log     zerolog.Logger
}

func NewService(store docstore.Store, convert *legacy.Converter, rec *audit.Recorder, log zerolog.Logger) *Service {
	return &Service{store: store, convert: convert, audit: rec, log: log}
}

// Create files a visit record. The legacy write is authoritative; the
// Encounter twin is derived best-effort and its failure only logs.
func (s *Service) Create(ctx context.Context, rec *legacy.VisitRecord, actor fhir.AccessParams) error {
	if rec.PatientID == "" {
		return fmt.Errorf("visit: missing patient id")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DoctorID == "" {
		rec.DoctorID = actor.ActorID
	}
	if rec.DoctorName == "" {
		rec.DoctorName = actor.ActorName
	}

	if err := s.store.Set(ctx, legacy.CollectionVisits, rec.ID, rec); err != nil {
		return fmt.Errorf("visit: save record %s: %w", rec.ID, err)
	}

	enc := s.convert.Encounter(*rec)
	if err := fhir.Validate(enc); err != nil {
		s.log.Warn().Err(err).Str("visit_id", rec.ID).Msg("skipping invalid encounter twin")
	} else if err := s.store.Set(ctx, legacy.CollectionEncounters, enc.ID, enc); err != nil {
		s.log.Error().Err(err).Str("visit_id", rec.ID).Msg("encounter twin not written")
	}

	actor.PatientID = rec.PatientID
	actor.Action = fhir.ActionCreate
	actor.ResourceType = "Encounter"
	actor.Description = "Created visit record"
	s.audit.RecordAccess(ctx, actor)
	return nil
}

// ForPatient lists a patient's visit records and records the access.
func (s *Service) ForPatient(ctx context.Context, patientID string, limit int, actor fhir.AccessParams) ([]*legacy.VisitRecord, error) {
	docs, err := s.store.Query(ctx, legacy.CollectionVisits, docstore.Query{
		Filters: []docstore.Filter{{Field: "patientId", Op: docstore.OpEq, Value: patientID}},
		OrderBy: "visitDate",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("visit: list for patient %s: %w", patientID, err)
	}

	records := make([]*legacy.VisitRecord, 0, len(docs))
	for _, doc := range docs {
		var rec legacy.VisitRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}

	actor.PatientID = patientID
	actor.Action = fhir.ActionRead
	actor.Description = "Viewed visit records"
	s.audit.RecordAccess(ctx, actor)
	return records, nil
}
