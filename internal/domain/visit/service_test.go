package visit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/healsync/healsync/internal/domain/audit"
	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

func testService(store *docstore.MemStore) *Service {
	convert := legacy.NewConverter(fhir.DefaultCodeMaps())
	rec := audit.NewRecorder(store, fhir.NewAuditBuilder("HealSync"), zerolog.Nop())
	return NewService(store, convert, rec, zerolog.Nop())
}

func doctor() fhir.AccessParams {
	return fhir.AccessParams{ActorID: "d1", ActorName: "Dr. Jane Roe"}
}

func TestCreateVisit(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	svc := testService(store)

	rec := &legacy.VisitRecord{
		PatientID: "p1",
		VisitDate: "2025-05-20T09:00:00Z",
		Symptoms:  []string{"cough"},
		Diagnosis: "Bronchitis",
	}
	if err := svc.Create(ctx, rec, doctor()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected a generated visit id")
	}
	if rec.DoctorID != "d1" || rec.DoctorName != "Dr. Jane Roe" {
		t.Errorf("actor not filled in: %+v", rec)
	}

	// Legacy record written.
	if _, err := store.Get(ctx, legacy.CollectionVisits, rec.ID); err != nil {
		t.Errorf("legacy record missing: %v", err)
	}

	// Encounter twin shares the visit id.
	raw, err := store.Get(ctx, legacy.CollectionEncounters, rec.ID)
	if err != nil {
		t.Fatalf("encounter twin missing: %v", err)
	}
	var enc fhir.Encounter
	json.Unmarshal(raw, &enc)
	if enc.Subject.Reference != "Patient/p1" {
		t.Errorf("subject = %s", enc.Subject.Reference)
	}
	if enc.Participant[0].Individual.Reference != "Practitioner/d1" {
		t.Errorf("participant = %+v", enc.Participant)
	}

	// Audited as a Create against the Encounter type.
	events, _ := store.Query(ctx, legacy.CollectionAuditEvents, docstore.Query{})
	if len(events) != 1 {
		t.Fatalf("audit events = %d", len(events))
	}
	var e fhir.AuditEvent
	json.Unmarshal(events[0], &e)
	if e.Action != fhir.ActionCreate {
		t.Errorf("audit action = %s", e.Action)
	}
	if len(e.Entity) != 2 {
		t.Errorf("expected second entity for Encounter resource, got %d", len(e.Entity))
	}
}

func TestCreateVisit_MissingPatient(t *testing.T) {
	svc := testService(docstore.NewMemStore())
	if err := svc.Create(context.Background(), &legacy.VisitRecord{}, doctor()); err == nil {
		t.Fatal("expected error for missing patient id")
	}
}

func TestForPatient(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	svc := testService(store)

	for _, rec := range []*legacy.VisitRecord{
		{ID: "v1", PatientID: "p1", VisitDate: "2025-05-01T09:00:00Z"},
		{ID: "v2", PatientID: "p1", VisitDate: "2025-05-03T09:00:00Z"},
		{ID: "v3", PatientID: "p2", VisitDate: "2025-05-02T09:00:00Z"},
	} {
		if err := svc.Create(ctx, rec, doctor()); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	records, err := svc.ForPatient(ctx, "p1", 10, doctor())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if records[0].ID != "v2" {
		t.Errorf("expected newest first, got %s", records[0].ID)
	}

	// 3 creates + 1 read.
	if store.Len(legacy.CollectionAuditEvents) != 4 {
		t.Errorf("audit events = %d", store.Len(legacy.CollectionAuditEvents))
	}
}
