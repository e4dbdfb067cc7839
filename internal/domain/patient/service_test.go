package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/healsync/healsync/internal/domain/audit"
	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

func testService(store docstore.Store) *Service {
	n := 0
	convert := &legacy.Converter{
		Codes: fhir.DefaultCodeMaps(),
		NewID: func() string {
			n++
			return fmt.Sprintf("gen-%d", n)
		},
		Now: func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	events := fhir.NewAuditBuilder("HealSync")
	rec := audit.NewRecorder(store, events, zerolog.Nop())
	return NewService(store, convert, rec, zerolog.Nop())
}

func testProfile() *legacy.Profile {
	return &legacy.Profile{
		Basic: legacy.BasicProfile{
			FullName:   "Pat Example",
			Gender:     "male",
			DOB:        "1985-01-01",
			BloodGroup: "A+",
			Height:     &legacy.Measurement{Value: 180, Unit: "cm"},
		},
		Medical: legacy.MedicalProfile{
			ChronicConditions: []string{"Diabetes"},
			Allergies:         []string{"Peanuts"},
		},
	}
}

func collectionTypes(t *testing.T, store *docstore.MemStore, collection string) map[string]int {
	t.Helper()
	docs, err := store.Query(context.Background(), collection, docstore.Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	counts := map[string]int{}
	for _, doc := range docs {
		var envelope struct {
			ResourceType string `json:"resourceType"`
		}
		json.Unmarshal(doc, &envelope)
		counts[envelope.ResourceType]++
	}
	return counts
}

func actor() fhir.AccessParams {
	return fhir.AccessParams{ActorID: "u1", ActorName: "Pat Example"}
}

func TestSaveProfileDualWrite(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	svc := testService(store)

	store.Set(ctx, legacy.CollectionUsers, "u1",
		legacy.UserRecord{UID: "u1", Name: "Pat Example", Email: "pat@example.com"})

	if err := svc.SaveProfile(ctx, "u1", testProfile(), actor()); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Legacy document is the system of record.
	if _, err := store.Get(ctx, legacy.CollectionProfiles, "u1"); err != nil {
		t.Fatalf("legacy profile missing: %v", err)
	}

	counts := collectionTypes(t, store, legacy.PatientCollection("u1"))
	if counts["Patient"] != 1 {
		t.Errorf("patients = %d", counts["Patient"])
	}
	if counts["Observation"] != 2 {
		t.Errorf("observations = %d (height + blood group)", counts["Observation"])
	}
	if counts["Condition"] != 1 {
		t.Errorf("conditions = %d", counts["Condition"])
	}
	if counts["AllergyIntolerance"] != 1 {
		t.Errorf("allergies = %d", counts["AllergyIntolerance"])
	}

	// Patient resource keeps the stable id.
	if _, err := store.Get(ctx, legacy.PatientCollection("u1"), "u1"); err != nil {
		t.Errorf("patient resource not at stable id: %v", err)
	}

	// The save was audited as an Update.
	if store.Len(legacy.CollectionAuditEvents) != 1 {
		t.Errorf("audit events = %d", store.Len(legacy.CollectionAuditEvents))
	}
}

func TestSaveProfileRebuildsDerivedResources(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	svc := testService(store)

	if err := svc.SaveProfile(ctx, "u1", testProfile(), actor()); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Second save with the allergy and a condition removed must not leave
	// stale derived resources behind.
	slim := testProfile()
	slim.Medical.Allergies = nil
	slim.Medical.ChronicConditions = nil
	if err := svc.SaveProfile(ctx, "u1", slim, actor()); err != nil {
		t.Fatalf("second save: %v", err)
	}

	counts := collectionTypes(t, store, legacy.PatientCollection("u1"))
	if counts["AllergyIntolerance"] != 0 {
		t.Errorf("stale allergy survived: %d", counts["AllergyIntolerance"])
	}
	if counts["Condition"] != 0 {
		t.Errorf("stale condition survived: %d", counts["Condition"])
	}
	if counts["Observation"] != 2 {
		t.Errorf("observations = %d", counts["Observation"])
	}
	if counts["Patient"] != 1 {
		t.Errorf("patients = %d", counts["Patient"])
	}
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	svc := testService(store)

	if _, err := svc.GetProfile(ctx, "u1", actor()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := svc.SaveProfile(ctx, "u1", testProfile(), actor()); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := svc.GetProfile(ctx, "u1", actor())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Basic.FullName != "Pat Example" {
		t.Errorf("profile = %+v", got.Basic)
	}

	// One Update event from the save, one Read event from the get.
	if store.Len(legacy.CollectionAuditEvents) != 2 {
		t.Errorf("audit events = %d", store.Len(legacy.CollectionAuditEvents))
	}
}
