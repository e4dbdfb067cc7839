package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

func testDriver(store docstore.Store, batchCap int) *Driver {
	n := 0
	convert := &legacy.Converter{
		Codes: fhir.DefaultCodeMaps(),
		NewID: func() string {
			n++
			return fmt.Sprintf("gen-%d", n)
		},
		Now: func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return NewDriver(store, convert, batchCap, zerolog.Nop())
}

func seedLegacy(t *testing.T, store *docstore.MemStore) {
	t.Helper()
	ctx := context.Background()

	set := func(collection, id string, doc interface{}) {
		if err := store.Set(ctx, collection, id, doc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	set(legacy.CollectionUsers, "u1", legacy.UserRecord{UID: "u1", Name: "Pat One", Role: "user"})
	set(legacy.CollectionUsers, "u2", legacy.UserRecord{UID: "u2", Name: "Pat Two", Role: "user"})
	set(legacy.CollectionUsers, "d1", legacy.UserRecord{UID: "d1", Name: "Jane Roe", Role: "doctor", DoctorID: "MD-1"})

	set(legacy.CollectionProfiles, "u1", legacy.Profile{
		Basic: legacy.BasicProfile{
			FullName: "Pat One", Gender: "male", BloodGroup: "A+",
			Height: &legacy.Measurement{Value: 180, Unit: "cm"},
		},
		Medical: legacy.MedicalProfile{ChronicConditions: []string{"Diabetes"}},
	})

	set(legacy.CollectionVisits, "v1", legacy.VisitRecord{
		ID: "v1", PatientID: "u1", DoctorID: "d1", VisitDate: "2025-05-01T09:00:00Z",
	})
	set(legacy.CollectionVisits, "v2", legacy.VisitRecord{
		ID: "v2", PatientID: "u2", DoctorID: "d1", VisitDate: "2025-05-02T09:00:00Z",
	})

	set(legacy.CollectionOrgs, "org-1", legacy.OrgRecord{
		ID: "org-1", Name: "City General", Type: "hospital", Active: true,
		Capabilities: []string{"emergency", "surgery"},
	})
}

func TestMigrateAll(t *testing.T) {
	store := docstore.NewMemStore()
	seedLegacy(t, store)
	d := testDriver(store, 500)

	report := d.MigrateAll(context.Background())

	if report.Patients.Found != 2 {
		t.Errorf("patients found = %d", report.Patients.Found)
	}
	// u1: Patient + height + blood group + condition = 4; u2: Patient only.
	if report.Patients.Converted != 5 {
		t.Errorf("patients converted = %d", report.Patients.Converted)
	}

	if report.Encounters.Found != 2 || report.Encounters.Converted != 2 {
		t.Errorf("encounters = %+v", report.Encounters)
	}
	if report.Practitioners.Found != 1 || report.Practitioners.Converted != 1 {
		t.Errorf("practitioners = %+v", report.Practitioners)
	}
	// org + 2 healthcare services
	if report.Organizations.Found != 1 || report.Organizations.Converted != 3 {
		t.Errorf("organizations = %+v", report.Organizations)
	}

	found, converted := report.Total()
	if found != 6 || converted != 11 {
		t.Errorf("total = %d/%d", found, converted)
	}

	// Twins landed in their collections under stable ids.
	ctx := context.Background()
	if _, err := store.Get(ctx, legacy.PatientCollection("u1"), "u1"); err != nil {
		t.Errorf("patient twin missing: %v", err)
	}
	if _, err := store.Get(ctx, legacy.CollectionEncounters, "v1"); err != nil {
		t.Errorf("encounter twin missing: %v", err)
	}
	if _, err := store.Get(ctx, legacy.CollectionPractitioners, "d1"); err != nil {
		t.Errorf("practitioner twin missing: %v", err)
	}
	if _, err := store.Get(ctx, legacy.CollectionOrganizations, "org-1"); err != nil {
		t.Errorf("organization twin missing: %v", err)
	}
}

func TestMigrateAllIdempotent(t *testing.T) {
	store := docstore.NewMemStore()
	seedLegacy(t, store)
	d := testDriver(store, 500)

	d.MigrateAll(context.Background())
	encountersAfterFirst := store.Len(legacy.CollectionEncounters)

	d.MigrateAll(context.Background())
	if got := store.Len(legacy.CollectionEncounters); got != encountersAfterFirst {
		t.Errorf("re-run duplicated encounters: %d != %d", got, encountersAfterFirst)
	}

	var enc fhir.Encounter
	raw, err := store.Get(context.Background(), legacy.CollectionEncounters, "v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	json.Unmarshal(raw, &enc)
	if enc.ID != "v1" {
		t.Errorf("encounter id = %s", enc.ID)
	}
}

// batchCountingStore wraps MemStore and records every batch size.
type batchCountingStore struct {
	*docstore.MemStore
	batches []int
}

func (s *batchCountingStore) SetBatch(ctx context.Context, collection string, docs map[string]interface{}) (int, error) {
	s.batches = append(s.batches, len(docs))
	return s.MemStore.SetBatch(ctx, collection, docs)
}

func TestMigrateBatching(t *testing.T) {
	ctx := context.Background()
	store := &batchCountingStore{MemStore: docstore.NewMemStore()}

	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("v%d", i)
		store.Set(ctx, legacy.CollectionVisits, id, legacy.VisitRecord{
			ID: id, PatientID: "u1", DoctorID: "d1",
			VisitDate: fmt.Sprintf("2025-05-0%dT09:00:00Z", i+1),
		})
	}

	d := testDriver(store, 3)
	report := d.migrateEncounters(ctx)

	if report.Found != 7 || report.Converted != 7 {
		t.Fatalf("report = %+v", report)
	}
	if len(store.batches) != 3 {
		t.Fatalf("batches = %v", store.batches)
	}
	for _, size := range store.batches {
		if size > 3 {
			t.Errorf("batch over cap: %v", store.batches)
		}
	}
}

func TestMigratePatients_MissingProfileTolerated(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	store.Set(ctx, legacy.CollectionUsers, "u9", legacy.UserRecord{UID: "u9", Name: "No Profile", Role: "user"})

	d := testDriver(store, 500)
	rep := d.migratePatients(ctx)

	if rep.Found != 1 || rep.Converted != 1 || rep.Failed != 0 {
		t.Errorf("report = %+v", rep)
	}

	raw, err := store.Get(ctx, legacy.PatientCollection("u9"), "u9")
	if err != nil {
		t.Fatalf("patient twin missing: %v", err)
	}
	var p fhir.Patient
	json.Unmarshal(raw, &p)
	if p.Gender != "unknown" {
		t.Errorf("gender = %s", p.Gender)
	}
}
