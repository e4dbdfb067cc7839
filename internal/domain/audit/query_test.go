package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/healsync/healsync/internal/platform/fhir"
)

func seedTrail(t *testing.T, r *Recorder, events *fhir.AuditBuilder, patientID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		e := events.AccessEvent(fhir.AccessParams{
			ActorID:   fmt.Sprintf("doc-%d", i%2),
			ActorName: fmt.Sprintf("Dr. %d", i%2),
			PatientID: patientID,
		})
		e.Recorded = time.Date(2025, 6, 1, 10, i, 0, 0, time.UTC).Format(time.RFC3339)
		if err := r.Record(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestQueriesForPatient(t *testing.T) {
	ctx := context.Background()
	store := docstoreMem()
	events := testEvents("q")
	r := NewRecorder(store, events, zerolog.Nop())

	seedTrail(t, r, events, "p1", 4)
	seedTrail(t, r, events, "p2", 2)

	q := NewQueries(store, 50)
	got, err := q.ForPatient(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 events for p1, got %d", len(got))
	}
	// Newest first.
	for i := 1; i < len(got); i++ {
		if got[i-1].Recorded < got[i].Recorded {
			t.Errorf("events out of order: %s before %s", got[i-1].Recorded, got[i].Recorded)
		}
	}
}

func TestQueriesForActor(t *testing.T) {
	ctx := context.Background()
	store := docstoreMem()
	events := testEvents("q")
	r := NewRecorder(store, events, zerolog.Nop())

	seedTrail(t, r, events, "p1", 4) // doc-0 twice, doc-1 twice

	q := NewQueries(store, 50)
	got, err := q.ForActor(ctx, "doc-0", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for doc-0, got %d", len(got))
	}
}

func TestQueriesForEntity(t *testing.T) {
	ctx := context.Background()
	store := docstoreMem()
	events := testEvents("q")
	r := NewRecorder(store, events, zerolog.Nop())

	for i, ref := range []string{"Encounter/v1", "Encounter/v1", "Encounter/v2"} {
		e := events.AccessEvent(fhir.AccessParams{
			ActorID:      "doc-0",
			ActorName:    "Dr. 0",
			PatientID:    "p1",
			ResourceType: "Encounter",
		})
		e.Entity[1].What.Reference = ref
		e.Recorded = time.Date(2025, 6, 1, 10, i, 0, 0, time.UTC).Format(time.RFC3339)
		if err := r.Record(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	q := NewQueries(store, 50)
	got, err := q.ForEntity(ctx, "Encounter/v1", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for Encounter/v1, got %d", len(got))
	}
	if got[0].Recorded < got[1].Recorded {
		t.Errorf("events out of order: %s before %s", got[0].Recorded, got[1].Recorded)
	}
}

func TestQueriesCap(t *testing.T) {
	ctx := context.Background()
	store := docstoreMem()
	events := testEvents("q")
	r := NewRecorder(store, events, zerolog.Nop())

	seedTrail(t, r, events, "p1", 8)

	q := NewQueries(store, 5)
	got, err := q.ForPatient(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("cap not applied, got %d", len(got))
	}

	// A requested limit above the cap is clamped.
	got, _ = q.ForPatient(ctx, "p1", 100)
	if len(got) != 5 {
		t.Errorf("limit above cap not clamped, got %d", len(got))
	}

	// A smaller explicit limit wins.
	got, _ = q.ForPatient(ctx, "p1", 2)
	if len(got) != 2 {
		t.Errorf("explicit limit ignored, got %d", len(got))
	}
}

func TestQueriesEmptyTrail(t *testing.T) {
	q := NewQueries(docstoreMem(), 50)
	got, err := q.ForPatient(context.Background(), "nobody", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty trail, got %d", len(got))
	}
}

func TestServicePatientTrail(t *testing.T) {
	ctx := context.Background()
	store := docstoreMem()
	events := testEvents("s")
	r := NewRecorder(store, events, zerolog.Nop())
	seedTrail(t, r, events, "p1", 3)

	svc := NewService(r, NewQueries(store, 50))
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	trail, err := svc.PatientTrail(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(trail.Groups) != 1 || trail.Groups[0].Label != "Today" {
		t.Errorf("groups = %+v", trail.Groups)
	}
	if trail.Summary.TotalAccesses != 3 {
		t.Errorf("total = %d", trail.Summary.TotalAccesses)
	}
	if trail.Summary.UniqueDoctors != 2 {
		t.Errorf("doctors = %d", trail.Summary.UniqueDoctors)
	}
	if len(trail.Concerns) != 0 {
		t.Errorf("unexpected concerns: %+v", trail.Concerns)
	}
}
