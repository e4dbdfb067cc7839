package fhir

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	if err := Validate(&Patient{ResourceType: "Patient", ID: "p1"}); err != nil {
		t.Errorf("valid patient rejected: %v", err)
	}
	if err := Validate(&Patient{ID: "p1"}); err == nil {
		t.Error("missing resourceType accepted")
	}
	if err := Validate(&Patient{ResourceType: "Patient"}); err == nil {
		t.Error("missing id accepted")
	}
	if err := Validate("not an object"); err == nil {
		t.Error("non-object accepted")
	}
}

func TestValidateAuditEvent(t *testing.T) {
	b := NewAuditBuilder("HealSync")
	b.NewID = func() string { return "e1" }
	b.Now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	e := b.AccessEvent(AccessParams{ActorID: "a", ActorName: "A", PatientID: "p"})
	if err := ValidateAuditEvent(e); err != nil {
		t.Fatalf("builder output rejected: %v", err)
	}

	mutations := []struct {
		name string
		mut  func(*AuditEvent)
	}{
		{"missing id", func(e *AuditEvent) { e.ID = "" }},
		{"missing type", func(e *AuditEvent) { e.Type = nil }},
		{"missing action", func(e *AuditEvent) { e.Action = "" }},
		{"missing recorded", func(e *AuditEvent) { e.Recorded = "" }},
		{"missing outcome", func(e *AuditEvent) { e.Outcome = "" }},
		{"missing agent", func(e *AuditEvent) { e.Agent = nil }},
		{"missing source", func(e *AuditEvent) { e.Source = nil }},
		{"wrong resource type", func(e *AuditEvent) { e.ResourceType = "Patient" }},
	}
	for _, tc := range mutations {
		broken := b.AccessEvent(AccessParams{ActorID: "a", ActorName: "A", PatientID: "p"})
		tc.mut(broken)
		if err := ValidateAuditEvent(broken); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}

	if err := ValidateAuditEvent(nil); err == nil {
		t.Error("nil event accepted")
	}
}
