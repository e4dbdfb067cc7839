package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

func testService(store *docstore.MemStore) *Service {
	return NewService(store, legacy.NewConverter(fhir.DefaultCodeMaps()), zerolog.Nop())
}

func TestRegisterDoctor(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	svc := testService(store)

	p, err := svc.RegisterDoctor(ctx, &legacy.DoctorRecord{
		UID: "d1", Name: "Jane Roe", LicenseNo: "MD-1234",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.ID != "d1" {
		t.Errorf("practitioner id = %s", p.ID)
	}

	// Account document carries the doctor role.
	raw, err := store.Get(ctx, legacy.CollectionUsers, "d1")
	if err != nil {
		t.Fatalf("user missing: %v", err)
	}
	var user legacy.UserRecord
	json.Unmarshal(raw, &user)
	if user.Role != "doctor" || user.DoctorID != "MD-1234" {
		t.Errorf("user = %+v", user)
	}

	// Practitioner twin persisted.
	if _, err := store.Get(ctx, legacy.CollectionPractitioners, "d1"); err != nil {
		t.Errorf("practitioner twin missing: %v", err)
	}
}

func TestRegisterOrganization(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemStore()
	svc := testService(store)

	org, err := svc.RegisterOrganization(ctx, &legacy.OrgRecord{
		ID: "org-1", Name: "City General", Type: "lab", Active: true,
		Capabilities: []string{"laboratory", "radiology"},
		Specialties:  []string{"Pathology"},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if org.Type[0].Coding[0].Code != "dept" {
		t.Errorf("org type = %+v", org.Type)
	}

	// Legacy record, twin, and one service per capability.
	if _, err := store.Get(ctx, legacy.CollectionOrgs, "org-1"); err != nil {
		t.Errorf("legacy record missing: %v", err)
	}
	if store.Len(legacy.CollectionOrganizations) != 3 {
		t.Errorf("fhir docs = %d, want org + 2 services", store.Len(legacy.CollectionOrganizations))
	}

	resources, err := svc.OrganizationResources(ctx, "org-1")
	if err != nil {
		t.Fatalf("resources: %v", err)
	}
	if len(resources) != 3 {
		t.Fatalf("resources = %d", len(resources))
	}
	var first struct {
		ResourceType string `json:"resourceType"`
	}
	json.Unmarshal(resources[0], &first)
	if first.ResourceType != "Organization" {
		t.Errorf("organization must lead, got %s", first.ResourceType)
	}
}

func TestRegisterOrganization_GeneratesID(t *testing.T) {
	svc := testService(docstore.NewMemStore())
	rec := &legacy.OrgRecord{Name: "Clinic", Type: "clinic", Active: true}
	org, err := svc.RegisterOrganization(context.Background(), rec)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.ID == "" || org.ID != rec.ID {
		t.Errorf("ids = %q / %q", rec.ID, org.ID)
	}
}
