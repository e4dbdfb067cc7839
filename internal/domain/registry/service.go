// Package registry handles doctor and organization registration, writing the
// legacy document and its FHIR twin together.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

type Service struct {
	store   docstore.Store
	convert *legacy.Converter
	log     zerolog.Logger
}

func NewService(store docstore.Store, convert *legacy.Converter, log zerolog.Logger) *Service {
	return &Service{store: store, convert: convert, log: log}
}

// RegisterDoctor stores a doctor account and writes its Practitioner twin.
func (s *Service) RegisterDoctor(ctx context.Context, rec *legacy.DoctorRecord) (*fhir.Practitioner, error) {
	if rec.UID == "" {
		rec.UID = uuid.NewString()
	}

	user := legacy.UserRecord{
		UID:      rec.UID,
		Name:     rec.Name,
		Role:     "doctor",
		DoctorID: rec.LicenseNo,
	}
	if err := s.store.Set(ctx, legacy.CollectionUsers, user.UID, user); err != nil {
		return nil, fmt.Errorf("registry: save doctor %s: %w", rec.UID, err)
	}

	p := s.convert.Practitioner(*rec)
	if err := fhir.Validate(p); err != nil {
		return nil, fmt.Errorf("registry: invalid practitioner: %w", err)
	}
	if err := s.store.Set(ctx, legacy.CollectionPractitioners, p.ID, p); err != nil {
		return nil, fmt.Errorf("registry: save practitioner %s: %w", p.ID, err)
	}
	return p, nil
}

// RegisterOrganization stores an institution record and writes its
// Organization twin plus one HealthcareService per declared capability.
func (s *Service) RegisterOrganization(ctx context.Context, rec *legacy.OrgRecord) (*fhir.Organization, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if err := s.store.Set(ctx, legacy.CollectionOrgs, rec.ID, rec); err != nil {
		return nil, fmt.Errorf("registry: save organization %s: %w", rec.ID, err)
	}

	org := s.convert.Organization(*rec)
	if err := fhir.Validate(org); err != nil {
		return nil, fmt.Errorf("registry: invalid organization: %w", err)
	}
	if err := s.store.Set(ctx, legacy.CollectionOrganizations, org.ID, org); err != nil {
		return nil, fmt.Errorf("registry: save organization twin %s: %w", org.ID, err)
	}

	for _, svc := range s.convert.HealthcareServices(*rec) {
		if err := fhir.Validate(svc); err != nil {
			s.log.Warn().Err(err).Str("org_id", rec.ID).Msg("skipping invalid healthcare service")
			continue
		}
		if err := s.store.Set(ctx, legacy.CollectionOrganizations, svc.ID, svc); err != nil {
			s.log.Error().Err(err).Str("org_id", rec.ID).Str("service_id", svc.ID).
				Msg("healthcare service not written")
		}
	}
	return org, nil
}

// Organization reads an organization's legacy record back.
func (s *Service) Organization(ctx context.Context, id string) (*legacy.OrgRecord, error) {
	doc, err := s.store.Get(ctx, legacy.CollectionOrgs, id)
	if err != nil {
		return nil, fmt.Errorf("registry: get organization %s: %w", id, err)
	}
	var rec legacy.OrgRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("registry: decode organization %s: %w", id, err)
	}
	return &rec, nil
}

// OrganizationResources returns the organization's FHIR twin and its
// healthcare services, organization first.
func (s *Service) OrganizationResources(ctx context.Context, id string) ([]json.RawMessage, error) {
	org, err := s.store.Get(ctx, legacy.CollectionOrganizations, id)
	if err != nil {
		return nil, fmt.Errorf("registry: get organization twin %s: %w", id, err)
	}

	services, err := s.store.Query(ctx, legacy.CollectionOrganizations, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "resourceType", Op: docstore.OpEq, Value: "HealthcareService"},
			{Field: "providedBy.reference", Op: docstore.OpEq, Value: "Organization/" + id},
		},
		OrderBy: "id",
	})
	if err != nil {
		return nil, fmt.Errorf("registry: list healthcare services for %s: %w", id, err)
	}

	return append([]json.RawMessage{org}, services...), nil
}
