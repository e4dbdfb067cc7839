// Package patient manages the patient health profile and its FHIR twins.
// Every profile save dual-writes: the legacy document stays the system of
// record while the derived FHIR resources are rebuilt alongside it.
package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/healsync/healsync/internal/domain/audit"
	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

// ErrNotFound is returned when no profile exists for a patient.
var ErrNotFound = errors.New("patient: profile not found")

type Service struct {
	store   docstore.Store
	convert *legacy.Converter
	audit   *audit.Recorder
	log     zerolog.Logger
}

func NewService(store docstore.Store, convert *legacy.Converter, rec *audit.Recorder, log zerolog.Logger) *Service {
	return &Service{store: store, convert: convert, audit: rec, log: log}
}

// derived resource types rebuilt on every profile save. The Patient resource
// itself is overwritten in place; these are deleted and recreated so removed
// profile entries cannot leave stale resources behind.
var derivedTypes = map[string]bool{
	"Observation":        true,
	"Condition":          true,
	"AllergyIntolerance": true,
}

// SaveProfile persists the legacy profile document and rebuilds the FHIR
// twins. The legacy write is authoritative: if it fails the whole save fails.
// FHIR derivation failures are logged and do not fail the save.
func (s *Service) SaveProfile(ctx context.Context, patientID string, profile *legacy.Profile, actor fhir.AccessParams) error {
	if err := s.store.Set(ctx, legacy.CollectionProfiles, patientID, profile); err != nil {
		return fmt.Errorf("patient: save profile %s: %w", patientID, err)
	}

	if err := s.syncFHIR(ctx, patientID, profile); err != nil {
		s.log.Error().Err(err).Str("patient_id", patientID).Msg("fhir sync failed after profile save")
	}

	actor.PatientID = patientID
	actor.Action = fhir.ActionUpdate
	actor.Description = "Updated health profile"
	s.audit.RecordAccess(ctx, actor)
	return nil
}

// GetProfile reads a patient's profile and records the access.
func (s *Service) GetProfile(ctx context.Context, patientID string, actor fhir.AccessParams) (*legacy.Profile, error) {
	doc, err := s.store.Get(ctx, legacy.CollectionProfiles, patientID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient: get profile %s: %w", patientID, err)
	}

	var profile legacy.Profile
	if err := json.Unmarshal(doc, &profile); err != nil {
		return nil, fmt.Errorf("patient: decode profile %s: %w", patientID, err)
	}

	actor.PatientID = patientID
	actor.Action = fhir.ActionRead
	actor.Description = "Viewed health profile"
	s.audit.RecordAccess(ctx, actor)
	return &profile, nil
}

// FHIRRecord returns the stored FHIR Patient resource.
func (s *Service) FHIRRecord(ctx context.Context, patientID string) (json.RawMessage, error) {
	doc, err := s.store.Get(ctx, legacy.PatientCollection(patientID), patientID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient: get fhir record %s: %w", patientID, err)
	}
	return doc, nil
}

// syncFHIR rebuilds the patient's FHIR collection from the profile: the
// Patient resource is overwritten under its stable id, then every derived
// clinical resource is deleted and recreated from the current profile.
func (s *Service) syncFHIR(ctx context.Context, patientID string, profile *legacy.Profile) error {
	user, err := s.loadUser(ctx, patientID)
	if err != nil {
		return err
	}

	collection := legacy.PatientCollection(patientID)

	p := s.convert.Patient(user, profile)
	if err := fhir.Validate(p); err != nil {
		return fmt.Errorf("patient: invalid Patient resource: %w", err)
	}
	if err := s.store.Set(ctx, collection, p.ID, p); err != nil {
		return fmt.Errorf("patient: write Patient resource: %w", err)
	}

	if err := s.deleteDerived(ctx, collection); err != nil {
		return err
	}

	var resources []interface{}
	for _, o := range s.convert.Observations(profile, patientID) {
		resources = append(resources, o)
	}
	for _, c := range s.convert.Conditions(profile, patientID) {
		resources = append(resources, c)
	}
	for _, a := range s.convert.Allergies(profile, patientID) {
		resources = append(resources, a)
	}

	for _, r := range resources {
		if err := fhir.Validate(r); err != nil {
			s.log.Warn().Err(err).Str("patient_id", patientID).Msg("skipping invalid derived resource")
			continue
		}
		m, _ := json.Marshal(r)
		var envelope struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(m, &envelope); err != nil || envelope.ID == "" {
			continue
		}
		if err := s.store.Set(ctx, collection, envelope.ID, r); err != nil {
			return fmt.Errorf("patient: write derived resource: %w", err)
		}
	}
	return nil
}

// deleteDerived removes every rebuildable clinical resource from the patient
// collection, leaving the Patient resource and anything else untouched.
func (s *Service) deleteDerived(ctx context.Context, collection string) error {
	docs, err := s.store.Query(ctx, collection, docstore.Query{})
	if err != nil {
		return fmt.Errorf("patient: list patient collection: %w", err)
	}
	for _, doc := range docs {
		var envelope struct {
			ResourceType string `json:"resourceType"`
			ID           string `json:"id"`
		}
		if err := json.Unmarshal(doc, &envelope); err != nil {
			continue
		}
		if !derivedTypes[envelope.ResourceType] {
			continue
		}
		if err := s.store.Delete(ctx, collection, envelope.ID); err != nil {
			return fmt.Errorf("patient: delete stale %s: %w", envelope.ResourceType, err)
		}
	}
	return nil
}

func (s *Service) loadUser(ctx context.Context, patientID string) (legacy.UserRecord, error) {
	user := legacy.UserRecord{UID: patientID}
	doc, err := s.store.Get(ctx, legacy.CollectionUsers, patientID)
	if errors.Is(err, docstore.ErrNotFound) {
		// Profile saves may precede account backfill; derive from id alone.
		return user, nil
	}
	if err != nil {
		return user, fmt.Errorf("patient: load user %s: %w", patientID, err)
	}
	if err := json.Unmarshal(doc, &user); err != nil {
		return user, fmt.Errorf("patient: decode user %s: %w", patientID, err)
	}
	if user.UID == "" {
		user.UID = patientID
	}
	return user, nil
}
