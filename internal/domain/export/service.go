// Package export assembles downloadable FHIR bundles. Bundle construction is
// pure gathering; delivery goes through a Sink so transports stay thin.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/healsync/healsync/internal/domain/audit"
	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/domain/registry"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

// Sink receives a finished export document.
type Sink interface {
	Deliver(filename string, data []byte) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(filename string, data []byte) error

func (f SinkFunc) Deliver(filename string, data []byte) error { return f(filename, data) }

type Service struct {
	store    docstore.Store
	registry *registry.Service
	audit    *audit.Recorder
	now      func() time.Time
}

func NewService(store docstore.Store, reg *registry.Service, rec *audit.Recorder) *Service {
	return &Service{store: store, registry: reg, audit: rec, now: time.Now}
}

// bundle entry order: the Patient leads, clinical resources follow grouped by
// type, encounters close the bundle.
var patientExportOrder = []string{"Observation", "Condition", "AllergyIntolerance"}

// BuildPatientBundle gathers everything stored for a patient into one
// collection bundle and reports which resource types it contains. Encounters
// are gathered only when asked for. Building a bundle has no side effects;
// only delivery is audited.
func (s *Service) BuildPatientBundle(ctx context.Context, patientID string, includeEncounters bool) (*fhir.Bundle, []string, error) {
	docs, err := s.store.Query(ctx, legacy.PatientCollection(patientID), docstore.Query{OrderBy: "id"})
	if err != nil {
		return nil, nil, fmt.Errorf("export: read patient collection: %w", err)
	}

	byType := map[string][]interface{}{}
	for _, doc := range docs {
		var envelope struct {
			ResourceType string `json:"resourceType"`
		}
		if err := json.Unmarshal(doc, &envelope); err != nil || envelope.ResourceType == "" {
			continue
		}
		byType[envelope.ResourceType] = append(byType[envelope.ResourceType], doc)
	}

	var encounters []json.RawMessage
	if includeEncounters {
		encounters, err = s.store.Query(ctx, legacy.CollectionEncounters, docstore.Query{
			Filters: []docstore.Filter{{Field: "subject.reference", Op: docstore.OpEq, Value: "Patient/" + patientID}},
			OrderBy: "period.start",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("export: read encounters: %w", err)
		}
	}

	var resources []interface{}
	var types []string
	if patients := byType["Patient"]; len(patients) > 0 {
		resources = append(resources, patients...)
		types = append(types, "Patient")
	}
	for _, rt := range patientExportOrder {
		if group := byType[rt]; len(group) > 0 {
			resources = append(resources, group...)
			types = append(types, rt)
		}
	}
	if len(encounters) > 0 {
		for _, doc := range encounters {
			resources = append(resources, doc)
		}
		types = append(types, "Encounter")
	}

	return fhir.NewBundle(resources, fhir.BundleCollection), types, nil
}

// ExportPatient builds the patient's bundle, delivers it through the sink,
// and records the download. The audit event is written only after delivery
// succeeds.
func (s *Service) ExportPatient(ctx context.Context, patientID string, actor fhir.ExportParams, includeEncounters bool, sink Sink) (string, error) {
	bundle, types, err := s.BuildPatientBundle(ctx, patientID, includeEncounters)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: encode bundle: %w", err)
	}

	filename := fmt.Sprintf("fhir-export-%s-%s.json", patientID, s.now().UTC().Format("2006-01-02"))
	if err := sink.Deliver(filename, data); err != nil {
		return "", fmt.Errorf("export: deliver %s: %w", filename, err)
	}

	actor.PatientID = patientID
	actor.ResourceTypes = types
	s.audit.RecordExport(ctx, actor)
	return filename, nil
}

// ExportOrganization bundles an organization and its healthcare services and
// delivers the result through the sink.
func (s *Service) ExportOrganization(ctx context.Context, orgID string, sink Sink) (string, error) {
	docs, err := s.registry.OrganizationResources(ctx, orgID)
	if err != nil {
		return "", err
	}

	resources := make([]interface{}, len(docs))
	for i, doc := range docs {
		resources[i] = doc
	}

	data, err := json.MarshalIndent(fhir.NewBundle(resources, fhir.BundleCollection), "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: encode organization bundle: %w", err)
	}

	filename := fmt.Sprintf("organization-%s-fhir.json", orgID)
	if err := sink.Deliver(filename, data); err != nil {
		return "", fmt.Errorf("export: deliver %s: %w", filename, err)
	}
	return filename, nil
}
