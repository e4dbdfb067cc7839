package fhir

import (
	"fmt"
)

// Validate performs the structural check run before persistence or export:
// resourceType and id must be present. It returns nil when the resource is
// valid. Callers decide fatality: clinical resources log and continue,
// AuditEvents block the write.
func Validate(resource interface{}) error {
	m, ok := toMap(resource)
	if !ok {
		return fmt.Errorf("fhir: resource is not a JSON object")
	}
	rt, _ := m["resourceType"].(string)
	if rt == "" {
		return fmt.Errorf("fhir: resource missing resourceType")
	}
	id, _ := m["id"].(string)
	if id == "" {
		return fmt.Errorf("fhir: %s missing id", rt)
	}
	return nil
}

// ValidateAuditEvent checks the stricter AuditEvent invariant: an event
// missing type, action, recorded, outcome, an agent, or a source must never
// be persisted.
func ValidateAuditEvent(e *AuditEvent) error {
	if e == nil || e.ResourceType != "AuditEvent" {
		return fmt.Errorf("fhir: not an AuditEvent")
	}
	if e.ID == "" {
		return fmt.Errorf("fhir: AuditEvent missing id")
	}
	if e.Type == nil {
		return fmt.Errorf("fhir: AuditEvent missing type")
	}
	if e.Action == "" {
		return fmt.Errorf("fhir: AuditEvent missing action")
	}
	if e.Recorded == "" {
		return fmt.Errorf("fhir: AuditEvent missing recorded")
	}
	if e.Outcome == "" {
		return fmt.Errorf("fhir: AuditEvent missing outcome")
	}
	if len(e.Agent) == 0 {
		return fmt.Errorf("fhir: AuditEvent missing agent")
	}
	if e.Source == nil {
		return fmt.Errorf("fhir: AuditEvent missing source")
	}
	return nil
}
