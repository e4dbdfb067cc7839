package fhir

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditEvent records who did what to whom, when, and with what outcome.
// The JSON shape is fixed; external FHIR tooling reads these documents.
type AuditEvent struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	Type         *CodeableConcept  `json:"type,omitempty"`
	Subtype      []CodeableConcept `json:"subtype,omitempty"`
	Action       string            `json:"action,omitempty"`
	Recorded     string            `json:"recorded,omitempty"`
	Outcome      string            `json:"outcome,omitempty"`
	OutcomeDesc  string            `json:"outcomeDesc,omitempty"`
	Agent        []AuditAgent      `json:"agent,omitempty"`
	Source       *AuditSource      `json:"source,omitempty"`
	Entity       []AuditEntity     `json:"entity,omitempty"`
}

type AuditAgent struct {
	Who       *Reference    `json:"who,omitempty"`
	AltID     string        `json:"altId,omitempty"`
	Name      string        `json:"name,omitempty"`
	Requestor bool          `json:"requestor"`
	Network   *AuditNetwork `json:"network,omitempty"`
}

type AuditNetwork struct {
	Address string `json:"address,omitempty"`
	Type    string `json:"type,omitempty"`
}

type AuditSource struct {
	Site     string            `json:"site,omitempty"`
	Observer *Reference        `json:"observer,omitempty"`
	Type     []CodeableConcept `json:"type,omitempty"`
}

type AuditEntity struct {
	What        *Reference       `json:"what,omitempty"`
	Type        *CodeableConcept `json:"type,omitempty"`
	Description string           `json:"description,omitempty"`
	Detail      []AuditDetail    `json:"detail,omitempty"`
}

type AuditDetail struct {
	Type        string `json:"type,omitempty"`
	ValueString string `json:"valueString,omitempty"`
}

// Audit action kinds (FHIR audit-event-action).
const (
	ActionCreate  = "C"
	ActionRead    = "R"
	ActionUpdate  = "U"
	ActionDelete  = "D"
	ActionExecute = "E"
)

// Audit outcome codes.
const (
	OutcomeSuccess        = "0"
	OutcomeMinorFailure   = "4"
	OutcomeSeriousFailure = "8"
)

const (
	systemAuditEventType = "http://terminology.hl7.org/CodeSystem/audit-event-type"
	systemRestfulAction  = "http://hl7.org/fhir/restful-interaction"
	systemAuditSubType   = "http://hl7.org/CodeSystem/audit-event-sub-type"
	systemSourceType     = "http://terminology.hl7.org/CodeSystem/security-source-type"
	systemEntityRole     = "http://terminology.hl7.org/CodeSystem/entity-role"
)

// AuditBuilder constructs AuditEvent resources describing the serving
// application. Id and clock generation are injectable for tests.
type AuditBuilder struct {
	Site         string
	AppName      string
	AppAltID     string
	ObserverName string
	NewID        func() string
	Now          func() time.Time
}

// NewAuditBuilder returns a builder for the given site name, deriving the
// application and observer display names from it.
func NewAuditBuilder(site string) *AuditBuilder {
	return &AuditBuilder{
		Site:         site,
		AppName:      site + " Web Application",
		AppAltID:     strings.ToLower(site) + "-web",
		ObserverName: site + " Server",
		NewID:        uuid.NewString,
		Now:          time.Now,
	}
}

// AccessParams describes one access to a patient's data.
type AccessParams struct {
	ActorID        string
	ActorName      string
	PatientID      string
	Action         string // C, R, U, D
	ResourceType   string // defaults to Patient
	Outcome        string // defaults to success
	Description    string
	NetworkAddress string
}

// AccessEvent builds an AuditEvent for a read or modification of patient
// data. It carries exactly two agents: the human actor and the application
// itself. A second entity is appended when a non-Patient resource type was
// touched.
func (b *AuditBuilder) AccessEvent(p AccessParams) *AuditEvent {
	if p.Action == "" {
		p.Action = ActionRead
	}
	if p.ResourceType == "" {
		p.ResourceType = "Patient"
	}
	if p.Outcome == "" {
		p.Outcome = OutcomeSuccess
	}

	code, display := restfulInteraction(p.Action)
	e := &AuditEvent{
		ResourceType: "AuditEvent",
		ID:           b.NewID(),
		Type: &CodeableConcept{
			Coding: []Coding{{System: systemAuditEventType, Code: "rest", Display: "Restful Operation"}},
			Text:   "Restful Operation",
		},
		Subtype: []CodeableConcept{{
			Coding: []Coding{{System: systemRestfulAction, Code: code, Display: display}},
		}},
		Action:      p.Action,
		Recorded:    b.Now().UTC().Format(time.RFC3339),
		Outcome:     p.Outcome,
		OutcomeDesc: outcomeDescription(p.Outcome),
		Agent: []AuditAgent{
			b.actorAgent(p.ActorID, p.ActorName, p.NetworkAddress),
			b.applicationAgent(),
		},
		Source: b.source(b.ObserverName),
		Entity: []AuditEntity{{
			What:        &Reference{Reference: "Patient/" + p.PatientID},
			Type:        entityRole("1", "Patient"),
			Description: p.Description,
		}},
	}

	if p.ResourceType != "Patient" {
		e.Entity = append(e.Entity, AuditEntity{
			What: &Reference{Type: p.ResourceType, Reference: p.ResourceType + "/unknown"},
			Type: entityRole("4", "Domain Resource"),
		})
	}

	return e
}

// ExportParams describes a data export/download.
type ExportParams struct {
	ActorID        string
	ActorName      string
	PatientID      string
	ResourceTypes  []string
	NetworkAddress string
}

// ExportEvent builds an AuditEvent for a bundle export, carrying the list of
// exported resource types in the second entity's detail.
func (b *AuditBuilder) ExportEvent(p ExportParams) *AuditEvent {
	types := strings.Join(p.ResourceTypes, ", ")
	return &AuditEvent{
		ResourceType: "AuditEvent",
		ID:           b.NewID(),
		Type: &CodeableConcept{
			Coding: []Coding{{System: systemAuditEventType, Code: "export", Display: "Export"}},
		},
		Subtype: []CodeableConcept{{
			Coding: []Coding{{System: systemRestfulAction, Code: "export", Display: "Export"}},
		}},
		Action:      ActionExecute,
		Recorded:    b.Now().UTC().Format(time.RFC3339),
		Outcome:     OutcomeSuccess,
		OutcomeDesc: "Success",
		Agent: []AuditAgent{
			b.actorAgent(p.ActorID, p.ActorName, p.NetworkAddress),
			b.applicationAgent(),
		},
		Source: b.source(b.ObserverName),
		Entity: []AuditEntity{
			{
				What:        &Reference{Reference: "Patient/" + p.PatientID},
				Type:        entityRole("1", "Patient"),
				Description: "Exported patient data: " + types,
			},
			{
				What: &Reference{Display: "FHIR Bundle Export"},
				Type: entityRole("4", "Domain Resource"),
				Detail: []AuditDetail{{
					Type:        "exported-resources",
					ValueString: strings.Join(p.ResourceTypes, ","),
				}},
			},
		},
	}
}

// AuthParams describes a login or logout.
type AuthParams struct {
	UserID         string
	UserName       string
	Kind           string // "login" or "logout"
	Outcome        string
	NetworkAddress string
}

// AuthEvent builds an AuditEvent for an authentication action.
func (b *AuditBuilder) AuthEvent(p AuthParams) *AuditEvent {
	if p.Outcome == "" {
		p.Outcome = OutcomeSuccess
	}
	subtypeCode, subtypeDisplay := "110122", "Login"
	if p.Kind == "logout" {
		subtypeCode, subtypeDisplay = "110123", "Logout"
	}
	desc := "User login"
	if p.Kind == "logout" {
		desc = "User logout"
	}
	result := "Success"
	if p.Outcome != OutcomeSuccess {
		result = "Failed"
	}

	outcomeDesc := "Success"
	if p.Outcome != OutcomeSuccess {
		outcomeDesc = "Failed Authentication"
	}

	return &AuditEvent{
		ResourceType: "AuditEvent",
		ID:           b.NewID(),
		Type: &CodeableConcept{
			Coding: []Coding{{System: systemAuditEventType, Code: "110110", Display: "Authentication"}},
		},
		Subtype: []CodeableConcept{{
			Coding: []Coding{{System: systemAuditSubType, Code: subtypeCode, Display: subtypeDisplay}},
		}},
		Action:      ActionExecute,
		Recorded:    b.Now().UTC().Format(time.RFC3339),
		Outcome:     p.Outcome,
		OutcomeDesc: outcomeDesc,
		Agent: []AuditAgent{
			b.actorAgent(p.UserID, p.UserName, p.NetworkAddress),
		},
		Source: b.source(b.Site + " Auth Service"),
		Entity: []AuditEntity{{
			What:        &Reference{Display: "User Authentication Event"},
			Type:        entityRole("3", "User"),
			Description: fmt.Sprintf("%s - %s", desc, result),
		}},
	}
}

func (b *AuditBuilder) actorAgent(id, name, addr string) AuditAgent {
	agent := AuditAgent{
		Who:       &Reference{Reference: "Practitioner/" + id, Display: name},
		Name:      name,
		Requestor: true,
	}
	if addr != "" {
		agent.Network = &AuditNetwork{Address: addr, Type: "2"}
	}
	return agent
}

func (b *AuditBuilder) applicationAgent() AuditAgent {
	return AuditAgent{
		Who:       &Reference{Display: b.AppName},
		AltID:     b.AppAltID,
		Requestor: false,
	}
}

func (b *AuditBuilder) source(observer string) *AuditSource {
	return &AuditSource{
		Site:     b.Site,
		Observer: &Reference{Display: observer},
		Type: []CodeableConcept{{
			Coding: []Coding{{System: systemSourceType, Code: "4", Display: "Application Server"}},
		}},
	}
}

func restfulInteraction(action string) (code, display string) {
	switch action {
	case ActionCreate:
		return "create", "Create"
	case ActionUpdate:
		return "update", "Update"
	case ActionDelete:
		return "delete", "Delete"
	default:
		return "read", "Read"
	}
}

func outcomeDescription(outcome string) string {
	switch outcome {
	case OutcomeSuccess:
		return "Success"
	case OutcomeMinorFailure:
		return "Minor Failure"
	default:
		return "Serious Failure"
	}
}

func entityRole(code, display string) *CodeableConcept {
	return &CodeableConcept{
		Coding: []Coding{{System: systemEntityRole, Code: code, Display: display}},
	}
}
