package fhir

type Patient struct {
	ResourceType string           `json:"resourceType"`
	ID           string           `json:"id"`
	Identifier   []Identifier     `json:"identifier,omitempty"`
	Active       bool             `json:"active"`
	Name         []HumanName      `json:"name,omitempty"`
	Telecom      []ContactPoint   `json:"telecom,omitempty"`
	Gender       string           `json:"gender,omitempty"`
	BirthDate    string           `json:"birthDate,omitempty"`
	Contact      []PatientContact `json:"contact,omitempty"`
}

type PatientContact struct {
	Relationship []CodeableConcept `json:"relationship,omitempty"`
	Name         *HumanName        `json:"name,omitempty"`
	Telecom      []ContactPoint    `json:"telecom,omitempty"`
}

type Observation struct {
	ResourceType         string            `json:"resourceType"`
	ID                   string            `json:"id"`
	Status               string            `json:"status,omitempty"`
	Category             []CodeableConcept `json:"category,omitempty"`
	Code                 *CodeableConcept  `json:"code,omitempty"`
	Subject              *Reference        `json:"subject,omitempty"`
	EffectiveDateTime    string            `json:"effectiveDateTime,omitempty"`
	ValueQuantity        *Quantity         `json:"valueQuantity,omitempty"`
	ValueCodeableConcept *CodeableConcept  `json:"valueCodeableConcept,omitempty"`
}

type Condition struct {
	ResourceType       string            `json:"resourceType"`
	ID                 string            `json:"id"`
	ClinicalStatus     *CodeableConcept  `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept  `json:"verificationStatus,omitempty"`
	Category           []CodeableConcept `json:"category,omitempty"`
	Code               *CodeableConcept  `json:"code,omitempty"`
	Subject            *Reference        `json:"subject,omitempty"`
	RecordedDate       string            `json:"recordedDate,omitempty"`
}

type AllergyIntolerance struct {
	ResourceType       string           `json:"resourceType"`
	ID                 string           `json:"id"`
	ClinicalStatus     *CodeableConcept `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept `json:"verificationStatus,omitempty"`
	Type               string           `json:"type,omitempty"`
	Category           []string         `json:"category,omitempty"`
	Criticality        string           `json:"criticality,omitempty"`
	Code               *CodeableConcept `json:"code,omitempty"`
	Patient            *Reference       `json:"patient,omitempty"`
	RecordedDate       string           `json:"recordedDate,omitempty"`
}

type Encounter struct {
	ResourceType string                 `json:"resourceType"`
	ID           string                 `json:"id"`
	Status       string                 `json:"status,omitempty"`
	Class        *Coding                `json:"class,omitempty"`
	Subject      *Reference             `json:"subject,omitempty"`
	Participant  []EncounterParticipant `json:"participant,omitempty"`
	Period       *Period                `json:"period,omitempty"`
	ReasonCode   []CodeableConcept      `json:"reasonCode,omitempty"`
	Diagnosis    []EncounterDiagnosis   `json:"diagnosis,omitempty"`
}

type EncounterParticipant struct {
	Type       []CodeableConcept `json:"type,omitempty"`
	Individual *Reference        `json:"individual,omitempty"`
}

type EncounterDiagnosis struct {
	Condition *Reference        `json:"condition,omitempty"`
	Use       []CodeableConcept `json:"use,omitempty"`
}

type Practitioner struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Active       bool         `json:"active"`
	Name         []HumanName  `json:"name,omitempty"`
}

type Organization struct {
	ResourceType string                `json:"resourceType"`
	ID           string                `json:"id"`
	Active       bool                  `json:"active"`
	Name         string                `json:"name,omitempty"`
	Type         []CodeableConcept     `json:"type,omitempty"`
	Telecom      []ContactPoint        `json:"telecom,omitempty"`
	Address      []Address             `json:"address,omitempty"`
	Identifier   []Identifier          `json:"identifier,omitempty"`
	Contact      []OrganizationContact `json:"contact,omitempty"`
}

type OrganizationContact struct {
	Purpose *CodeableConcept `json:"purpose,omitempty"`
	Telecom []ContactPoint   `json:"telecom,omitempty"`
}

type HealthcareService struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	ProvidedBy   *Reference        `json:"providedBy,omitempty"`
	Type         []CodeableConcept `json:"type,omitempty"`
	Active       bool              `json:"active"`
	Specialty    []CodeableConcept `json:"specialty,omitempty"`
}
