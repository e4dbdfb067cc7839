// Package legacy holds the proprietary document shapes the application wrote
// before the FHIR migration, plus the converter that derives FHIR twins from
// them. The legacy collections remain the system of record during migration.
package legacy

// Collection paths in the document store.
const (
	CollectionUsers    = "users"
	CollectionProfiles = "userProfile"
	CollectionVisits   = "medicalRecords"
	CollectionOrgs     = "organizations"

	CollectionPractitioners = "fhir/practitioners"
	CollectionOrganizations = "fhir/organizations"
	CollectionEncounters    = "fhir/encounters"
	CollectionAuditEvents   = "fhir/auditEvents"
)

// PatientCollection returns the per-patient FHIR collection holding the
// Patient resource and its derived clinical resources.
func PatientCollection(patientID string) string {
	return "fhir/patients/" + patientID
}

// UserRecord is one account document in the users collection.
type UserRecord struct {
	UID      string `json:"uid"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"` // "user" or "doctor"
	DoctorID string `json:"doctorId,omitempty"`
}

// Profile is the patient-maintained health profile document.
type Profile struct {
	Basic   BasicProfile   `json:"basic"`
	Medical MedicalProfile `json:"medical"`
}

type BasicProfile struct {
	FullName         string            `json:"fullName,omitempty"`
	Gender           string            `json:"gender,omitempty"`
	DOB              string            `json:"dob,omitempty"`
	ContactNumber    string            `json:"contactNumber,omitempty"`
	BloodGroup       string            `json:"bloodGroup,omitempty"`
	Height           *Measurement      `json:"height,omitempty"`
	Weight           *Measurement      `json:"weight,omitempty"`
	EmergencyContact *EmergencyContact `json:"emergencyContact,omitempty"`
}

type Measurement struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

type EmergencyContact struct {
	Name   string `json:"name,omitempty"`
	Number string `json:"number,omitempty"`
}

type MedicalProfile struct {
	ChronicConditions      []string `json:"chronicConditions,omitempty"`
	CustomChronicCondition string   `json:"customChronicCondition,omitempty"`
	Allergies              []string `json:"allergies,omitempty"`
	CustomAllergy          string   `json:"customAllergy,omitempty"`
}

// VisitRecord is one clinical visit filed by a doctor.
type VisitRecord struct {
	ID         string   `json:"id"`
	PatientID  string   `json:"patientId"`
	DoctorID   string   `json:"doctorId"`
	DoctorName string   `json:"doctorName,omitempty"`
	VisitDate  string   `json:"visitDate,omitempty"`
	Symptoms   []string `json:"symptoms,omitempty"`
	Diagnosis  string   `json:"diagnosis,omitempty"`
}

// DoctorRecord is the registration document for a practitioner.
type DoctorRecord struct {
	UID       string `json:"uid"`
	Name      string `json:"name,omitempty"`
	LicenseNo string `json:"doctorId,omitempty"`
}

// OrgRecord is the registration document for an institution.
type OrgRecord struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Type         string         `json:"type,omitempty"`
	Active       bool           `json:"active"`
	Contact      OrgContact     `json:"contact"`
	Address      OrgAddress     `json:"address"`
	Identifiers  OrgIdentifiers `json:"identifiers"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Specialties  []string       `json:"specialties,omitempty"`
}

type OrgContact struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

type OrgAddress struct {
	Line       string `json:"line,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

type OrgIdentifiers struct {
	NPI       string `json:"npi,omitempty"`
	TaxID     string `json:"taxId,omitempty"`
	LicenseNo string `json:"licenseNumber,omitempty"`
}
