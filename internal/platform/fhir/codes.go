package fhir

// Terminology system URIs used by the builders.
const (
	SystemLOINC        = "http://loinc.org"
	SystemSNOMED       = "http://snomed.info/sct"
	SystemUCUM         = "http://unitsofmeasure.org"
	SystemV2IDType     = "http://terminology.hl7.org/CodeSystem/v2-0203"
	SystemV2Contact    = "http://terminology.hl7.org/CodeSystem/v2-0131"
	SystemBloodGroupRh = "http://hl7.org/fhir/sid/blood-group-rh"
	SystemObsCategory  = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemCondClinical = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemCondVerify   = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
	SystemCondCategory = "http://terminology.hl7.org/CodeSystem/condition-category"
	SystemAllergyClin  = "http://terminology.hl7.org/CodeSystem/allergyintolerance-clinical"
	SystemAllergyVer   = "http://terminology.hl7.org/CodeSystem/allergyintolerance-verification"
	SystemActCode      = "http://terminology.hl7.org/CodeSystem/v3-ActCode"
	SystemParticipType = "http://terminology.hl7.org/CodeSystem/v3-ParticipationType"
	SystemDiagRole     = "http://terminology.hl7.org/CodeSystem/diagnosis-role"
	SystemOrgType      = "http://terminology.hl7.org/CodeSystem/organization-type"
	SystemContactType  = "http://terminology.hl7.org/CodeSystem/contactentity-type"
	SystemNPI          = "http://hl7.org/fhir/sid/us-npi"
)

// LOINC codes for the vitals this system derives.
const (
	LOINCBodyHeight = "8302-2"
	LOINCBodyWeight = "29463-7"
	LOINCBloodGroup = "882-1"
)

// Fallback codes returned for inputs outside the known sets.
const (
	GenderUnknown         = "unknown"
	OrgTypeFallback       = "prov"
	SNOMEDGeneralMedicine = "394807001"
)

// CodeMaps holds the code lookup tables the builders translate through.
// Instances are treated as immutable; tests may substitute alternate tables.
type CodeMaps struct {
	Gender       map[string]string
	BloodGroups  map[string]Coding
	OrgTypes     map[string]string
	Capabilities map[string]string
	Specialties  map[string]string
}

// DefaultCodeMaps returns the production lookup tables.
func DefaultCodeMaps() *CodeMaps {
	return &CodeMaps{
		Gender: map[string]string{
			"male":              "male",
			"female":            "female",
			"non-binary":        "other",
			"prefer-not-to-say": "unknown",
		},
		BloodGroups: map[string]Coding{
			"A+":  {System: SystemBloodGroupRh, Code: "Aplus", Display: "A+"},
			"A-":  {System: SystemBloodGroupRh, Code: "Aminus", Display: "A-"},
			"B+":  {System: SystemBloodGroupRh, Code: "Bplus", Display: "B+"},
			"B-":  {System: SystemBloodGroupRh, Code: "Bminus", Display: "B-"},
			"O+":  {System: SystemBloodGroupRh, Code: "Oplus", Display: "O+"},
			"O-":  {System: SystemBloodGroupRh, Code: "Ominus", Display: "O-"},
			"AB+": {System: SystemBloodGroupRh, Code: "ABplus", Display: "AB+"},
			"AB-": {System: SystemBloodGroupRh, Code: "ABminus", Display: "AB-"},
		},
		OrgTypes: map[string]string{
			"hospital":   "prov",
			"clinic":     "prov",
			"lab":        "dept",
			"pharmacy":   "prov",
			"insurance":  "pay",
			"government": "govt",
		},
		Capabilities: map[string]string{
			"emergency":     "310000008",
			"surgery":       "394910002",
			"pediatrics":    "408444004",
			"cardiology":    "394579002",
			"radiology":     "394914008",
			"laboratory":    "394580004",
			"pharmacy":      "394802001",
			"mental_health": "394587001",
			"obstetrics":    "394577000",
			"oncology":      "394578006",
		},
		Specialties: map[string]string{
			"Emergency Medicine": "394820001",
			"Surgery":            "394910002",
			"Pediatrics":         "408444004",
			"Cardiology":         "394579002",
			"Radiology":          "394914008",
			"Pathology":          "394600006",
			"Anesthesiology":     "394588006",
			"Dermatology":        "394584008",
			"Neurology":          "394592004",
			"Oncology":           "394578006",
			"Psychiatry":         "394587001",
			"Orthopedics":        "394665006",
			"Gynecology":         "394593002",
			"Internal Medicine":  "394584008",
		},
	}
}

// GenderCode maps a profile gender string to its FHIR administrative-gender
// code. Unmapped input resolves to "unknown".
func (m *CodeMaps) GenderCode(gender string) string {
	if code, ok := m.Gender[gender]; ok {
		return code
	}
	return GenderUnknown
}

// BloodGroupCoding returns the coding for a blood group. For unknown input it
// returns a generic SNOMED blood-group coding and false; callers that derive
// a coded observation skip unmapped groups.
func (m *CodeMaps) BloodGroupCoding(group string) (Coding, bool) {
	if c, ok := m.BloodGroups[group]; ok {
		return c, true
	}
	return Coding{System: SystemBloodGroupRh, Code: "unknown", Display: group}, false
}

// OrgTypeCode maps an organization type to its FHIR code, falling back to the
// generic provider code.
func (m *CodeMaps) OrgTypeCode(orgType string) string {
	if code, ok := m.OrgTypes[orgType]; ok {
		return code
	}
	return OrgTypeFallback
}

// CapabilityCode maps a clinical capability to SNOMED CT, falling back to the
// general medical service code.
func (m *CodeMaps) CapabilityCode(capability string) string {
	if code, ok := m.Capabilities[capability]; ok {
		return code
	}
	return SNOMEDGeneralMedicine
}

// SpecialtyCode maps a medical specialty to SNOMED CT, falling back to the
// general medical service code.
func (m *CodeMaps) SpecialtyCode(specialty string) string {
	if code, ok := m.Specialties[specialty]; ok {
		return code
	}
	return SNOMEDGeneralMedicine
}
