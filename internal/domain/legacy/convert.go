package legacy

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healsync/healsync/internal/platform/fhir"
)

// Converter derives FHIR resources from legacy documents. Conversion is
// deterministic given fixed NewID and Now; production converters use fresh
// uuids and the wall clock.
type Converter struct {
	Codes *fhir.CodeMaps
	NewID func() string
	Now   func() time.Time
}

// NewConverter returns a production converter over the given code tables.
func NewConverter(codes *fhir.CodeMaps) *Converter {
	return &Converter{
		Codes: codes,
		NewID: uuid.NewString,
		Now:   time.Now,
	}
}

// Patient builds the FHIR Patient twin of a user account and profile. The
// resource id equals the user id, so repeated conversion overwrites in place.
func (c *Converter) Patient(user UserRecord, profile *Profile) *fhir.Patient {
	id := user.UID
	if id == "" {
		id = c.NewID()
	}

	p := &fhir.Patient{
		ResourceType: "Patient",
		ID:           id,
		Active:       true,
		Identifier: []fhir.Identifier{{
			Use: "usual",
			Type: &fhir.CodeableConcept{
				Coding: []fhir.Coding{{System: fhir.SystemV2IDType, Code: "MR", Display: "Medical Record Number"}},
			},
			System: "urn:healsync:patient-id",
			Value:  id,
		}},
	}

	fullName := user.Name
	if profile != nil && profile.Basic.FullName != "" {
		fullName = profile.Basic.FullName
	}
	if fullName != "" {
		p.Name = []fhir.HumanName{splitName(fullName)}
	}

	if user.Email != "" {
		p.Telecom = append(p.Telecom, fhir.ContactPoint{System: "email", Value: user.Email, Use: "home"})
	}

	if profile == nil {
		p.Gender = fhir.GenderUnknown
		return p
	}

	p.Gender = c.Codes.GenderCode(profile.Basic.Gender)
	p.BirthDate = profile.Basic.DOB

	if profile.Basic.ContactNumber != "" {
		p.Telecom = append(p.Telecom, fhir.ContactPoint{System: "phone", Value: profile.Basic.ContactNumber, Use: "mobile"})
	}

	if ec := profile.Basic.EmergencyContact; ec != nil && (ec.Name != "" || ec.Number != "") {
		contact := fhir.PatientContact{
			Relationship: []fhir.CodeableConcept{{
				Coding: []fhir.Coding{{System: fhir.SystemV2Contact, Code: "C", Display: "Emergency Contact"}},
			}},
		}
		if ec.Name != "" {
			name := splitName(ec.Name)
			contact.Name = &name
		}
		if ec.Number != "" {
			contact.Telecom = []fhir.ContactPoint{{System: "phone", Value: ec.Number}}
		}
		p.Contact = []fhir.PatientContact{contact}
	}

	return p
}

// Observations derives vital-sign observations from a profile: body height,
// body weight, and blood group. Absent measurements produce no observation;
// a blood group outside the coded set is skipped rather than emitted unusably.
func (c *Converter) Observations(profile *Profile, patientID string) []*fhir.Observation {
	if profile == nil {
		return nil
	}
	subject := &fhir.Reference{Reference: "Patient/" + patientID}
	effective := c.Now().UTC().Format(time.RFC3339)
	var out []*fhir.Observation

	if h := profile.Basic.Height; h != nil && h.Value > 0 {
		unit, code := "cm", "cm"
		if h.Unit != "cm" {
			unit, code = "in", "[in_i]"
		}
		out = append(out, &fhir.Observation{
			ResourceType:      "Observation",
			ID:                c.NewID(),
			Status:            "final",
			Category:          []fhir.CodeableConcept{vitalSignsCategory()},
			Code:              loincConcept(fhir.LOINCBodyHeight, "Body height"),
			Subject:           subject,
			EffectiveDateTime: effective,
			ValueQuantity:     &fhir.Quantity{Value: h.Value, Unit: unit, System: fhir.SystemUCUM, Code: code},
		})
	}

	if w := profile.Basic.Weight; w != nil && w.Value > 0 {
		unit, code := "kg", "kg"
		if w.Unit != "kg" {
			unit, code = "lb", "[lb_av]"
		}
		out = append(out, &fhir.Observation{
			ResourceType:      "Observation",
			ID:                c.NewID(),
			Status:            "final",
			Category:          []fhir.CodeableConcept{vitalSignsCategory()},
			Code:              loincConcept(fhir.LOINCBodyWeight, "Body weight"),
			Subject:           subject,
			EffectiveDateTime: effective,
			ValueQuantity:     &fhir.Quantity{Value: w.Value, Unit: unit, System: fhir.SystemUCUM, Code: code},
		})
	}

	if bg := profile.Basic.BloodGroup; bg != "" {
		if coding, ok := c.Codes.BloodGroupCoding(bg); ok {
			out = append(out, &fhir.Observation{
				ResourceType:      "Observation",
				ID:                c.NewID(),
				Status:            "final",
				Category:          []fhir.CodeableConcept{laboratoryCategory()},
				Code:              loincConcept(fhir.LOINCBloodGroup, "ABO and Rh group"),
				Subject:           subject,
				EffectiveDateTime: effective,
				ValueCodeableConcept: &fhir.CodeableConcept{
					Coding: []fhir.Coding{coding},
					Text:   bg,
				},
			})
		}
	}

	return out
}

// Conditions derives one active, confirmed Condition per chronic condition in
// the profile, including the free-text custom entry when present.
func (c *Converter) Conditions(profile *Profile, patientID string) []*fhir.Condition {
	if profile == nil {
		return nil
	}
	entries := collectEntries(profile.Medical.ChronicConditions, profile.Medical.CustomChronicCondition)
	subject := &fhir.Reference{Reference: "Patient/" + patientID}
	recorded := c.Now().UTC().Format(time.RFC3339)

	out := make([]*fhir.Condition, 0, len(entries))
	for _, entry := range entries {
		out = append(out, &fhir.Condition{
			ResourceType: "Condition",
			ID:           c.NewID(),
			ClinicalStatus: &fhir.CodeableConcept{
				Coding: []fhir.Coding{{System: fhir.SystemCondClinical, Code: "active", Display: "Active"}},
			},
			VerificationStatus: &fhir.CodeableConcept{
				Coding: []fhir.Coding{{System: fhir.SystemCondVerify, Code: "confirmed", Display: "Confirmed"}},
			},
			Category: []fhir.CodeableConcept{{
				Coding: []fhir.Coding{{System: fhir.SystemCondCategory, Code: "problem-list-item", Display: "Problem List Item"}},
			}},
			Code:         &fhir.CodeableConcept{Text: entry},
			Subject:      subject,
			RecordedDate: recorded,
		})
	}
	return out
}

// Allergies derives one active, confirmed AllergyIntolerance per allergy in
// the profile, including the free-text custom entry when present.
func (c *Converter) Allergies(profile *Profile, patientID string) []*fhir.AllergyIntolerance {
	if profile == nil {
		return nil
	}
	entries := collectEntries(profile.Medical.Allergies, profile.Medical.CustomAllergy)
	patient := &fhir.Reference{Reference: "Patient/" + patientID}
	recorded := c.Now().UTC().Format(time.RFC3339)

	out := make([]*fhir.AllergyIntolerance, 0, len(entries))
	for _, entry := range entries {
		out = append(out, &fhir.AllergyIntolerance{
			ResourceType: "AllergyIntolerance",
			ID:           c.NewID(),
			ClinicalStatus: &fhir.CodeableConcept{
				Coding: []fhir.Coding{{System: fhir.SystemAllergyClin, Code: "active", Display: "Active"}},
			},
			VerificationStatus: &fhir.CodeableConcept{
				Coding: []fhir.Coding{{System: fhir.SystemAllergyVer, Code: "confirmed", Display: "Confirmed"}},
			},
			Type:         "allergy",
			Criticality:  "unable-to-assess",
			Code:         &fhir.CodeableConcept{Text: entry},
			Patient:      patient,
			RecordedDate: recorded,
		})
	}
	return out
}

// Encounter builds the FHIR Encounter twin of a visit record: a finished
// ambulatory encounter with the doctor as primary performer, symptoms as
// reason codes, and the diagnosis as a discharge diagnosis. The resource id
// equals the visit id.
func (c *Converter) Encounter(rec VisitRecord) *fhir.Encounter {
	id := rec.ID
	if id == "" {
		id = c.NewID()
	}

	start := rec.VisitDate
	if start == "" {
		start = c.Now().UTC().Format(time.RFC3339)
	}

	e := &fhir.Encounter{
		ResourceType: "Encounter",
		ID:           id,
		Status:       "finished",
		Class:        &fhir.Coding{System: fhir.SystemActCode, Code: "AMB", Display: "ambulatory"},
		Subject:      &fhir.Reference{Reference: "Patient/" + rec.PatientID},
		Period:       &fhir.Period{Start: start, End: start},
	}

	if rec.DoctorID != "" {
		e.Participant = []fhir.EncounterParticipant{{
			Type: []fhir.CodeableConcept{{
				Coding: []fhir.Coding{{System: fhir.SystemParticipType, Code: "PPRF", Display: "primary performer"}},
			}},
			Individual: &fhir.Reference{
				Reference: "Practitioner/" + rec.DoctorID,
				Display:   rec.DoctorName,
			},
		}}
	}

	for _, s := range rec.Symptoms {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		e.ReasonCode = append(e.ReasonCode, fhir.CodeableConcept{Text: s})
	}

	if rec.Diagnosis != "" {
		e.Diagnosis = []fhir.EncounterDiagnosis{{
			Condition: &fhir.Reference{Display: rec.Diagnosis},
			Use: []fhir.CodeableConcept{{
				Coding: []fhir.Coding{{System: fhir.SystemDiagRole, Code: "DD", Display: "Discharge diagnosis"}},
			}},
		}}
	}

	return e
}

// Practitioner builds the FHIR Practitioner twin of a doctor registration.
func (c *Converter) Practitioner(rec DoctorRecord) *fhir.Practitioner {
	id := rec.UID
	if id == "" {
		id = c.NewID()
	}
	p := &fhir.Practitioner{
		ResourceType: "Practitioner",
		ID:           id,
		Active:       true,
	}
	if rec.LicenseNo != "" {
		p.Identifier = []fhir.Identifier{{
			Use: "official",
			Type: &fhir.CodeableConcept{
				Coding: []fhir.Coding{{System: fhir.SystemV2IDType, Code: "MD", Display: "Medical License number"}},
			},
			Value: rec.LicenseNo,
		}}
	}
	if rec.Name != "" {
		name := splitName(rec.Name)
		name.Prefix = []string{"Dr."}
		p.Name = []fhir.HumanName{name}
	}
	return p
}

// Organization builds the FHIR Organization twin of an institution record.
func (c *Converter) Organization(rec OrgRecord) *fhir.Organization {
	id := rec.ID
	if id == "" {
		id = c.NewID()
	}

	o := &fhir.Organization{
		ResourceType: "Organization",
		ID:           id,
		Active:       rec.Active,
		Name:         rec.Name,
		Type: []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{
				System:  fhir.SystemOrgType,
				Code:    c.Codes.OrgTypeCode(rec.Type),
				Display: rec.Type,
			}},
		}},
	}

	if rec.Contact.Phone != "" {
		o.Telecom = append(o.Telecom, fhir.ContactPoint{System: "phone", Value: rec.Contact.Phone, Use: "work"})
	}
	if rec.Contact.Email != "" {
		o.Telecom = append(o.Telecom, fhir.ContactPoint{System: "email", Value: rec.Contact.Email, Use: "work"})
	}
	if rec.Contact.Website != "" {
		o.Telecom = append(o.Telecom, fhir.ContactPoint{System: "url", Value: rec.Contact.Website, Use: "work"})
	}

	if a := rec.Address; a.Line != "" || a.City != "" || a.State != "" || a.PostalCode != "" || a.Country != "" {
		addr := fhir.Address{
			Use:        "work",
			Type:       "physical",
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
		if a.Line != "" {
			addr.Line = []string{a.Line}
		}
		o.Address = []fhir.Address{addr}
	}

	if rec.Identifiers.NPI != "" {
		o.Identifier = append(o.Identifier, fhir.Identifier{
			Use: "official", System: fhir.SystemNPI, Value: rec.Identifiers.NPI,
		})
	}
	if rec.Identifiers.TaxID != "" {
		o.Identifier = append(o.Identifier, fhir.Identifier{
			Use: "official",
			Type: &fhir.CodeableConcept{
				Coding: []fhir.Coding{{System: fhir.SystemV2IDType, Code: "TAX", Display: "Tax ID number"}},
			},
			Value: rec.Identifiers.TaxID,
		})
	}
	if rec.Identifiers.LicenseNo != "" {
		o.Identifier = append(o.Identifier, fhir.Identifier{
			Use:   "official",
			Value: rec.Identifiers.LicenseNo,
		})
	}

	if rec.Contact.Phone != "" || rec.Contact.Email != "" {
		contact := fhir.OrganizationContact{
			Purpose: &fhir.CodeableConcept{
				Coding: []fhir.Coding{{System: fhir.SystemContactType, Code: "ADMIN", Display: "Administrative"}},
			},
		}
		if rec.Contact.Phone != "" {
			contact.Telecom = append(contact.Telecom, fhir.ContactPoint{System: "phone", Value: rec.Contact.Phone})
		}
		if rec.Contact.Email != "" {
			contact.Telecom = append(contact.Telecom, fhir.ContactPoint{System: "email", Value: rec.Contact.Email})
		}
		o.Contact = []fhir.OrganizationContact{contact}
	}

	return o
}

// HealthcareServices derives one HealthcareService per declared capability,
// each carrying the organization's full specialty list.
func (c *Converter) HealthcareServices(rec OrgRecord) []*fhir.HealthcareService {
	specialties := make([]fhir.CodeableConcept, 0, len(rec.Specialties))
	for _, s := range rec.Specialties {
		specialties = append(specialties, fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: fhir.SystemSNOMED, Code: c.Codes.SpecialtyCode(s), Display: s}},
			Text:   s,
		})
	}

	out := make([]*fhir.HealthcareService, 0, len(rec.Capabilities))
	for _, cap := range rec.Capabilities {
		out = append(out, &fhir.HealthcareService{
			ResourceType: "HealthcareService",
			ID:           rec.ID + "-" + cap,
			ProvidedBy:   &fhir.Reference{Reference: "Organization/" + rec.ID, Display: rec.Name},
			Type: []fhir.CodeableConcept{{
				Coding: []fhir.Coding{{System: fhir.SystemSNOMED, Code: c.Codes.CapabilityCode(cap), Display: cap}},
				Text:   cap,
			}},
			Active:    rec.Active,
			Specialty: specialties,
		})
	}
	return out
}

// splitName breaks a display name into FHIR family/given parts. The last
// word is the family name; everything before it is given names.
func splitName(full string) fhir.HumanName {
	name := fhir.HumanName{Use: "official", Text: full}
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return name
	}
	name.Family = parts[len(parts)-1]
	if len(parts) > 1 {
		name.Given = parts[:len(parts)-1]
	}
	return name
}

// collectEntries merges a selection list with an optional free-text entry,
// trimming whitespace and dropping blanks.
func collectEntries(selected []string, custom string) []string {
	out := make([]string, 0, len(selected)+1)
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if custom = strings.TrimSpace(custom); custom != "" {
		out = append(out, custom)
	}
	return out
}

func vitalSignsCategory() fhir.CodeableConcept {
	return fhir.CodeableConcept{
		Coding: []fhir.Coding{{System: fhir.SystemObsCategory, Code: "vital-signs", Display: "Vital Signs"}},
	}
}

func laboratoryCategory() fhir.CodeableConcept {
	return fhir.CodeableConcept{
		Coding: []fhir.Coding{{System: fhir.SystemObsCategory, Code: "laboratory", Display: "Laboratory"}},
	}
}

func loincConcept(code, display string) *fhir.CodeableConcept {
	return &fhir.CodeableConcept{
		Coding: []fhir.Coding{{System: fhir.SystemLOINC, Code: code, Display: display}},
		Text:   display,
	}
}
