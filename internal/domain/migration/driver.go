// Package migration backfills FHIR twins for legacy documents written before
// dual-write existed. It is idempotent: twins keep stable ids, so re-runs
// overwrite rather than duplicate.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

// MaxBatch caps how many documents one batch write may carry.
const MaxBatch = 500

// TypeReport counts one entity type's migration.
type TypeReport struct {
	Found     int    `json:"found"`
	Converted int    `json:"converted"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// Report summarizes a full migration run.
type Report struct {
	Patients      TypeReport `json:"patients"`
	Encounters    TypeReport `json:"encounters"`
	Practitioners TypeReport `json:"practitioners"`
	Organizations TypeReport `json:"organizations"`
}

// Total returns found and converted counts across all types.
func (r Report) Total() (found, converted int) {
	for _, t := range []TypeReport{r.Patients, r.Encounters, r.Practitioners, r.Organizations} {
		found += t.Found
		converted += t.Converted
	}
	return found, converted
}

type Driver struct {
	store    docstore.Store
	convert  *legacy.Converter
	batchCap int
	log      zerolog.Logger
}

func NewDriver(store docstore.Store, convert *legacy.Converter, batchCap int, log zerolog.Logger) *Driver {
	if batchCap <= 0 || batchCap > MaxBatch {
		batchCap = MaxBatch
	}
	return &Driver{store: store, convert: convert, batchCap: batchCap, log: log}
}

// MigrateAll backfills every entity type. Types run concurrently; batches
// within a type run strictly in order. A failing type does not stop the
// others.
func (d *Driver) MigrateAll(ctx context.Context) Report {
	var report Report
	var wg sync.WaitGroup

	run := func(name string, out *TypeReport, fn func(context.Context) TypeReport) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			*out = fn(ctx)
			d.log.Info().
				Str("type", name).
				Int("found", out.Found).
				Int("converted", out.Converted).
				Int("failed", out.Failed).
				Msg("migration pass done")
		}()
	}

	run("patients", &report.Patients, d.migratePatients)
	run("encounters", &report.Encounters, d.migrateEncounters)
	run("practitioners", &report.Practitioners, d.migratePractitioners)
	run("organizations", &report.Organizations, d.migrateOrganizations)

	wg.Wait()
	return report
}

// migratePatients converts every user account plus its profile into a
// Patient and derived clinical resources, written to the per-patient
// collection.
func (d *Driver) migratePatients(ctx context.Context) TypeReport {
	var rep TypeReport
	docs, err := d.store.Query(ctx, legacy.CollectionUsers, docstore.Query{OrderBy: "uid"})
	if err != nil {
		rep.Error = err.Error()
		return rep
	}

	for _, doc := range docs {
		var user legacy.UserRecord
		if err := json.Unmarshal(doc, &user); err != nil || user.UID == "" {
			continue
		}
		if user.Role == "doctor" {
			continue
		}
		rep.Found++

		profile, err := d.loadProfile(ctx, user.UID)
		if err != nil {
			rep.Failed++
			d.log.Warn().Err(err).Str("patient_id", user.UID).Msg("profile not migrated")
			continue
		}

		batch := map[string]interface{}{}
		p := d.convert.Patient(user, profile)
		batch[p.ID] = p
		for _, o := range d.convert.Observations(profile, user.UID) {
			batch[o.ID] = o
		}
		for _, c := range d.convert.Conditions(profile, user.UID) {
			batch[c.ID] = c
		}
		for _, a := range d.convert.Allergies(profile, user.UID) {
			batch[a.ID] = a
		}

		written, err := d.store.SetBatch(ctx, legacy.PatientCollection(user.UID), batch)
		rep.Converted += written
		if err != nil {
			rep.Failed++
			d.log.Warn().Err(err).Str("patient_id", user.UID).Msg("patient batch incomplete")
		}
	}
	return rep
}

func (d *Driver) migrateEncounters(ctx context.Context) TypeReport {
	return d.migrateCollection(ctx, legacy.CollectionVisits, legacy.CollectionEncounters, "visitDate",
		func(doc json.RawMessage) (string, interface{}, error) {
			var rec legacy.VisitRecord
			if err := json.Unmarshal(doc, &rec); err != nil {
				return "", nil, err
			}
			e := d.convert.Encounter(rec)
			return e.ID, e, fhir.Validate(e)
		})
}

func (d *Driver) migratePractitioners(ctx context.Context) TypeReport {
	var rep TypeReport
	docs, err := d.store.Query(ctx, legacy.CollectionUsers, docstore.Query{
		Filters: []docstore.Filter{{Field: "role", Op: docstore.OpEq, Value: "doctor"}},
		OrderBy: "uid",
	})
	if err != nil {
		rep.Error = err.Error()
		return rep
	}

	batch := map[string]interface{}{}
	flush := func() {
		if len(batch) == 0 {
			return
		}
		written, err := d.store.SetBatch(ctx, legacy.CollectionPractitioners, batch)
		rep.Converted += written
		if err != nil {
			rep.Failed += len(batch) - written
			d.log.Warn().Err(err).Msg("practitioner batch incomplete")
		}
		batch = map[string]interface{}{}
	}

	for _, doc := range docs {
		var user legacy.UserRecord
		if err := json.Unmarshal(doc, &user); err != nil || user.UID == "" {
			continue
		}
		rep.Found++
		p := d.convert.Practitioner(legacy.DoctorRecord{
			UID:       user.UID,
			Name:      user.Name,
			LicenseNo: user.DoctorID,
		})
		batch[p.ID] = p
		if len(batch) >= d.batchCap {
			flush()
		}
	}
	flush()
	return rep
}

func (d *Driver) migrateOrganizations(ctx context.Context) TypeReport {
	var rep TypeReport
	docs, err := d.store.Query(ctx, legacy.CollectionOrgs, docstore.Query{OrderBy: "id"})
	if err != nil {
		rep.Error = err.Error()
		return rep
	}

	batch := map[string]interface{}{}
	flush := func() {
		if len(batch) == 0 {
			return
		}
		written, err := d.store.SetBatch(ctx, legacy.CollectionOrganizations, batch)
		rep.Converted += written
		if err != nil {
			rep.Failed += len(batch) - written
			d.log.Warn().Err(err).Msg("organization batch incomplete")
		}
		batch = map[string]interface{}{}
	}

	for _, doc := range docs {
		var rec legacy.OrgRecord
		if err := json.Unmarshal(doc, &rec); err != nil || rec.ID == "" {
			continue
		}
		rep.Found++
		org := d.convert.Organization(rec)
		batch[org.ID] = org
		for _, svc := range d.convert.HealthcareServices(rec) {
			batch[svc.ID] = svc
		}
		if len(batch) >= d.batchCap {
			flush()
		}
	}
	flush()
	return rep
}

// migrateCollection runs a straight source-to-target conversion with ordered
// batch flushes.
func (d *Driver) migrateCollection(ctx context.Context, src, dst, orderBy string,
	convert func(json.RawMessage) (string, interface{}, error)) TypeReport {

	var rep TypeReport
	docs, err := d.store.Query(ctx, src, docstore.Query{OrderBy: orderBy})
	if err != nil {
		rep.Error = err.Error()
		return rep
	}

	batch := map[string]interface{}{}
	flush := func() {
		if len(batch) == 0 {
			return
		}
		written, err := d.store.SetBatch(ctx, dst, batch)
		rep.Converted += written
		if err != nil {
			rep.Failed += len(batch) - written
			d.log.Warn().Err(err).Str("collection", dst).Msg("migration batch incomplete")
		}
		batch = map[string]interface{}{}
	}

	for _, doc := range docs {
		rep.Found++
		id, resource, err := convert(doc)
		if err != nil {
			rep.Failed++
			continue
		}
		batch[id] = resource
		if len(batch) >= d.batchCap {
			flush()
		}
	}
	flush()
	return rep
}

// loadProfile reads a patient's profile, tolerating absence.
func (d *Driver) loadProfile(ctx context.Context, patientID string) (*legacy.Profile, error) {
	doc, err := d.store.Get(ctx, legacy.CollectionProfiles, patientID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var profile legacy.Profile
	if err := json.Unmarshal(doc, &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}
