// Package audit implements the append-only audit trail: recording access
// events, querying them back, shaping them for patient-facing display, and
// flagging suspicious access patterns.
package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/docstore"
	"github.com/healsync/healsync/internal/platform/fhir"
)

// Recorder writes AuditEvents to the audit collection. Events are validated
// before the write; an invalid event is rejected, never persisted. Events are
// immutable once written.
type Recorder struct {
	store  docstore.Store
	events *fhir.AuditBuilder
	log    zerolog.Logger
}

func NewRecorder(store docstore.Store, events *fhir.AuditBuilder, log zerolog.Logger) *Recorder {
	return &Recorder{store: store, events: events, log: log}
}

// Record validates and persists a single AuditEvent.
func (r *Recorder) Record(ctx context.Context, e *fhir.AuditEvent) error {
	if err := fhir.ValidateAuditEvent(e); err != nil {
		return fmt.Errorf("audit: rejecting event: %w", err)
	}
	if err := r.store.Set(ctx, legacy.CollectionAuditEvents, e.ID, e); err != nil {
		return fmt.Errorf("audit: persist event %s: %w", e.ID, err)
	}
	return nil
}

// RecordAccess logs a read or modification of patient data. Audit storage
// failures are logged and swallowed; they must not fail the operation that
// triggered them.
func (r *Recorder) RecordAccess(ctx context.Context, p fhir.AccessParams) {
	e := r.events.AccessEvent(p)
	if err := r.Record(ctx, e); err != nil {
		r.log.Error().Err(err).
			Str("patient_id", p.PatientID).
			Str("action", p.Action).
			Msg("audit event not recorded")
	}
}

// RecordExport logs a bundle download.
func (r *Recorder) RecordExport(ctx context.Context, p fhir.ExportParams) {
	e := r.events.ExportEvent(p)
	if err := r.Record(ctx, e); err != nil {
		r.log.Error().Err(err).
			Str("patient_id", p.PatientID).
			Msg("export audit event not recorded")
	}
}

// RecordAuth logs a login or logout.
func (r *Recorder) RecordAuth(ctx context.Context, p fhir.AuthParams) {
	e := r.events.AuthEvent(p)
	if err := r.Record(ctx, e); err != nil {
		r.log.Error().Err(err).
			Str("user_id", p.UserID).
			Str("kind", p.Kind).
			Msg("auth audit event not recorded")
	}
}
