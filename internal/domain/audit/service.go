package audit

import (
	"context"
	"time"
)

// Trail is the patient-facing view of an audit trail: entries grouped by
// date, dashboard aggregates, and any detected concerns.
type Trail struct {
	Groups   []DateGroup `json:"groups"`
	Summary  Summary     `json:"summary"`
	Concerns []Concern   `json:"concerns"`
}

// Service ties recording and querying together behind one surface.
type Service struct {
	Recorder *Recorder
	queries  *Queries
	now      func() time.Time
}

func NewService(recorder *Recorder, queries *Queries) *Service {
	return &Service{Recorder: recorder, queries: queries, now: time.Now}
}

// PatientTrail loads, formats, and analyzes the access history for one
// patient.
func (s *Service) PatientTrail(ctx context.Context, patientID string, limit int) (*Trail, error) {
	events, err := s.queries.ForPatient(ctx, patientID, limit)
	if err != nil {
		return nil, err
	}
	entries := FormatEvents(events)
	now := s.now()
	return &Trail{
		Groups:   GroupByDate(entries, now),
		Summary:  Summarize(entries, now),
		Concerns: DetectConcerns(entries, now),
	}, nil
}

// ActorTrail loads the actions a doctor performed, newest first.
func (s *Service) ActorTrail(ctx context.Context, actorID string, limit int) ([]LogEntry, error) {
	events, err := s.queries.ForActor(ctx, actorID, limit)
	if err != nil {
		return nil, err
	}
	return FormatEvents(events), nil
}
