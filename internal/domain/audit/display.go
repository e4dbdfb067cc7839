package audit

import (
	"time"

	"github.com/healsync/healsync/internal/platform/fhir"
)

// UnknownActor is shown when an event carries no usable actor name.
const UnknownActor = "Unknown Doctor"

// friendlyText maps an action label to the patient-facing description.
var friendlyText = map[string]string{
	"Read":   "Viewed your medical records",
	"Create": "Added new medical record",
	"Update": "Updated medical record",
	"Delete": "Deleted medical record",
	"Login":  "Logged into the system",
	"Logout": "Logged out of the system",
	"Export": "Downloaded your medical data",
}

const friendlyFallback = "Accessed your data"

// LogEntry is one audit event shaped for patient-facing display. Time is the
// clock-of-day string, filled in when entries are grouped by date.
type LogEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Time       string    `json:"time,omitempty"`
	Action     string    `json:"action"`
	Doctor     string    `json:"doctor"`
	Text       string    `json:"text"`
	Details    string    `json:"details"`
	Location   string    `json:"location"`
	Authorized bool      `json:"authorized"`
}

// DateGroup is a run of entries sharing a calendar date, newest group first.
type DateGroup struct {
	Label   string     `json:"label"`
	Entries []LogEntry `json:"entries"`
}

// Summary aggregates a trail for the patient dashboard.
type Summary struct {
	TotalAccesses  int        `json:"totalAccesses"`
	UniqueDoctors  int        `json:"uniqueDoctors"`
	LastAccess     *time.Time `json:"lastAccess,omitempty"`
	RecentActivity []LogEntry `json:"recentActivity"`
}

// FormatEvent shapes one AuditEvent for display. The action label comes from
// the first subtype coding's display, falling back to the raw action code;
// the actor is the requesting agent's display name, the details come from the
// patient entity's description, and the location is the requestor's network
// address.
func FormatEvent(e *fhir.AuditEvent) LogEntry {
	actor := requestingAgent(e)
	entry := LogEntry{
		ID:         e.ID,
		Action:     actionLabel(e),
		Doctor:     actorName(actor),
		Details:    patientEntityDescription(e),
		Authorized: e.Outcome == fhir.OutcomeSuccess,
	}
	if actor != nil && actor.Network != nil {
		entry.Location = actor.Network.Address
	}
	if ts, err := time.Parse(time.RFC3339, e.Recorded); err == nil {
		entry.Timestamp = ts
	}
	if text, ok := friendlyText[entry.Action]; ok {
		entry.Text = text
	} else {
		entry.Text = friendlyFallback
	}
	return entry
}

// FormatEvents shapes a whole trail, preserving order.
func FormatEvents(events []*fhir.AuditEvent) []LogEntry {
	entries := make([]LogEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, FormatEvent(e))
	}
	return entries
}

// GroupByDate partitions entries by calendar date relative to now. The
// current date is labeled "Today", the previous "Yesterday", anything older
// gets its long-form date. Each grouped entry gets its clock-of-day string.
// Entry order within and across groups is preserved.
func GroupByDate(entries []LogEntry, now time.Time) []DateGroup {
	var groups []DateGroup
	for _, entry := range entries {
		ts := entry.Timestamp.In(now.Location())
		entry.Time = ts.Format("03:04 PM")
		label := dateLabel(ts, now)
		if n := len(groups); n > 0 && groups[n-1].Label == label {
			groups[n-1].Entries = append(groups[n-1].Entries, entry)
			continue
		}
		groups = append(groups, DateGroup{Label: label, Entries: []LogEntry{entry}})
	}
	return groups
}

// Summarize aggregates a newest-first trail: accesses in the trailing seven
// days, distinct named doctors over the whole trail, the most recent access,
// and the first five entries verbatim.
func Summarize(entries []LogEntry, now time.Time) Summary {
	s := Summary{RecentActivity: entries}
	if len(entries) > 5 {
		s.RecentActivity = entries[:5]
	}
	if s.RecentActivity == nil {
		s.RecentActivity = []LogEntry{}
	}

	cutoff := now.Add(-7 * 24 * time.Hour)
	doctors := map[string]struct{}{}
	for _, entry := range entries {
		if entry.Timestamp.After(cutoff) {
			s.TotalAccesses++
		}
		if entry.Doctor != UnknownActor {
			doctors[entry.Doctor] = struct{}{}
		}
		if s.LastAccess == nil || entry.Timestamp.After(*s.LastAccess) {
			ts := entry.Timestamp
			s.LastAccess = &ts
		}
	}
	s.UniqueDoctors = len(doctors)
	return s
}

func actionLabel(e *fhir.AuditEvent) string {
	if len(e.Subtype) > 0 && len(e.Subtype[0].Coding) > 0 && e.Subtype[0].Coding[0].Display != "" {
		return e.Subtype[0].Coding[0].Display
	}
	return e.Action
}

// requestingAgent finds the agent that initiated the event. The application
// agent carries requestor=false and must never be shown as the actor.
func requestingAgent(e *fhir.AuditEvent) *fhir.AuditAgent {
	for i := range e.Agent {
		if e.Agent[i].Requestor {
			return &e.Agent[i]
		}
	}
	return nil
}

func actorName(a *fhir.AuditAgent) string {
	if a != nil {
		if a.Who != nil && a.Who.Display != "" {
			return a.Who.Display
		}
		if a.Name != "" {
			return a.Name
		}
	}
	return UnknownActor
}

// patientEntityDescription returns the description of the entity carrying the
// Patient role (entity-role code 1).
func patientEntityDescription(e *fhir.AuditEvent) string {
	for _, entity := range e.Entity {
		if entity.Type != nil && len(entity.Type.Coding) > 0 && entity.Type.Coding[0].Code == "1" {
			return entity.Description
		}
	}
	return ""
}

func dateLabel(ts, now time.Time) string {
	y1, m1, d1 := ts.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Today"
	}
	y2, m2, d2 = now.AddDate(0, 0, -1).Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Yesterday"
	}
	return ts.Format("Monday, January 2, 2006")
}
