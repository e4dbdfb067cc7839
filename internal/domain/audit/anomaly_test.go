package audit

import (
	"fmt"
	"testing"
	"time"
)

func entriesWithDoctors(now time.Time, doctors int) []LogEntry {
	var entries []LogEntry
	for i := 0; i < doctors; i++ {
		entries = append(entries, LogEntry{
			Timestamp:  now.Add(-time.Duration(i+1) * time.Hour),
			Doctor:     fmt.Sprintf("Dr. %d", i),
			Authorized: true,
		})
	}
	return entries
}

func concernTypes(concerns []Concern) map[string]Concern {
	out := map[string]Concern{}
	for _, c := range concerns {
		out[c.Type] = c
	}
	return out
}

func TestDetectConcerns_MultipleDoctorsBoundary(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	// Exactly three doctors in 24h is normal.
	if got := DetectConcerns(entriesWithDoctors(now, 3), now); len(got) != 0 {
		t.Errorf("3 doctors flagged: %+v", got)
	}

	// Four is flagged.
	concerns := concernTypes(DetectConcerns(entriesWithDoctors(now, 4), now))
	c, ok := concerns[ConcernMultipleDoctors]
	if !ok {
		t.Fatal("4 doctors not flagged")
	}
	if c.Severity != SeverityMedium {
		t.Errorf("severity = %s", c.Severity)
	}
	if c.Message != "4 different doctors accessed your records in the last 24 hours" {
		t.Errorf("message = %q", c.Message)
	}
}

func TestDetectConcerns_PlaceholderActorNotADoctor(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	// Three named doctors plus entries without a usable actor name stay
	// under the threshold; the placeholder is not a distinct doctor.
	entries := append(entriesWithDoctors(now, 3),
		LogEntry{Timestamp: now.Add(-30 * time.Minute), Doctor: UnknownActor, Authorized: true},
		LogEntry{Timestamp: now.Add(-40 * time.Minute), Authorized: true},
	)
	if got := DetectConcerns(entries, now); len(got) != 0 {
		t.Errorf("placeholder counted as a doctor: %+v", got)
	}

	// With four named doctors the count reflects only the named ones.
	entries = append(entriesWithDoctors(now, 4),
		LogEntry{Timestamp: now.Add(-30 * time.Minute), Doctor: UnknownActor, Authorized: true},
	)
	concerns := concernTypes(DetectConcerns(entries, now))
	c, ok := concerns[ConcernMultipleDoctors]
	if !ok {
		t.Fatal("4 named doctors not flagged")
	}
	if c.Message != "4 different doctors accessed your records in the last 24 hours" {
		t.Errorf("message = %q", c.Message)
	}
}

func TestDetectConcerns_HighFrequencyBoundary(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tenAccesses := make([]LogEntry, 10)
	for i := range tenAccesses {
		tenAccesses[i] = LogEntry{
			Timestamp:  now.Add(-time.Duration(i+1) * time.Minute),
			Doctor:     "Dr. A",
			Authorized: true,
		}
	}
	if got := DetectConcerns(tenAccesses, now); len(got) != 0 {
		t.Errorf("10 accesses flagged: %+v", got)
	}

	eleven := append(tenAccesses, LogEntry{
		Timestamp: now.Add(-30 * time.Minute), Doctor: "Dr. A", Authorized: true,
	})
	concerns := concernTypes(DetectConcerns(eleven, now))
	c, ok := concerns[ConcernHighFrequency]
	if !ok {
		t.Fatal("11 accesses not flagged")
	}
	if c.Severity != SeverityHigh {
		t.Errorf("severity = %s", c.Severity)
	}
	if c.Message != "Your records were accessed 11 times in the last 24 hours" {
		t.Errorf("message = %q", c.Message)
	}
}

func TestDetectConcerns_OldAccessesIgnored(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	// Heavy activity two days ago does not trigger the 24h rules.
	var entries []LogEntry
	for i := 0; i < 20; i++ {
		entries = append(entries, LogEntry{
			Timestamp:  now.Add(-48 * time.Hour),
			Doctor:     fmt.Sprintf("Dr. %d", i),
			Authorized: true,
		})
	}
	if got := DetectConcerns(entries, now); len(got) != 0 {
		t.Errorf("stale activity flagged: %+v", got)
	}
}

func TestDetectConcerns_FailedAttempts(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	// Unauthorized attempts count over the whole trail, not just 24h.
	entries := []LogEntry{
		{Timestamp: now.Add(-72 * time.Hour), Doctor: "Dr. A", Authorized: false},
		{Timestamp: now.Add(-1 * time.Hour), Doctor: "Dr. B", Authorized: false},
		{Timestamp: now.Add(-2 * time.Hour), Doctor: "Dr. B", Authorized: true},
	}
	concerns := concernTypes(DetectConcerns(entries, now))
	c, ok := concerns[ConcernFailedAttempts]
	if !ok {
		t.Fatal("unauthorized attempts not flagged")
	}
	if c.Severity != SeverityHigh {
		t.Errorf("severity = %s", c.Severity)
	}
	if c.Message != "2 unauthorized access attempts were detected" {
		t.Errorf("message = %q", c.Message)
	}
}
