package audit

import (
	"fmt"
	"time"
)

// Detection thresholds. Both are strict: activity at the threshold is normal,
// one past it is flagged.
const (
	maxDoctorsPerDay  = 3
	maxAccessesPerDay = 10
)

// Concern types.
const (
	ConcernMultipleDoctors = "multiple_doctors"
	ConcernHighFrequency   = "high_frequency"
	ConcernFailedAttempts  = "failed_attempts"
)

// Concern severities.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Concern is one suspicious access pattern surfaced to the patient.
type Concern struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// DetectConcerns scans a trail for suspicious patterns: too many distinct
// named doctors in a day, too many accesses in a day, or any unauthorized
// attempt anywhere in the trail. Entries without a usable actor name do not
// count toward the doctor set. An empty result means nothing stood out.
func DetectConcerns(entries []LogEntry, now time.Time) []Concern {
	cutoff := now.Add(-24 * time.Hour)

	doctors := map[string]struct{}{}
	recent := 0
	failed := 0
	for _, entry := range entries {
		if !entry.Authorized {
			failed++
		}
		if entry.Timestamp.After(cutoff) {
			recent++
			if entry.Doctor != "" && entry.Doctor != UnknownActor {
				doctors[entry.Doctor] = struct{}{}
			}
		}
	}

	var concerns []Concern
	if len(doctors) > maxDoctorsPerDay {
		concerns = append(concerns, Concern{
			Type:     ConcernMultipleDoctors,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("%d different doctors accessed your records in the last 24 hours", len(doctors)),
		})
	}
	if recent > maxAccessesPerDay {
		concerns = append(concerns, Concern{
			Type:     ConcernHighFrequency,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("Your records were accessed %d times in the last 24 hours", recent),
		})
	}
	if failed > 0 {
		concerns = append(concerns, Concern{
			Type:     ConcernFailedAttempts,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("%d unauthorized access attempts were detected", failed),
		})
	}
	return concerns
}
