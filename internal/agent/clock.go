package agent

import "fmt"

// Urgency colours the countdown.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
)

// UrgencyFor returns the band for the remaining seconds: critical in the
// last minute, warning in the last three.
func UrgencyFor(remaining int) Urgency {
	switch {
	case remaining <= 60:
		return UrgencyCritical
	case remaining <= 180:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
