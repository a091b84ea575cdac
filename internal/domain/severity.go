package domain

// Severity is the notification level attached to an event.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityAlert
	SeverityCritical
)

// ElevatedThreshold is the flux a band must strictly exceed to count as elevated.
const ElevatedThreshold = 1.0

const (
	alertThreshold    = 10.0
	criticalThreshold = 100.0
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityAlert:
		return "ALERT"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Classify maps an elevated flux reading to its severity. Boundary values
// resolve to the higher level: 10 is ALERT and 100 is CRITICAL.
// The caller guarantees flux > ElevatedThreshold.
func Classify(flux float64) Severity {
	switch {
	case flux >= criticalThreshold:
		return SeverityCritical
	case flux >= alertThreshold:
		return SeverityAlert
	default:
		return SeverityWarning
	}
}
