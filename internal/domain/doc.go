// Package domain models GOES proton flux observations and the threshold
// crossing detector that turns them into notification events.
//
// # Data Source
//
// Observations come from the NOAA Space Weather Prediction Center (SWPC)
// particle lists, e.g. ftp://ftp.swpc.noaa.gov/pub/lists/particle/. Each file
// holds one row per 5-minute sample with integral proton flux readings for
// several energy thresholds. The adapter in internal/adapter/swpc parses the
// file into an ordered []Record before the detector runs.
//
// # SWPC Data Conventions
//
// Flux units:
//
//	Particles cm^-2 s^-1 sr^-1. Column "P>10" is the integral flux of protons
//	above 10 MeV; likewise P>30, P>50 and P>100.
//
// Missing data:
//
//	SWPC writes -1.00e+05 for missing samples. The value is kept verbatim; it
//	never exceeds the elevation threshold so it cannot trigger an event.
//
// Cadence:
//
//	Rows are 5 minutes apart. RecoveryRows mode counts rows and therefore
//	assumes this cadence; RecoveryElapsed mode measures wall-clock time
//	between row timestamps instead.
//
// # Detection
//
// Every band is tracked independently. A row whose flux is above 1.0 is an
// elevation and fires on every qualifying row, classified as:
//
//	(1, 10)    WARNING
//	[10, 100)  ALERT
//	[100, ∞)   CRITICAL
//
// An elevation arms (or re-arms) the band's recovery countdown at that row.
// Once the countdown elapses (18 rows, i.e. 90 minutes) without being re-armed
// the detector emits a single INFO recovery event and disarms the band.
// Sustained elevation therefore suppresses recovery until a gap appears.
//
// Within one row all bands' elevation checks run before any recovery check.
//
// # Event IDs
//
// Event IDs are UUIDv5 hashes of band|kind|row|timestamp, so re-running the
// detector over the same file yields the same IDs. Downstream sinks can use
// them as idempotency keys. See [eventID].
package domain
