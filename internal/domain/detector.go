package domain

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	// SamplingInterval is the cadence RecoveryRows mode assumes.
	SamplingInterval = 5 * time.Minute

	// DefaultRecoveryRows is 90 minutes of 5-minute rows.
	DefaultRecoveryRows = 18

	// DefaultRecoveryWindow is the quiet period RecoveryElapsed mode waits for.
	DefaultRecoveryWindow = 90 * time.Minute
)

// eventNamespace seeds deterministic event IDs.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://www.swpc.noaa.gov/products/goes-proton-flux"))

// EventKind distinguishes elevation events from recovery events.
type EventKind int

const (
	EventElevation EventKind = iota
	EventRecovery
)

func (k EventKind) String() string {
	if k == EventRecovery {
		return "recovery"
	}
	return "elevation"
}

// Event is one notification the detector wants delivered.
type Event struct {
	ID       string
	Kind     EventKind
	Band     Band
	Severity Severity
	Value    float64

	// Row is the index of the row being processed when the event fired.
	Row int
	// SourceRow is the row Value was read from. It differs from Row for
	// recovery events under RecoveryChartArmed.
	SourceRow  int
	ObservedAt time.Time

	// ChartEnd is the exclusive end of the record prefix to plot.
	ChartEnd int
}

// BandState is the detector's memory for one band. The zero value means no
// recovery window is open.
type BandState struct {
	Armed   bool
	ArmedAt int
}

// ScanState holds one BandState per band, indexed by Band.Index.
type ScanState [NumBands]BandState

// For returns the state of band b.
func (s ScanState) For(b Band) BandState {
	return s[b.Index()]
}

// RecoveryMode selects how the recovery countdown is measured.
type RecoveryMode int

const (
	// RecoveryRows fires when the current row is exactly ArmedAt plus the
	// configured row count. Requires a fixed 5-minute cadence.
	RecoveryRows RecoveryMode = iota
	// RecoveryElapsed fires on the first row whose timestamp is at least the
	// configured window after the armed row's timestamp.
	RecoveryElapsed
)

// RecoveryChartPolicy selects which row a recovery event reports and plots up to.
type RecoveryChartPolicy int

const (
	// RecoveryChartArmed plots records[0..ArmedAt] and reports the armed row's flux.
	RecoveryChartArmed RecoveryChartPolicy = iota
	// RecoveryChartCurrent plots records[0..row] and reports the current flux.
	RecoveryChartCurrent
)

// Detector is the threshold-crossing scanner. It holds configuration only;
// all per-scan memory lives in ScanState.
type Detector struct {
	mode        RecoveryMode
	rows        int
	window      time.Duration
	chartPolicy RecoveryChartPolicy
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithRecoveryRows counts the recovery countdown in rows.
func WithRecoveryRows(n int) DetectorOption {
	return func(d *Detector) {
		d.mode = RecoveryRows
		d.rows = n
	}
}

// WithRecoveryWindow measures the recovery countdown in elapsed time.
func WithRecoveryWindow(window time.Duration) DetectorOption {
	return func(d *Detector) {
		d.mode = RecoveryElapsed
		d.window = window
	}
}

// WithRecoveryChart sets the recovery chart policy.
func WithRecoveryChart(p RecoveryChartPolicy) DetectorOption {
	return func(d *Detector) {
		d.chartPolicy = p
	}
}

// NewDetector returns a Detector counting DefaultRecoveryRows rows and
// reporting recoveries against the armed row.
func NewDetector(opts ...DetectorOption) Detector {
	d := Detector{
		mode:   RecoveryRows,
		rows:   DefaultRecoveryRows,
		window: DefaultRecoveryWindow,
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.rows <= 0 {
		d.rows = DefaultRecoveryRows
	}
	if d.window <= 0 {
		d.window = DefaultRecoveryWindow
	}
	return d
}

// Step evaluates row i against state and returns the updated state along with
// the events the row triggers. It has no side effects.
func (d Detector) Step(state ScanState, records []Record, i int) (ScanState, []Event) {
	rec := records[i]
	var events []Event

	for _, b := range Bands {
		v := rec.FluxFor(b)
		if !(v > ElevatedThreshold) {
			continue
		}
		events = append(events, Event{
			ID:         eventID(b, EventElevation, i, rec.Timestamp),
			Kind:       EventElevation,
			Band:       b,
			Severity:   Classify(v),
			Value:      v,
			Row:        i,
			SourceRow:  i,
			ObservedAt: rec.Timestamp,
			ChartEnd:   chartEnd(len(records), i),
		})
		state[b.Index()] = BandState{Armed: true, ArmedAt: i}
	}

	for _, b := range Bands {
		bs := state[b.Index()]
		if !bs.Armed || !d.recovered(records, bs.ArmedAt, i) {
			continue
		}
		src := bs.ArmedAt
		if d.chartPolicy == RecoveryChartCurrent {
			src = i
		}
		events = append(events, Event{
			ID:         eventID(b, EventRecovery, i, rec.Timestamp),
			Kind:       EventRecovery,
			Band:       b,
			Severity:   SeverityInfo,
			Value:      records[src].FluxFor(b),
			Row:        i,
			SourceRow:  src,
			ObservedAt: rec.Timestamp,
			ChartEnd:   chartEnd(len(records), src),
		})
		state[b.Index()] = BandState{}
	}

	return state, events
}

// Events lazily scans records from an empty state, yielding events in firing order.
func (d Detector) Events(records []Record) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		var state ScanState
		for i := range records {
			var events []Event
			state, events = d.Step(state, records, i)
			for _, e := range events {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// Detect scans records from an empty state and returns every event.
func (d Detector) Detect(records []Record) []Event {
	return slices.Collect(d.Events(records))
}

func (d Detector) recovered(records []Record, armedAt, i int) bool {
	if d.mode == RecoveryElapsed {
		return i > armedAt && records[i].Timestamp.Sub(records[armedAt].Timestamp) >= d.window
	}
	return i == armedAt+d.rows
}

// chartEnd returns the exclusive prefix end for a chart ending at row end.
// A chart at row 0 borrows the next row so it has at least two points.
func chartEnd(n, end int) int {
	if end == 0 && n > 1 {
		return 2
	}
	return end + 1
}

// eventID produces a deterministic ID so reprocessing a file yields the same IDs.
func eventID(b Band, kind EventKind, row int, ts time.Time) string {
	input := fmt.Sprintf("%s|%s|%d|%s", b.Label(), kind, row, ts.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(eventNamespace, []byte(input)).String()
}
