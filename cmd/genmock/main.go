// Command genmock writes a synthetic GOES 5-minute proton flux file in the
// SWPC list layout, with one solar particle event injected into a quiet
// background. The output feeds fluxalert and validate without network access.
//
// Usage:
//
//	go run ./cmd/genmock --out data/mock/20170910_Gp_part_5m.txt \
//	  --start 2017-09-10T00:00:00Z --rows 288 --event-row 192 --peak 850
package main

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/proton-flux-alerts/internal/adapter/swpc"
	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
)

// background levels for P>10, P>30, P>50 and P>100, well under the 1 pfu threshold.
var background = [domain.NumBands]float64{0.35, 0.18, 0.12, 0.07}

// peakRatio scales the P>10 peak for each band; harder spectra fall off faster.
var peakRatio = [domain.NumBands]float64{1, 0.3, 0.15, 0.05}

type options struct {
	out      string
	start    time.Time
	rows     int
	eventRow int
	riseRows int
	decay    float64
	peak     float64
	gapRow   int
	seed     uint64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		opts  options
		start string
	)
	cmd := &cobra.Command{
		Use:          "genmock",
		Short:        "Write a synthetic SWPC proton flux file with an injected event",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			t, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("parse --start: %w", err)
			}
			opts.start = t.UTC().Truncate(domain.SamplingInterval)
			return run(opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.out, "out", "", "output path for the generated feed (required)")
	f.StringVar(&start, "start", "2017-09-10T00:00:00Z", "timestamp of the first row (RFC 3339)")
	f.IntVar(&opts.rows, "rows", 288, "number of 5-minute rows to write")
	f.IntVar(&opts.eventRow, "event-row", 192, "row where the event onset begins, -1 for a quiet day")
	f.IntVar(&opts.riseRows, "rise-rows", 6, "rows from onset to peak")
	f.Float64Var(&opts.decay, "decay", 12, "e-folding decay time after the peak, in rows")
	f.Float64Var(&opts.peak, "peak", 850, "peak P>10 flux in pfu")
	f.IntVar(&opts.gapRow, "gap-row", -1, "row whose P>100 reading is written as missing data, -1 for none")
	f.Uint64Var(&opts.seed, "seed", 20170910, "random seed for background jitter")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func run(opts options) error {
	if opts.rows <= 0 {
		return fmt.Errorf("--rows must be positive, got %d", opts.rows)
	}
	records := generate(opts)

	if err := os.MkdirAll(filepath.Dir(opts.out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(opts.out) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.out, err)
	}
	defer f.Close()

	if err := swpc.Write(f, "genmock synthetic event", records); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}

	events := domain.NewDetector().Detect(records)
	log.Printf("%s: %d rows, %d events expected", opts.out, len(records), len(events))
	return f.Close()
}

// generate builds the feed. The same options always yield the same rows.
func generate(opts options) []domain.Record {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data

	recs := make([]domain.Record, opts.rows)
	for i := range recs {
		r := domain.Record{Timestamp: opts.start.Add(time.Duration(i) * domain.SamplingInterval)}
		shape := eventShape(i, opts)
		for b := range domain.NumBands {
			jitter := 1 + 0.1*(rng.Float64()-0.5)
			r.Flux[b] = round3(background[b]*jitter + opts.peak*peakRatio[b]*shape)
		}
		r.P5 = round3(r.Flux[0] * 1.6)
		r.P1 = round3(r.Flux[0] * 3.2)
		if i == opts.gapRow {
			r.Flux[domain.Band100.Index()] = swpc.MissingValue
		}
		recs[i] = r
	}
	return recs
}

// eventShape returns the event's contribution at row i as a fraction of the
// peak: a linear rise over riseRows followed by exponential decay.
func eventShape(i int, opts options) float64 {
	if opts.eventRow < 0 || i < opts.eventRow {
		return 0
	}
	since := i - opts.eventRow
	if opts.riseRows > 0 && since < opts.riseRows {
		return float64(since+1) / float64(opts.riseRows)
	}
	if opts.decay <= 0 {
		return 0
	}
	return math.Exp(-float64(since-opts.riseRows) / opts.decay)
}

// round3 keeps three significant figures, matching the file's %9.2e columns.
func round3(v float64) float64 {
	if v == 0 {
		return 0
	}
	mag := math.Pow(10, math.Floor(math.Log10(math.Abs(v)))-2)
	return math.Round(v/mag) * mag
}
