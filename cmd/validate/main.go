// Command validate checks a GOES proton flux file before it is fed to
// fluxalert: the file must parse, rows must follow the 5-minute cadence the
// row-count recovery window assumes, and a dry run prints every notification
// the detector would send without contacting any channel.
//
// Usage:
//
//	go run ./cmd/validate data/mock/20170910_Gp_part_5m.txt
//
// The detector is configured from the same environment variables as fluxalert.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/proton-flux-alerts/internal/adapter/swpc"
	"github.com/couchcryptid/proton-flux-alerts/internal/config"
	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
	"github.com/couchcryptid/proton-flux-alerts/internal/notify"
	"github.com/couchcryptid/proton-flux-alerts/internal/observability"
	"github.com/couchcryptid/proton-flux-alerts/internal/pipeline"
)

// maxListed caps the per-phase error list.
const maxListed = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	notes  []string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "validate <file>",
		Short:        "Check a proton flux file and dry-run the detector over it",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			records, err := swpc.ParseFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "=== Proton Flux Feed Validation: %s ===\n\n", args[0])

			phases := validate(cmd.Context(), records, cfg, out)
			if !report(out, len(records), phases) {
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}
}

func validate(ctx context.Context, records []domain.Record, cfg *config.Config, out io.Writer) []*phase {
	det := cfg.Detector()
	return []*phase{
		checkStructure(records),
		checkCadence(records, cfg.RecoveryMode),
		checkMissing(records),
		checkDeterminism(records, det),
		dryRun(ctx, records, det, cfg, out),
	}
}

// report prints the phase table and details and reports whether every phase passed.
func report(out io.Writer, rows int, phases []*phase) bool {
	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}
	fmt.Fprintf(out, "\nRows: %d\n", rows)

	for _, p := range phases {
		if len(p.notes) == 0 && p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for _, n := range p.notes {
			fmt.Fprintf(out, "  note: %s\n", n)
		}
		for i, e := range p.errors {
			if i == maxListed {
				fmt.Fprintf(out, "  ... and %d more\n", len(p.errors)-maxListed)
				break
			}
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return true
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return false
}

// ── Phase 1: Structure ──

func checkStructure(records []domain.Record) *phase {
	p := &phase{name: "Phase 1: Structure"}
	if len(records) == 0 {
		p.errorf("file has a header but no data rows")
		return p
	}
	p.notef("%s to %s",
		records[0].Timestamp.Format(time.RFC3339), records[len(records)-1].Timestamp.Format(time.RFC3339))
	return p
}

// ── Phase 2: Cadence ──
// Row-count recovery assumes one row every five minutes. Elapsed mode only
// needs ordered rows, so gaps become notes there.

func checkCadence(records []domain.Record, mode string) *phase {
	p := &phase{name: "Phase 2: Sampling Cadence (5 min)"}
	add := p.errorf
	if mode == config.RecoveryModeElapsed {
		add = p.notef
	}
	for i := 1; i < len(records); i++ {
		gap := records[i].Timestamp.Sub(records[i-1].Timestamp)
		if gap != domain.SamplingInterval {
			add("row %d (%s): %s after previous row",
				i, records[i].Timestamp.Format(time.RFC3339), gap)
		}
	}
	return p
}

// ── Phase 3: Missing data ──

func checkMissing(records []domain.Record) *phase {
	p := &phase{name: "Phase 3: Missing Data"}
	var missing [domain.NumBands]int
	for i, r := range records {
		for _, b := range domain.Bands {
			v := r.FluxFor(b)
			switch {
			case v == swpc.MissingValue:
				missing[b.Index()]++
			case v < 0:
				p.errorf("row %d %s: negative flux %g", i, b.Label(), v)
			}
		}
	}
	for _, b := range domain.Bands {
		if n := missing[b.Index()]; n > 0 {
			p.notef("%s: %d missing samples, plotted as 0 and never elevated", b.Label(), n)
		}
	}
	return p
}

// ── Phase 4: Determinism ──

func checkDeterminism(records []domain.Record, det domain.Detector) *phase {
	p := &phase{name: "Phase 4: Detector Determinism"}
	first := det.Detect(records)
	second := det.Detect(records)
	if diff := cmp.Diff(first, second); diff != "" {
		p.errorf("repeated scans differ (-first +second):\n%s", diff)
	}

	var elevations, recoveries [domain.NumBands]int
	for _, e := range first {
		if e.Kind == domain.EventRecovery {
			recoveries[e.Band.Index()]++
		} else {
			elevations[e.Band.Index()]++
		}
	}
	for _, b := range domain.Bands {
		i := b.Index()
		if recoveries[i] > elevations[i] {
			p.errorf("%s: %d recoveries for %d elevations", b.Label(), recoveries[i], elevations[i])
		}
	}
	return p
}

// ── Phase 5: Dry run ──

// printer is a notify.Notifier that writes one line per notification.
type printer struct{ out io.Writer }

func (printer) Name() string { return "stdout" }

func (p printer) Notify(_ context.Context, n notify.Notification) error {
	_, err := fmt.Fprintf(p.out, "  %s  %-50s  %s\n",
		n.ObservedAt.Format("2006-01-02 15:04"), notify.Subject(n), notify.AlertText(n))
	return err
}

func dryRun(ctx context.Context, records []domain.Record, det domain.Detector, cfg *config.Config, out io.Writer) *phase {
	p := &phase{name: "Phase 5: Notification Dry Run"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	dispatcher := notify.NewDispatcher(cfg.NotifyTimeout, logger, metrics, printer{out: out})
	pl := pipeline.New(det, nil, dispatcher, cfg.ReferenceLink, cfg.QuietWindow(), logger, metrics)

	fmt.Fprintln(out, "Notifications:")
	sum, err := pl.Run(ctx, records)
	if err != nil {
		p.errorf("scan stopped: %v", err)
		return p
	}
	if sum.Failed > 0 {
		p.errorf("%d notifications could not be printed", sum.Failed)
	}
	p.notef("%d elevations, %d recoveries", sum.Elevations, sum.Recoveries)
	return p
}
