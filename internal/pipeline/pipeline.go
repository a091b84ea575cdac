package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/proton-flux-alerts/internal/adapter/chart"
	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
	"github.com/couchcryptid/proton-flux-alerts/internal/notify"
	"github.com/couchcryptid/proton-flux-alerts/internal/observability"
)

// Renderer draws the chart attached to a notification.
type Renderer interface {
	Render(ctx context.Context, records []domain.Record) (chart.Chart, error)
}

// Dispatcher delivers a notification to every configured channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, n notify.Notification) error
}

// Summary describes one completed scan.
type Summary struct {
	Records       int           `json:"records"`
	Elevations    int           `json:"elevations"`
	Recoveries    int           `json:"recoveries"`
	Failed        int           `json:"failed"`
	ChartFailures int           `json:"chart_failures"`
	Duration      time.Duration `json:"duration_ns"`
}

// Pipeline drives the detector over a parsed feed and hands every event to
// the renderer and dispatcher in firing order.
type Pipeline struct {
	detector   domain.Detector
	renderer   Renderer
	dispatcher Dispatcher
	link       string
	window     time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool

	mu       sync.Mutex
	progress Summary
}

// New creates a Pipeline. A nil renderer sends notifications without charts.
func New(d domain.Detector, r Renderer, disp Dispatcher, link string, window time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		detector:   d,
		renderer:   r,
		dispatcher: disp,
		link:       link,
		window:     window,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a scan has started.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("scan has not started yet")
	}
	return nil
}

// Status returns the progress of the current or last scan.
func (p *Pipeline) Status() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Pipeline) record(sum Summary) {
	p.mu.Lock()
	p.progress = sum
	p.mu.Unlock()
}

// Run scans records once. Delivery failures are counted and the scan moves
// on; only context cancellation stops it early.
func (p *Pipeline) Run(ctx context.Context, records []domain.Record) (Summary, error) {
	start := domain.Now()
	p.logger.Info("scan started", "records", len(records))
	p.metrics.ScanRunning.Set(1)
	defer p.metrics.ScanRunning.Set(0)
	p.ready.Store(true)

	sum := Summary{Records: len(records)}
	p.record(sum)
	for e := range p.detector.Events(records) {
		if err := ctx.Err(); err != nil {
			p.logger.Info("scan stopping", "reason", err, "row", e.Row)
			sum.Duration = domain.Since(start)
			return sum, err
		}
		p.handle(ctx, records, e, &sum)
		p.record(sum)
	}

	p.metrics.RecordsScanned.Add(float64(len(records)))
	sum.Duration = domain.Since(start)
	p.metrics.ScanDuration.Observe(sum.Duration.Seconds())
	p.record(sum)
	p.logger.Info("scan complete",
		"records", sum.Records,
		"elevations", sum.Elevations,
		"recoveries", sum.Recoveries,
		"failed", sum.Failed,
		"duration", sum.Duration,
	)
	return sum, nil
}

func (p *Pipeline) handle(ctx context.Context, records []domain.Record, e domain.Event, sum *Summary) {
	band := e.Band.Label()
	if e.Kind == domain.EventRecovery {
		sum.Recoveries++
		p.metrics.Recoveries.WithLabelValues(band).Inc()
	} else {
		sum.Elevations++
		p.metrics.Elevations.WithLabelValues(band, e.Severity.String()).Inc()
	}

	p.logger.Info("event detected",
		"kind", e.Kind,
		"band", band,
		"level", e.Severity,
		"value", e.Value,
		"row", e.Row,
		"observed_at", e.ObservedAt,
	)

	att := p.attachment(ctx, records[:e.ChartEnd], sum)
	n := notify.New(e, p.link, p.window, att)
	if err := p.dispatcher.Dispatch(ctx, n); err != nil {
		sum.Failed++
	}
}

// attachment renders the chart for prefix. A failed render is logged and the
// notification goes out without it.
func (p *Pipeline) attachment(ctx context.Context, prefix []domain.Record, sum *Summary) *notify.Attachment {
	if p.renderer == nil {
		return nil
	}

	start := domain.Now()
	ch, err := p.renderer.Render(ctx, prefix)
	p.metrics.ChartRenderDuration.Observe(domain.Since(start).Seconds())
	if err != nil {
		sum.ChartFailures++
		p.metrics.ChartRenders.WithLabelValues("error").Inc()
		p.logger.Warn("chart render failed, sending without attachment", "error", err, "points", len(prefix))
		return nil
	}
	p.metrics.ChartRenders.WithLabelValues("success").Inc()
	if ch.Empty() {
		return nil
	}
	return &notify.Attachment{Filename: ch.Filename, Data: ch.PNG}
}
