package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/proton-flux-alerts/internal/observability"
)

// Dispatcher delivers each notification to every channel in order. A failing
// channel never stops the others; all failures are returned joined.
type Dispatcher struct {
	channels []Notifier
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewDispatcher creates a Dispatcher. Each delivery is bounded by timeout when
// it is positive.
func NewDispatcher(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics, channels ...Notifier) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Channels returns the names of the configured channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Dispatch sends n to every channel.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	var errs []error
	for _, ch := range d.channels {
		if err := d.deliver(ctx, ch, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, ch Notifier, n Notification) error {
	name := ch.Name()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := ch.Notify(ctx, n)
	d.metrics.NotificationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		d.metrics.NotificationFailures.WithLabelValues(name).Inc()
		d.logger.Warn("notification delivery failed",
			"channel", name,
			"id", n.ID,
			"level", n.LevelName,
			"band", n.BandLabel,
			"error", err,
		)
		return err
	}

	d.metrics.NotificationsSent.WithLabelValues(name, n.LevelName).Inc()
	d.logger.Info("notification sent",
		"channel", name,
		"id", n.ID,
		"level", n.LevelName,
		"band", n.BandLabel,
		"value", n.Value,
	)
	return nil
}
