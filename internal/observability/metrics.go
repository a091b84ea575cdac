package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "proton_flux"

// Metrics holds the Prometheus counters, histograms, and gauges for a scan run.
type Metrics struct {
	RecordsScanned prometheus.Counter
	ScanRunning    prometheus.Gauge
	ScanDuration   prometheus.Histogram

	// Detector output.
	Elevations *prometheus.CounterVec // labels: band, severity
	Recoveries *prometheus.CounterVec // labels: band

	// Delivery metrics.
	NotificationsSent    *prometheus.CounterVec   // labels: channel, level
	NotificationFailures *prometheus.CounterVec   // labels: channel
	NotificationDuration *prometheus.HistogramVec // labels: channel

	// Chart metrics.
	ChartRenders        *prometheus.CounterVec // labels: result={success,error}
	ChartRenderDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_scanned_total",
			Help:      "Total feed rows evaluated by the detector.",
		}),
		ScanRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_running",
			Help:      "1 while a scan is in progress, 0 otherwise.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of a complete scan including deliveries.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		Elevations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elevation_events_total",
			Help:      "Elevation events by band and severity.",
		}, []string{"band", "severity"}),
		Recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_events_total",
			Help:      "Recovery events by band.",
		}, []string{"band"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications delivered by channel and level.",
		}, []string{"channel", "level"}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Failed notification deliveries by channel.",
		}, []string{"channel"}),
		NotificationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_duration_seconds",
			Help:      "Delivery latency per channel.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
		ChartRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_renders_total",
			Help:      "Chart render attempts by result.",
		}, []string{"result"}),
		ChartRenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chart_render_duration_seconds",
			Help:      "Chart render latency, cache hits included.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsScanned,
		m.ScanRunning,
		m.ScanDuration,
		m.Elevations,
		m.Recoveries,
		m.NotificationsSent,
		m.NotificationFailures,
		m.NotificationDuration,
		m.ChartRenders,
		m.ChartRenderDuration,
	}
}
