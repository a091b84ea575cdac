package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
)

// Recovery modes accepted by RECOVERY_MODE.
const (
	RecoveryModeRows    = "rows"
	RecoveryModeElapsed = "elapsed"
)

// Recovery chart policies accepted by RECOVERY_CHART.
const (
	RecoveryChartArmed   = "armed"
	RecoveryChartCurrent = "current"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	ReferenceLink  string
	ChartPath      string
	ChartCacheSize int

	// Detector tuning.
	RecoveryMode   string
	RecoveryRows   int
	RecoveryWindow time.Duration
	RecoveryChart  string

	// Delivery limits shared by every channel. A zero rate disables pacing.
	NotifyTimeout   time.Duration
	NotifyRateLimit float64

	// Email channel.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	EmailTo      []string
	EmailEnabled bool

	// HTTP callback channel.
	WebhookURL     string
	WebhookEnabled bool

	// Event bus channels, enabled when an address is set.
	KafkaBrokers      []string
	KafkaTopic        string
	NATSURL           string
	NATSSubjectPrefix string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	recoveryWindow, err := parsePositiveDuration("RECOVERY_WINDOW", "90m")
	if err != nil {
		return nil, err
	}
	notifyTimeout, err := parsePositiveDuration("NOTIFY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	recoveryRows, err := parsePositiveInt("RECOVERY_ROWS", 18)
	if err != nil {
		return nil, err
	}
	smtpPort, err := parsePositiveInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	chartCacheSize, err := parsePositiveInt("CHART_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	rateLimit, err := parseRate("NOTIFY_RATE_LIMIT")
	if err != nil {
		return nil, err
	}

	emailTo := sharedcfg.ParseBrokers(os.Getenv("EMAIL_TO"))
	emailFrom := sharedcfg.EnvOrDefault("EMAIL_FROM", os.Getenv("SMTP_USERNAME"))
	emailEnabled := parseFlag("EMAIL_ENABLED", os.Getenv("SMTP_USERNAME") != "" && len(emailTo) > 0)

	webhookURL := os.Getenv("WEBHOOK_URL")
	webhookEnabled := parseFlag("WEBHOOK_ENABLED", webhookURL != "")

	cfg := &Config{
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,

		ReferenceLink:  sharedcfg.EnvOrDefault("REFERENCE_LINK", "https://www.swpc.noaa.gov/products/goes-proton-flux"),
		ChartPath:      sharedcfg.EnvOrDefault("CHART_PATH", "fluxplot.png"),
		ChartCacheSize: chartCacheSize,

		RecoveryMode:   sharedcfg.EnvOrDefault("RECOVERY_MODE", RecoveryModeRows),
		RecoveryRows:   recoveryRows,
		RecoveryWindow: recoveryWindow,
		RecoveryChart:  sharedcfg.EnvOrDefault("RECOVERY_CHART", RecoveryChartArmed),

		NotifyTimeout:   notifyTimeout,
		NotifyRateLimit: rateLimit,

		SMTPHost:     sharedcfg.EnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     smtpPort,
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    emailFrom,
		EmailTo:      emailTo,
		EmailEnabled: emailEnabled,

		WebhookURL:     webhookURL,
		WebhookEnabled: webhookEnabled,

		KafkaBrokers:      sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:        sharedcfg.EnvOrDefault("KAFKA_TOPIC", "proton-flux-notifications"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: sharedcfg.EnvOrDefault("NATS_SUBJECT_PREFIX", "proton_flux"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KafkaEnabled reports whether notifications are also published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// NATSEnabled reports whether notifications are also published to NATS.
func (c *Config) NATSEnabled() bool { return c.NATSURL != "" }

// Detector builds the event detector described by the RECOVERY_* settings.
func (c *Config) Detector() domain.Detector {
	opts := []domain.DetectorOption{domain.WithRecoveryRows(c.RecoveryRows)}
	if c.RecoveryMode == RecoveryModeElapsed {
		opts = append(opts, domain.WithRecoveryWindow(c.RecoveryWindow))
	}
	if c.RecoveryChart == RecoveryChartCurrent {
		opts = append(opts, domain.WithRecoveryChart(domain.RecoveryChartCurrent))
	}
	return domain.NewDetector(opts...)
}

// QuietWindow is the quiet period a recovery message reports.
func (c *Config) QuietWindow() time.Duration {
	if c.RecoveryMode == RecoveryModeElapsed {
		return c.RecoveryWindow
	}
	return time.Duration(c.RecoveryRows) * domain.SamplingInterval
}

func (c *Config) validate() error {
	switch c.RecoveryMode {
	case RecoveryModeRows, RecoveryModeElapsed:
	default:
		return fmt.Errorf("invalid RECOVERY_MODE %q: want %q or %q", c.RecoveryMode, RecoveryModeRows, RecoveryModeElapsed)
	}
	switch c.RecoveryChart {
	case RecoveryChartArmed, RecoveryChartCurrent:
	default:
		return fmt.Errorf("invalid RECOVERY_CHART %q: want %q or %q", c.RecoveryChart, RecoveryChartArmed, RecoveryChartCurrent)
	}
	if c.EmailEnabled {
		if c.SMTPUsername == "" || c.SMTPPassword == "" {
			return errors.New("EMAIL_ENABLED is true but SMTP_USERNAME or SMTP_PASSWORD is not set")
		}
		if len(c.EmailTo) == 0 {
			return errors.New("EMAIL_ENABLED is true but EMAIL_TO is not set")
		}
	}
	if c.WebhookEnabled && c.WebhookURL == "" {
		return errors.New("WEBHOOK_ENABLED is true but WEBHOOK_URL is not set")
	}
	if c.KafkaEnabled() && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseRate(key string) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return 0, nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || r < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative number", key)
	}
	return r, nil
}

// parseFlag returns def unless key is set, in which case only "true" enables.
func parseFlag(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return def
}
