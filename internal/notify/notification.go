// Package notify turns detector events into outbound notifications and fans
// them out to the configured delivery channels.
package notify

import (
	"context"
	"time"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
)

// DefaultLink is the reference page included with every notification.
const DefaultLink = "https://www.swpc.noaa.gov/products/goes-proton-flux"

// Attachment is an in-memory file sent alongside a notification.
type Attachment struct {
	Filename string
	Data     []byte
}

// Notification is one delivery unit derived from a detector event.
type Notification struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Level      domain.Severity `json:"-"`
	LevelName  string          `json:"level"`
	Band       domain.Band     `json:"-"`
	BandLabel  string          `json:"band"`
	Threshold  int             `json:"threshold_mev"`
	Value      float64         `json:"value"`
	ObservedAt time.Time       `json:"observed_at"`
	CreatedAt  time.Time       `json:"created_at"`
	Link       string          `json:"link"`

	// Window is the quiet period a recovery reports on.
	Window time.Duration `json:"-"`

	Attachment *Attachment `json:"-"`
}

// Recovery reports whether n announces the end of an event.
func (n Notification) Recovery() bool {
	return n.Kind == domain.EventRecovery.String()
}

// New builds a notification for e. A nil attachment sends the message without
// a chart.
func New(e domain.Event, link string, window time.Duration, att *Attachment) Notification {
	if link == "" {
		link = DefaultLink
	}
	return Notification{
		ID:         e.ID,
		Kind:       e.Kind.String(),
		Level:      e.Severity,
		LevelName:  e.Severity.String(),
		Band:       e.Band,
		BandLabel:  e.Band.Label(),
		Threshold:  int(e.Band),
		Value:      e.Value,
		ObservedAt: e.ObservedAt,
		CreatedAt:  domain.Now(),
		Link:       link,
		Window:     window,
		Attachment: att,
	}
}

// Notifier delivers a notification over one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// Nop is a notifier that drops everything. Useful for dry runs and tests.
type Nop struct{}

func (Nop) Name() string                                   { return "nop" }
func (Nop) Notify(_ context.Context, _ Notification) error { return nil }
