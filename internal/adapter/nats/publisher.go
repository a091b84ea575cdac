// Package nats publishes notifications on NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/couchcryptid/proton-flux-alerts/internal/notify"
)

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// Publisher sends each notification to <prefix>.<level>.<band>, e.g.
// proton_flux.warning.p10. It implements notify.Notifier.
type Publisher struct {
	nc     conn
	prefix string
}

// Connect dials the server with the service's connection name.
func Connect(url string, timeout time.Duration, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("fluxalert"),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

func NewPublisher(nc conn, prefix string) *Publisher {
	return &Publisher{
		nc:     nc,
		prefix: strings.TrimSuffix(prefix, "."),
	}
}

func (p *Publisher) Name() string { return "nats" }

// Notify publishes n and waits for the server to acknowledge the flush.
func (p *Publisher) Notify(ctx context.Context, n notify.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("serialize notification: %w", err)
	}

	header := nats.Header{}
	header.Set("Nats-Msg-Id", n.ID)
	header.Set("Kind", n.Kind)

	msg := &nats.Msg{
		Subject: p.Subject(n),
		Data:    payload,
		Header:  header,
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Subject returns the subject n is published on.
func (p *Publisher) Subject(n notify.Notification) string {
	s := fmt.Sprintf("%s.p%d", strings.ToLower(n.LevelName), n.Threshold)
	if p.prefix == "" {
		return s
	}
	return p.prefix + "." + s
}

var _ notify.Notifier = (*Publisher)(nil)
