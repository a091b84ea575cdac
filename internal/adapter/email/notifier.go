// Package email delivers notifications over SMTP with the trend chart attached.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/proton-flux-alerts/internal/config"
	"github.com/couchcryptid/proton-flux-alerts/internal/notify"
)

// sender is the part of *mail.Client the notifier needs.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier sends one HTML email per notification. It implements notify.Notifier.
type Notifier struct {
	client  sender
	from    string
	to      []string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewNotifier creates an SMTP client that requires STARTTLS and PLAIN auth.
func NewNotifier(cfg *config.Config, logger *slog.Logger) (*Notifier, error) {
	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUsername),
		mail.WithPassword(cfg.SMTPPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(cfg.NotifyTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &Notifier{
		client:  client,
		from:    cfg.EmailFrom,
		to:      cfg.EmailTo,
		limiter: notify.NewLimiter(cfg.NotifyRateLimit),
		logger:  logger,
	}, nil
}

func (n *Notifier) Name() string { return "email" }

// Notify composes and sends the message. The SMTP session is opened per call.
func (n *Notifier) Notify(ctx context.Context, note notify.Notification) error {
	msg, err := n.compose(note)
	if err != nil {
		return err
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	n.logger.Debug("email sent", "to", n.to, "subject", notify.Subject(note))
	return nil
}

func (n *Notifier) compose(note notify.Notification) (*mail.Msg, error) {
	if len(n.to) == 0 {
		return nil, errors.New("no email recipients configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(n.to...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	msg.Subject(notify.Subject(note))
	msg.SetDate()

	body, err := notify.HTMLBody(note)
	if err != nil {
		return nil, err
	}
	msg.SetBodyString(mail.TypeTextHTML, body)

	if att := note.Attachment; att != nil && len(att.Data) > 0 {
		if err := msg.AttachReader(att.Filename, bytes.NewReader(att.Data)); err != nil {
			return nil, fmt.Errorf("attach %s: %w", att.Filename, err)
		}
	}
	return msg, nil
}

var _ notify.Notifier = (*Notifier)(nil)
