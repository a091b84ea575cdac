package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
	"github.com/couchcryptid/proton-flux-alerts/internal/observability"
)

var observed = time.Date(2017, time.September, 10, 16, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func elevation(b domain.Band, v float64) domain.Event {
	return domain.Event{
		ID:         "evt-1",
		Kind:       domain.EventElevation,
		Band:       b,
		Severity:   domain.Classify(v),
		Value:      v,
		ObservedAt: observed,
	}
}

func recovery(b domain.Band, v float64) domain.Event {
	return domain.Event{
		ID:         "evt-2",
		Kind:       domain.EventRecovery,
		Band:       b,
		Severity:   domain.SeverityInfo,
		Value:      v,
		ObservedAt: observed,
	}
}

// --- format tests ---

func TestSubject(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{
			name: "warning",
			n:    New(elevation(domain.Band10, 5), "", 0, nil),
			want: "[WARNING] Proton Event: Currently at 5 MeV (P>10)",
		},
		{
			name: "alert",
			n:    New(elevation(domain.Band30, 10), "", 0, nil),
			want: "[ALERT] Proton Event: Currently at 10 MeV (P>30)",
		},
		{
			name: "critical fractional",
			n:    New(elevation(domain.Band100, 150.5), "", 0, nil),
			want: "[CRITICAL] Proton Event: Currently at 150.5 MeV (P>100)",
		},
		{
			name: "recovery default window",
			n:    New(recovery(domain.Band10, 0.5), "", 0, nil),
			want: "[INFO]: Flux <1 for last 90mins (P>10 - currently at 0.5)",
		},
		{
			name: "recovery custom window",
			n:    New(recovery(domain.Band50, 0.25), "", 2*time.Hour, nil),
			want: "[INFO]: Flux <1 for last 120mins (P>50 - currently at 0.25)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject(tt.n))
		})
	}
}

func TestHTMLBody(t *testing.T) {
	body, err := HTMLBody(New(elevation(domain.Band10, 5), "", 0, nil))
	require.NoError(t, err)
	assert.Contains(t, body, "ongoing Proton Event")
	assert.Contains(t, body, `href="`+DefaultLink+`"`)

	body, err = HTMLBody(New(recovery(domain.Band10, 0.5), "https://example.test/flux?a=1&b=2", 0, nil))
	require.NoError(t, err)
	assert.Contains(t, body, "less than 1 for the last 90 minutes")
	assert.Contains(t, body, "a=1&amp;b=2")
}

func TestCallbackForm(t *testing.T) {
	form := CallbackForm(New(elevation(domain.Band10, 5), "", 0, nil))

	assert.Equal(t, "Space weather WARNING: >10 MeV proton flux currently at 5", form.Get("alert_text"))
	assert.Equal(t, "WARNING", form.Get("level"))
	assert.Equal(t, DefaultLink, form.Get("link"))
}

func TestCallbackForm_UsesBandThreshold(t *testing.T) {
	form := CallbackForm(New(elevation(domain.Band100, 120), "https://example.test", 0, nil))
	assert.Equal(t, "Space weather CRITICAL: >100 MeV proton flux currently at 120", form.Get("alert_text"))
	assert.Equal(t, "https://example.test", form.Get("link"))
}

func TestNew_StampsCreationTime(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.May, 10, 18, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	n := New(elevation(domain.Band10, 5), "", 0, &Attachment{Filename: "fluxplot.png", Data: []byte{1}})
	assert.Equal(t, fake.Now(), n.CreatedAt)
	assert.Equal(t, "elevation", n.Kind)
	assert.Equal(t, 10, n.Threshold)
	assert.False(t, n.Recovery())
	require.NotNil(t, n.Attachment)
}

// --- dispatcher tests ---

type recordingNotifier struct {
	name string
	err  error
	got  []Notification
	ctx  context.Context
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) error {
	r.ctx = ctx
	r.got = append(r.got, n)
	return r.err
}

func TestDispatcher_DeliversToAllChannels(t *testing.T) {
	email := &recordingNotifier{name: "email"}
	hook := &recordingNotifier{name: "webhook"}
	metrics := observability.NewMetricsForTesting()

	d := NewDispatcher(time.Second, discardLogger(), metrics, email, hook)
	n := New(elevation(domain.Band10, 5), "", 0, nil)

	require.NoError(t, d.Dispatch(context.Background(), n))
	assert.Len(t, email.got, 1)
	assert.Len(t, hook.got, 1)
	assert.Equal(t, []string{"email", "webhook"}, d.Channels())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.NotificationsSent.WithLabelValues("email", "WARNING")), 0)

	_, hasDeadline := email.ctx.Deadline()
	assert.True(t, hasDeadline)
}

func TestDispatcher_FailureIsolated(t *testing.T) {
	boom := errors.New("smtp down")
	email := &recordingNotifier{name: "email", err: boom}
	hook := &recordingNotifier{name: "webhook"}
	metrics := observability.NewMetricsForTesting()

	d := NewDispatcher(0, discardLogger(), metrics, email, hook)
	err := d.Dispatch(context.Background(), New(elevation(domain.Band10, 5), "", 0, nil))

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "email: smtp down")
	assert.Len(t, hook.got, 1, "webhook still receives the notification")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.NotificationFailures.WithLabelValues("email")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.NotificationsSent.WithLabelValues("webhook", "WARNING")), 0)

	_, hasDeadline := hook.ctx.Deadline()
	assert.False(t, hasDeadline)
}

func TestDispatcher_NoChannels(t *testing.T) {
	d := NewDispatcher(time.Second, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, d.Dispatch(context.Background(), New(recovery(domain.Band10, 0.5), "", 0, nil)))
	assert.Empty(t, d.Channels())
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.Equal(t, "nop", n.Name())
	assert.NoError(t, n.Notify(context.Background(), Notification{}))
}
