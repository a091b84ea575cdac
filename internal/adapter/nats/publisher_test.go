package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
	"github.com/couchcryptid/proton-flux-alerts/internal/notify"
)

type fakeConn struct {
	publishErr error
	flushErr   error
	msgs       []*nats.Msg
	flushed    int
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeConn) FlushWithContext(_ context.Context) error {
	f.flushed++
	return f.flushErr
}

func alert(b domain.Band) notify.Notification {
	return notify.New(domain.Event{
		ID:         "evt-7",
		Kind:       domain.EventElevation,
		Band:       b,
		Severity:   domain.SeverityAlert,
		Value:      42,
		ObservedAt: time.Date(2017, time.September, 10, 16, 0, 0, 0, time.UTC),
	}, "", 0, nil)
}

func TestPublisher_Subject(t *testing.T) {
	tests := []struct {
		prefix string
		band   domain.Band
		want   string
	}{
		{"proton_flux", domain.Band10, "proton_flux.alert.p10"},
		{"proton_flux.", domain.Band100, "proton_flux.alert.p100"},
		{"", domain.Band50, "alert.p50"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			p := NewPublisher(&fakeConn{}, tt.prefix)
			assert.Equal(t, tt.want, p.Subject(alert(tt.band)))
		})
	}
}

func TestPublisher_Notify(t *testing.T) {
	fc := &fakeConn{}
	p := NewPublisher(fc, "proton_flux")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.Notify(ctx, alert(domain.Band10)))
	require.Len(t, fc.msgs, 1)
	assert.Equal(t, 1, fc.flushed)

	msg := fc.msgs[0]
	assert.Equal(t, "proton_flux.alert.p10", msg.Subject)
	assert.Equal(t, "evt-7", msg.Header.Get("Nats-Msg-Id"))
	assert.Equal(t, "elevation", msg.Header.Get("Kind"))
	assert.Len(t, msg.Header, 2, "only de-duplication id and kind are set")

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "ALERT", body["level"])
	assert.InDelta(t, 42, body["value"], 0)
}

func TestPublisher_Errors(t *testing.T) {
	p := NewPublisher(&fakeConn{publishErr: nats.ErrConnectionClosed}, "proton_flux")
	err := p.Notify(context.Background(), alert(domain.Band10))
	require.ErrorIs(t, err, nats.ErrConnectionClosed)

	p = NewPublisher(&fakeConn{flushErr: errors.New("timeout")}, "proton_flux")
	err = p.Notify(context.Background(), alert(domain.Band10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush")
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", 100*time.Millisecond, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect nats")
}
