package chart

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecords(n int) []domain.Record {
	start := time.Date(2017, time.September, 10, 16, 0, 0, 0, time.UTC)
	recs := make([]domain.Record, n)
	for i := range recs {
		recs[i] = domain.Record{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Flux:      [domain.NumBands]float64{float64(i) + 0.5, 0.4, 0.3, -1e5},
		}
	}
	return recs
}

func TestRenderer_WritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	r := NewRenderer(path, discardLogger())

	ch, err := r.Render(context.Background(), testRecords(12))
	require.NoError(t, err)

	assert.Equal(t, DefaultFilename, ch.Filename)
	assert.False(t, ch.Empty())
	assert.True(t, bytes.HasPrefix(ch.PNG, pngMagic))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ch.PNG, onDisk)
}

func TestRenderer_OverwritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	r := NewRenderer(path, discardLogger())

	_, err := r.Render(context.Background(), testRecords(2))
	require.NoError(t, err)
	second, err := r.Render(context.Background(), testRecords(40))
	require.NoError(t, err)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, second.PNG, onDisk)
}

func TestRenderer_InMemoryOnly(t *testing.T) {
	r := NewRenderer("", discardLogger())
	ch, err := r.Render(context.Background(), testRecords(3))
	require.NoError(t, err)
	assert.Equal(t, DefaultFilename, ch.Filename)
	assert.True(t, bytes.HasPrefix(ch.PNG, pngMagic))
}

func TestRenderer_TooFewPoints(t *testing.T) {
	r := NewRenderer("", discardLogger())
	_, err := r.Render(context.Background(), testRecords(1))
	require.ErrorIs(t, err, ErrTooFewPoints)
}

func TestTickStep(t *testing.T) {
	tests := []struct {
		span time.Duration
		want time.Duration
	}{
		{10 * time.Minute, 5 * time.Minute},
		{30 * time.Minute, 5 * time.Minute},
		{45 * time.Minute, 20 * time.Minute},
		{3 * time.Hour, time.Hour},
		{8 * time.Hour, 3 * time.Hour},
		{20 * time.Hour, 6 * time.Hour},
		{72 * time.Hour, 12 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.span.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tickStep(tt.span))
		})
	}
}

func TestTimeTicks_CoverSpan(t *testing.T) {
	from := time.Date(2017, time.September, 10, 16, 0, 0, 0, time.UTC)
	ticks := timeTicks(from, from.Add(2*time.Hour))
	require.Len(t, ticks, 3)
	assert.Equal(t, "16:00\nSep 10", ticks[0].Label)
	assert.Equal(t, "18:00\nSep 10", ticks[2].Label)
}

func TestRenderer_DrawLeavesFileAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	r := NewRenderer(path, discardLogger())

	ch, err := r.Draw(context.Background(), testRecords(4))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(ch.PNG, pngMagic))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "draw should not write the chart file")

	require.NoError(t, r.Publish(ch))
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ch.PNG, onDisk)
}

func TestBuild_LogarithmicYAxis(t *testing.T) {
	r := NewRenderer("", discardLogger())
	graph := r.build(testRecords(6))

	yr, ok := graph.YAxis.Range.(*logRange)
	require.True(t, ok, "y range is %T", graph.YAxis.Range)
	assert.InDelta(t, 0.005, yr.GetMin(), 1e-12)
	assert.InDelta(t, 100, yr.GetMax(), 1e-9)

	labels := make([]string, 0, len(graph.YAxis.Ticks))
	for _, tk := range graph.YAxis.Ticks {
		labels = append(labels, tk.Label)
	}
	assert.Equal(t, []string{"", "1e-2", "1e-1", "1e0", "1e1", "1e2"}, labels)
}

func TestBuild_YAxisGrowsForCriticalFlux(t *testing.T) {
	recs := testRecords(3)
	recs[2].Flux[0] = 4200
	graph := NewRenderer("", discardLogger()).build(recs)

	assert.InDelta(t, 10000, graph.YAxis.Range.GetMax(), 1e-6)
	ticks := graph.YAxis.Ticks
	assert.Equal(t, "1e4", ticks[len(ticks)-1].Label)
}

func TestLogRange_Translate(t *testing.T) {
	r := &logRange{}
	r.SetMin(0.005)
	r.SetMax(100)
	r.SetDomain(1000)

	assert.Equal(t, 0, r.Translate(0.005))
	assert.Equal(t, 0, r.Translate(0), "values below the floor clamp to the baseline")
	assert.Equal(t, 1000, r.Translate(100))
	assert.Equal(t, 1000, r.Translate(5000), "values above the top clamp")

	// A WARNING-level reading sits well up the axis, not on the floor.
	assert.Greater(t, r.Translate(5), 650)
	assert.Greater(t, r.Translate(0.5), r.Translate(0.05))
}

func TestDecadeAbove(t *testing.T) {
	assert.InDelta(t, 100, decadeAbove(100), 1e-9)
	assert.InDelta(t, 1000, decadeAbove(101), 1e-9)
	assert.InDelta(t, 1, decadeAbove(0.5), 1e-9)
}
