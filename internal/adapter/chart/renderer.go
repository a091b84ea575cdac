// Package chart renders proton flux trend charts as PNG images.
package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
)

// DefaultFilename is the reusable output file, overwritten on every render.
const DefaultFilename = "fluxplot.png"

const (
	title      = "GOES Proton Flux (5 minute data)"
	xAxisLabel = "Universal Time (UTC)"
	yAxisLabel = "Particles cm^-2 s^-1 sr^-1"
	tickFormat = "15:04\nJan 02"

	// The y axis is logarithmic from yMin to at least yCeil, so quiet
	// periods still show the CRITICAL line.
	yMin  = 0.005
	yCeil = 100.0
)

// ErrTooFewPoints is returned for prefixes that cannot form a line.
var ErrTooFewPoints = errors.New("chart needs at least two records")

var bandColors = map[domain.Band]drawing.Color{
	domain.Band100: drawing.ColorGreen,
	domain.Band50:  drawing.ColorBlue,
	domain.Band30:  {R: 255, G: 165, B: 0, A: 255},
	domain.Band10:  drawing.ColorRed,
}

// plotOrder draws the highest energy first so P>10 ends up on top.
var plotOrder = []domain.Band{domain.Band100, domain.Band50, domain.Band30, domain.Band10}

// Chart is a rendered image.
type Chart struct {
	Filename string
	PNG      []byte
}

// Empty reports whether no image is attached.
func (c Chart) Empty() bool { return len(c.PNG) == 0 }

// Renderer draws record prefixes and mirrors the latest image to a file.
type Renderer struct {
	path   string
	width  int
	height int
	logger *slog.Logger
}

// NewRenderer creates a Renderer writing to path. An empty path keeps images in memory only.
func NewRenderer(path string, logger *slog.Logger) *Renderer {
	return &Renderer{
		path:   path,
		width:  1024,
		height: 640,
		logger: logger,
	}
}

// Render draws records and mirrors the image to the configured path.
func (r *Renderer) Render(ctx context.Context, records []domain.Record) (Chart, error) {
	ch, err := r.Draw(ctx, records)
	if err != nil {
		return Chart{}, err
	}
	if err := r.Publish(ch); err != nil {
		return Chart{}, err
	}
	return ch, nil
}

// Draw plots the four tracked bands over records and returns the PNG without
// touching the file system.
func (r *Renderer) Draw(_ context.Context, records []domain.Record) (Chart, error) {
	if len(records) < 2 {
		return Chart{}, ErrTooFewPoints
	}

	graph := r.build(records)

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return Chart{}, fmt.Errorf("render chart: %w", err)
	}

	name := DefaultFilename
	if r.path != "" {
		name = filepath.Base(r.path)
	}

	r.logger.Debug("chart rendered",
		"points", len(records),
		"until", records[len(records)-1].Timestamp,
		"bytes", buf.Len(),
	)
	return Chart{Filename: name, PNG: buf.Bytes()}, nil
}

// Publish overwrites the chart file with ch. It is a no-op without a path.
func (r *Renderer) Publish(ch Chart) error {
	if r.path == "" {
		return nil
	}
	if err := os.WriteFile(r.path, ch.PNG, 0o644); err != nil { //nolint:gosec // chart is not sensitive
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

func (r *Renderer) build(records []domain.Record) gochart.Chart {
	xs := make([]time.Time, len(records))
	for i, rec := range records {
		xs[i] = rec.Timestamp
	}

	maxY := yCeil
	series := make([]gochart.Series, 0, len(plotOrder))
	for _, b := range plotOrder {
		ys := make([]float64, len(records))
		for i, rec := range records {
			// Zero and missing samples (-1e5) sit on the baseline.
			ys[i] = math.Max(rec.FluxFor(b), yMin)
			maxY = math.Max(maxY, ys[i])
		}
		series = append(series, gochart.TimeSeries{
			Name: b.Label(),
			Style: gochart.Style{
				StrokeColor: bandColors[b],
				StrokeWidth: 2,
			},
			XValues: xs,
			YValues: ys,
		})
	}

	graph := gochart.Chart{
		Title:  title,
		Width:  r.width,
		Height: r.height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{
			Name:           xAxisLabel,
			ValueFormatter: gochart.TimeValueFormatterWithFormat(tickFormat),
			Ticks:          timeTicks(xs[0], xs[len(xs)-1]),
		},
		YAxis: gochart.YAxis{
			Name:  yAxisLabel,
			Range: &logRange{gochart.LogarithmicRange{Min: yMin, Max: decadeAbove(maxY)}},
			Ticks: decadeTicks(decadeAbove(maxY)),
		},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}
	return graph
}

// tickStep picks the major tick spacing for a plotted span.
func tickStep(span time.Duration) time.Duration {
	switch {
	case span <= 30*time.Minute:
		return 5 * time.Minute
	case span <= time.Hour:
		return 20 * time.Minute
	case span <= 5*time.Hour:
		return time.Hour
	case span <= 10*time.Hour:
		return 3 * time.Hour
	case span <= 24*time.Hour:
		return 6 * time.Hour
	default:
		return 12 * time.Hour
	}
}

func timeTicks(from, to time.Time) []gochart.Tick {
	step := tickStep(to.Sub(from))
	var ticks []gochart.Tick
	for t := from; !t.After(to); t = t.Add(step) {
		ticks = append(ticks, gochart.Tick{
			Value: gochart.TimeToFloat64(t),
			Label: t.UTC().Format(tickFormat),
		})
	}
	return ticks
}

// logRange is a base-10 logarithmic range. go-chart's LogarithmicRange puts
// every value below 1 on the baseline, which hides sub-threshold flux.
type logRange struct {
	gochart.LogarithmicRange
}

// Translate maps value onto the axis domain, clamping to [Min, Max].
func (r logRange) Translate(value float64) int {
	if r.Min <= 0 || r.Max <= r.Min {
		return 0
	}
	lo, hi := math.Log10(r.Min), math.Log10(r.Max)
	v := math.Min(math.Max(value, r.Min), r.Max)
	return int(math.Round((math.Log10(v) - lo) / (hi - lo) * float64(r.Domain)))
}

// decadeAbove returns the smallest power of ten not below v.
func decadeAbove(v float64) float64 {
	return math.Pow(10, math.Ceil(math.Log10(v)))
}

// decadeTicks labels every power of ten from 1e-2 to top. An unlabelled tick
// at yMin pins the bottom of the axis.
func decadeTicks(top float64) []gochart.Tick {
	ticks := []gochart.Tick{{Value: yMin}}
	for exp := -2; exp <= int(math.Round(math.Log10(top))); exp++ {
		ticks = append(ticks, gochart.Tick{
			Value: math.Pow(10, float64(exp)),
			Label: fmt.Sprintf("1e%d", exp),
		})
	}
	return ticks
}
