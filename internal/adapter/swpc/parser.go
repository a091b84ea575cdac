// Package swpc reads and writes NOAA SWPC GOES proton flux list files.
package swpc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
)

const (
	// HeaderLine is the 0-indexed line holding the column names.
	HeaderLine = 24
	// DataLine is the 0-indexed line where observations start.
	DataLine = 26
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// required columns, located by header name.
const (
	colYear  = "YR"
	colMonth = "MO"
	colDay   = "DA"
	colTime  = "HHMM"
	colP1    = "P>1"
	colP5    = "P>5"
)

// normaliseHeader collapses the inconsistent spacing SWPC uses around ">"
// ("P > 1", "P >10", "P> 20") and strips the comment marker. The replacements
// must run in sequence: "P > 1" needs both of the last two.
func normaliseHeader(line string) string {
	line = strings.ReplaceAll(line, "# ", "")
	line = strings.ReplaceAll(line, " >", ">")
	return strings.ReplaceAll(line, "> ", ">")
}

// ParseFile opens path and parses it with Parse.
func ParseFile(path string) ([]domain.Record, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a proton flux list and returns its rows in file order.
// The electron channels and the two modified Julian day columns are dropped.
// Any malformed row aborts the parse.
func Parse(r io.Reader) ([]domain.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cols    columns
		records []domain.Record
		line    int
	)

	for ; sc.Scan(); line++ {
		text := sc.Text()
		switch {
		case line < HeaderLine:
			continue
		case line == HeaderLine:
			c, err := parseHeader(text)
			if err != nil {
				return nil, fmt.Errorf("parse header (line %d): %w", line, err)
			}
			cols = c
		case line < DataLine:
			continue
		default:
			fields := strings.Fields(text)
			if len(fields) == 0 {
				continue
			}
			rec, err := cols.parseRow(fields)
			if err != nil {
				return nil, fmt.Errorf("parse row (line %d): %w", line, err)
			}
			if n := len(records); n > 0 && rec.Timestamp.Before(records[n-1].Timestamp) {
				return nil, fmt.Errorf("parse row (line %d): timestamp %s precedes %s",
					line, rec.Timestamp.Format(time.RFC3339), records[n-1].Timestamp.Format(time.RFC3339))
			}
			records = append(records, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	if line <= HeaderLine {
		return nil, fmt.Errorf("parse header: file has %d lines, header expected on line %d", line, HeaderLine)
	}

	return records, nil
}

// columns maps required fields to their positions in a row.
type columns struct {
	width                  int
	year, month, day, hhmm int
	p1, p5                 int
	flux                   [domain.NumBands]int
}

func parseHeader(line string) (columns, error) {
	names := strings.Fields(normaliseHeader(line))
	index := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := index[n]; !dup {
			index[n] = i
		}
	}

	lookup := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
		return i, nil
	}

	c := columns{width: len(names)}
	var err error
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{colYear, &c.year},
		{colMonth, &c.month},
		{colDay, &c.day},
		{colTime, &c.hhmm},
		{colP1, &c.p1},
		{colP5, &c.p5},
	} {
		if *f.dst, err = lookup(f.name); err != nil {
			return columns{}, err
		}
	}
	for _, b := range domain.Bands {
		if c.flux[b.Index()], err = lookup(b.Label()); err != nil {
			return columns{}, err
		}
	}
	return c, nil
}

func (c columns) parseRow(fields []string) (domain.Record, error) {
	if len(fields) != c.width {
		return domain.Record{}, fmt.Errorf("expected %d columns, got %d", c.width, len(fields))
	}

	ts, err := parseTimestamp(fields[c.year], fields[c.month], fields[c.day], fields[c.hhmm])
	if err != nil {
		return domain.Record{}, err
	}

	rec := domain.Record{Timestamp: ts}
	if rec.P1, err = parseFlux(colP1, fields[c.p1]); err != nil {
		return domain.Record{}, err
	}
	if rec.P5, err = parseFlux(colP5, fields[c.p5]); err != nil {
		return domain.Record{}, err
	}
	for _, b := range domain.Bands {
		i := b.Index()
		if rec.Flux[i], err = parseFlux(b.Label(), fields[c.flux[i]]); err != nil {
			return domain.Record{}, err
		}
	}
	return rec, nil
}

func parseFlux(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

// parseTimestamp combines YR MO DA HHMM into a UTC instant. HHMM may be
// written without its leading zero ("930" is 09:30).
func parseTimestamp(yr, mo, da, hhmm string) (time.Time, error) {
	year, err := strconv.Atoi(yr)
	if err != nil {
		return time.Time{}, fmt.Errorf("column YR: %w", err)
	}
	month, err := strconv.Atoi(mo)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("column MO: invalid month %q", mo)
	}
	day, err := strconv.Atoi(da)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("column DA: invalid day %q", da)
	}

	if len(hhmm) == 3 {
		hhmm = "0" + hhmm
	}
	if len(hhmm) != 4 {
		return time.Time{}, fmt.Errorf("column HHMM: invalid time %q", hhmm)
	}
	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour > 23 || mins > 59 || hour < 0 || mins < 0 {
		return time.Time{}, fmt.Errorf("column HHMM: invalid time %q", hhmm)
	}

	return time.Date(year, time.Month(month), day, hour, mins, 0, 0, time.UTC), nil
}
