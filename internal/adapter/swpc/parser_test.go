package swpc

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
)

const (
	testHeader = "# YR MO DA  HHMM    Day     Day     P > 1     P > 5     P >10     P >30     P >50     P>100     E>0.8     E>2.0     E>4.0"
	testRowA   = "2017 09 10  1600   58006  57600   2.45e+01  1.02e+01  5.00e+00  9.10e-01  4.40e-01  1.20e-01  -1.00e+05  -1.00e+05  -1.00e+05"
	testRowB   = "2017 09 10  1605   58006  57900   3.01e+02  2.50e+02  1.50e+02  4.40e+01  2.20e+01  1.00e+01  -1.00e+05  -1.00e+05  -1.00e+05"
)

// feed builds a file whose header sits on HeaderLine followed by rows.
func feed(header string, rows ...string) string {
	var b strings.Builder
	for i := 0; i < HeaderLine; i++ {
		b.WriteString("# preamble\n")
	}
	b.WriteString(header + "\n")
	b.WriteString("#----------------------------------------------\n")
	for _, r := range rows {
		b.WriteString(r + "\n")
	}
	return b.String()
}

func TestParse_ValidRows(t *testing.T) {
	records, err := Parse(strings.NewReader(feed(testHeader, testRowA, testRowB)))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, time.Date(2017, time.September, 10, 16, 0, 0, 0, time.UTC), first.Timestamp)
	assert.InEpsilon(t, 24.5, first.P1, 1e-9)
	assert.InEpsilon(t, 10.2, first.P5, 1e-9)
	assert.InEpsilon(t, 5.0, first.FluxFor(domain.Band10), 1e-9)
	assert.InEpsilon(t, 0.91, first.FluxFor(domain.Band30), 1e-9)
	assert.InEpsilon(t, 0.44, first.FluxFor(domain.Band50), 1e-9)
	assert.InEpsilon(t, 0.12, first.FluxFor(domain.Band100), 1e-9)

	second := records[1]
	assert.Equal(t, time.Date(2017, time.September, 10, 16, 5, 0, 0, time.UTC), second.Timestamp)
	assert.InEpsilon(t, 150.0, second.FluxFor(domain.Band10), 1e-9)
	assert.InEpsilon(t, 10.0, second.FluxFor(domain.Band100), 1e-9)
}

func TestParse_SkipsBlankDataLines(t *testing.T) {
	records, err := Parse(strings.NewReader(feed(testHeader, testRowA, "", "   ", testRowB)))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestParse_ThreeDigitTime(t *testing.T) {
	row := strings.Replace(testRowA, "1600", "930", 1)
	records, err := Parse(strings.NewReader(feed(testHeader, row)))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 9, records[0].Timestamp.Hour())
	assert.Equal(t, 30, records[0].Timestamp.Minute())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{
			name:   "file shorter than header offset",
			input:  "# only a comment\n",
			errMsg: "header expected on line 24",
		},
		{
			name:   "header missing band column",
			input:  feed(strings.Replace(testHeader, "P >30", "Q >30", 1), testRowA),
			errMsg: `missing column "P>30"`,
		},
		{
			name:   "non-numeric flux",
			input:  feed(testHeader, strings.Replace(testRowA, "5.00e+00", "bogus", 1)),
			errMsg: "column P>10",
		},
		{
			name:   "short row",
			input:  feed(testHeader, "2017 09 10  1600   58006  57600   2.45e+01"),
			errMsg: "expected 15 columns, got 7",
		},
		{
			name:   "invalid time",
			input:  feed(testHeader, strings.Replace(testRowA, "1600", "2599", 1)),
			errMsg: "column HHMM",
		},
		{
			name:   "timestamps go backwards",
			input:  feed(testHeader, testRowB, testRowA),
			errMsg: "precedes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParse_MissingColumnIsSentinel(t *testing.T) {
	_, err := Parse(strings.NewReader(feed("# YR MO DA HHMM", testRowA)))
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseFile_NotFound(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open feed")
}

func TestWriteThenParse(t *testing.T) {
	start := time.Date(2017, time.September, 10, 23, 50, 0, 0, time.UTC)
	in := []domain.Record{
		{Timestamp: start, P1: 12, P5: 6, Flux: [domain.NumBands]float64{5, 0.5, 0.25, 0.125}},
		{Timestamp: start.Add(5 * time.Minute), P1: 400, P5: 300, Flux: [domain.NumBands]float64{150, 45, 20, 10}},
		{Timestamp: start.Add(10 * time.Minute), P1: 1, P5: 1, Flux: [domain.NumBands]float64{1, 1, 1, 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "GOES-13", in))

	lines := strings.Split(buf.String(), "\n")
	require.Greater(t, len(lines), DataLine)
	assert.True(t, strings.HasPrefix(lines[HeaderLine], "# YR MO DA"))

	path := filepath.Join(t.TempDir(), "Gp_part_5m.txt")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	out, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
