package swpc

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
)

// MissingValue is the SWPC sentinel for an absent sample.
const MissingValue = -1.00e+05

// mjdEpoch is day zero of the Modified Julian Date.
var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

var preamble = []string{
	":Data_list: Gp_part_5m.txt",
	":Created: %s",
	"# Prepared by the U.S. Dept. of Commerce, NOAA, Space Weather Prediction Center",
	"# Please send comments and suggestions to SWPC.Webmaster@noaa.gov",
	"#",
	"# Label: P > 1 = Particles at >1 Mev",
	"# Label: P > 5 = Particles at >5 Mev",
	"# Label: P >10 = Particles at >10 Mev",
	"# Label: P >30 = Particles at >30 Mev",
	"# Label: P >50 = Particles at >50 Mev",
	"# Label: P>100 = Particles at >100 Mev",
	"# Label: E>0.8 = Electrons at >0.8 Mev",
	"# Label: E>2.0 = Electrons at >2.0 Mev",
	"# Label: E>4.0 = Electrons at >4.0 Mev",
	"# Units: Particles = Protons/cm2-s-sr",
	"# Units: Electrons = Electrons/cm2-s-sr",
	"# Source: %s",
	"# Missing data: -1.00e+05",
	"#",
	"#                      5-minute  GOES Solar Particle and Electron Flux",
	"#",
	"#                 Modified Seconds",
	"# UTC Date  Time   Julian  of the",
	"# ----------------  ------- -------",
}

const (
	headerRow    = "# YR MO DA  HHMM    Day     Day     P > 1     P > 5     P >10     P >30     P >50     P>100     E>0.8     E>2.0     E>4.0"
	separatorRow = "#-------------------------------------------------------------------------------------------------------------------------------"
)

// Write renders records in the SWPC list layout understood by Parse.
// Electron channels are written as MissingValue.
func Write(w io.Writer, source string, records []domain.Record) error {
	bw := bufio.NewWriter(w)

	created := time.Now().UTC()
	if len(records) > 0 {
		created = records[len(records)-1].Timestamp
	}

	for i, line := range preamble {
		switch i {
		case 1:
			line = fmt.Sprintf(line, created.Format("2006 Jan 02 1504 UTC"))
		case 16:
			line = fmt.Sprintf(line, source)
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return fmt.Errorf("write preamble: %w", err)
		}
	}
	if _, err := fmt.Fprintln(bw, headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := fmt.Fprintln(bw, separatorRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range records {
		ts := r.Timestamp.UTC()
		mjd := int(ts.Sub(mjdEpoch).Hours() / 24)
		secs := ts.Hour()*3600 + ts.Minute()*60
		_, err := fmt.Fprintf(bw, "%04d %02d %02d  %02d%02d   %5d  %5d   %9.2e %9.2e %9.2e %9.2e %9.2e %9.2e %9.2e %9.2e %9.2e\n",
			ts.Year(), int(ts.Month()), ts.Day(), ts.Hour(), ts.Minute(), mjd, secs,
			r.P1, r.P5,
			r.FluxFor(domain.Band10), r.FluxFor(domain.Band30), r.FluxFor(domain.Band50), r.FluxFor(domain.Band100),
			MissingValue, MissingValue, MissingValue,
		)
		if err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	return bw.Flush()
}
