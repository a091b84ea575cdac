package domain

import (
	"fmt"
	"time"
)

// Band identifies one of the four tracked integral proton flux channels.
// The value is the channel's energy threshold in MeV.
type Band int

const (
	Band10  Band = 10
	Band30  Band = 30
	Band50  Band = 50
	Band100 Band = 100
)

// NumBands is the number of tracked bands.
const NumBands = 4

// Bands lists the tracked bands in scan order.
var Bands = [NumBands]Band{Band10, Band30, Band50, Band100}

// Index returns the band's position in Bands and Record.Flux, or -1 for an
// untracked value.
func (b Band) Index() int {
	switch b {
	case Band10:
		return 0
	case Band30:
		return 1
	case Band50:
		return 2
	case Band100:
		return 3
	default:
		return -1
	}
}

// Label returns the column label used by SWPC files, e.g. "P>10".
func (b Band) Label() string {
	return fmt.Sprintf("P>%d", int(b))
}

func (b Band) String() string { return b.Label() }

// Record is one time-stamped observation from the feed.
type Record struct {
	Timestamp time.Time
	P1        float64
	P5        float64

	// Flux holds the tracked channels, indexed by Band.Index.
	Flux [NumBands]float64
}

// FluxFor returns the reading for band b.
func (r Record) FluxFor(b Band) float64 {
	i := b.Index()
	if i < 0 {
		return 0
	}
	return r.Flux[i]
}
