package l1samples

import (
	"errors"
	"fmt"

	"github.com/banshee-data/pulse.report/internal/rppg"
)

// ErrUnordered is returned for a window whose timestamps do not strictly
// increase. The Buffer never produces one.
var ErrUnordered = errors.New("window timestamps not strictly increasing")

// DefaultMaxGapFactor is the multiple of the nominal frame interval above
// which consecutive samples count as a gap.
const DefaultMaxGapFactor = 1.5

// WindowStats summarises a validated window.
type WindowStats struct {
	Samples     int     `json:"samples"`
	Duration    float64 `json:"duration_s"`
	Gaps        int     `json:"gaps"`
	MaxInterval float64 `json:"max_interval_s"`
}

// Validate checks that w has at least two strictly time-ordered samples and
// counts intervals longer than maxGapFactor nominal frame intervals. Gaps are
// reported, not rejected: the camera may drop frames under load and the
// spectral stage resamples onto a uniform grid.
func Validate(w rppg.Window, frameRate, maxGapFactor float64) (WindowStats, error) {
	stats := WindowStats{Samples: len(w), Duration: w.Duration()}
	if len(w) < 2 {
		return stats, fmt.Errorf("window has %d samples, need at least 2: %w", len(w), rppg.ErrInsufficientData)
	}
	if maxGapFactor <= 0 {
		maxGapFactor = DefaultMaxGapFactor
	}

	limit := 0.0
	if frameRate > 0 {
		limit = maxGapFactor / frameRate
	}
	for i := 1; i < len(w); i++ {
		dt := w[i].Time - w[i-1].Time
		if dt <= 0 {
			return stats, fmt.Errorf("sample %d at %.4fs follows %.4fs: %w", i, w[i].Time, w[i-1].Time, ErrUnordered)
		}
		if dt > stats.MaxInterval {
			stats.MaxInterval = dt
		}
		if limit > 0 && dt > limit {
			stats.Gaps++
		}
	}
	return stats, nil
}
