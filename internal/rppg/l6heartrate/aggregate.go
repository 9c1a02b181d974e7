package l6heartrate

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg"
)

// DefaultPrimary is the channel preferred for the direct path. Blood volume
// changes modulate green light absorption most strongly.
const DefaultPrimary = rppg.Green

// Select returns the estimate of primary when it found a peak. Otherwise it
// falls back to the channel with the smallest spread among those that did,
// ties going to the earlier channel in rppg.Channels. With no peak anywhere
// the result is invalid.
func Select(peaks rppg.ChannelPeaks, primary rppg.Channel) rppg.RateEstimate {
	if p, ok := peaks[primary]; ok && p.Found() {
		return rppg.RateEstimate{FrequencyHz: p.FrequencyHz, StdDevHz: p.StdDevHz, Channel: primary, Valid: true}
	}

	best := rppg.RateEstimate{Channel: primary}
	bestSD := math.Inf(1)
	for _, c := range rppg.Channels {
		p, ok := peaks[c]
		if !ok || !p.Found() || c == primary {
			continue
		}
		if p.StdDevHz < bestSD {
			bestSD = p.StdDevHz
			best = rppg.RateEstimate{FrequencyHz: p.FrequencyHz, StdDevHz: p.StdDevHz, Channel: c, Fallback: true, Valid: true}
		}
	}
	return best
}

// Aggregate selects both paths. directPrimary is normally DefaultPrimary;
// icaPrimary is the role of the most pulse-like independent component.
func Aggregate(direct, ica rppg.ChannelPeaks, directPrimary, icaPrimary rppg.Channel) rppg.HeartRateResult {
	return rppg.HeartRateResult{
		Direct: Select(direct, directPrimary),
		ICA:    Select(ica, icaPrimary),
	}
}
