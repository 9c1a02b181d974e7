package rppg

// PeakEstimate is the dominant pulse frequency found in one channel and its
// spread. FrequencyHz == 0 means no reliable peak was found.
type PeakEstimate struct {
	FrequencyHz float64 `json:"frequency_hz"`
	StdDevHz    float64 `json:"std_dev_hz"`
}

// NoPeak is the "no reliable peak" sentinel.
var NoPeak = PeakEstimate{}

// Found reports whether the estimate carries a usable frequency.
func (p PeakEstimate) Found() bool { return p.FrequencyHz > 0 }

// ChannelPeaks keys peak estimates by channel.
type ChannelPeaks map[Channel]PeakEstimate

// Clone returns a copy.
func (cp ChannelPeaks) Clone() ChannelPeaks {
	if cp == nil {
		return nil
	}
	out := make(ChannelPeaks, len(cp))
	for c, p := range cp {
		out[c] = p
	}
	return out
}

// PeakPoint is one local maximum of a filtered waveform.
type PeakPoint struct {
	Time  float64 `json:"t"`
	Value float64 `json:"value"`
}

// RateEstimate is the aggregated heart rate of one path.
type RateEstimate struct {
	FrequencyHz float64 `json:"frequency_hz"`
	StdDevHz    float64 `json:"std_dev_hz"`
	Channel     Channel `json:"channel"`
	// Fallback is set when the primary channel had no peak and another
	// channel supplied the estimate.
	Fallback bool `json:"fallback"`
	Valid    bool `json:"valid"`
}

// HeartRateResult holds the direct and ICA heart rates in Hz. Either may be
// invalid until enough samples have accumulated.
type HeartRateResult struct {
	Direct RateEstimate `json:"direct"`
	ICA    RateEstimate `json:"ica"`
}

// Path returns the estimate for p.
func (h HeartRateResult) Path(p Path) RateEstimate {
	if p == PathICA {
		return h.ICA
	}
	return h.Direct
}
