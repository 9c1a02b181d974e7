package l3filter

import (
	"fmt"
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg"
)

// Default heart-rate band: 42 to 240 BPM.
const (
	DefaultLowHz  = 0.7
	DefaultHighHz = 4.0
)

// biquad is one second-order section, coefficients normalised by a0.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

func butterworth(fs, f0 float64, highPass bool) biquad {
	w0 := 2 * math.Pi * f0 / fs
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * (1 / math.Sqrt2))
	a0 := 1 + alpha

	var q biquad
	if highPass {
		q.b0 = (1 + cosw) / 2
		q.b1 = -(1 + cosw)
		q.b2 = (1 + cosw) / 2
	} else {
		q.b0 = (1 - cosw) / 2
		q.b1 = 1 - cosw
		q.b2 = (1 - cosw) / 2
	}
	q.a1 = -2 * cosw
	q.a2 = 1 - alpha

	q.b0 /= a0
	q.b1 /= a0
	q.b2 /= a0
	q.a1 /= a0
	q.a2 /= a0
	return q
}

// run filters x in place (transposed direct form II, zero initial state).
func (q biquad) run(x []float64) {
	var z1, z2 float64
	for i, v := range x {
		y := q.b0*v + z1
		z1 = q.b1*v - q.a1*y + z2
		z2 = q.b2*v - q.a2*y
		x[i] = y
	}
}

// BandPass is a zero-phase Butterworth band-pass: a high-pass section at
// LowHz cascaded with a low-pass section at HighHz, applied forward and
// backward. The combined response has no group delay, so peaks stay where
// they were in time.
type BandPass struct {
	SampleRate float64
	LowHz      float64
	HighHz     float64

	sections []biquad
}

// NewBandPass validates 0 < low < high < fs/2 and designs the sections.
func NewBandPass(fs, lowHz, highHz float64) (*BandPass, error) {
	if !(fs > 0) || math.IsInf(fs, 0) {
		return nil, &rppg.ConfigurationError{Field: "frame_rate", Reason: fmt.Sprintf("must be positive, got %v", fs)}
	}
	if !(lowHz > 0) {
		return nil, &rppg.ConfigurationError{Field: "low_cut_hz", Reason: fmt.Sprintf("must be positive, got %v", lowHz)}
	}
	if !(highHz > lowHz) {
		return nil, &rppg.ConfigurationError{Field: "high_cut_hz", Reason: fmt.Sprintf("must exceed low_cut_hz %v, got %v", lowHz, highHz)}
	}
	if !(highHz < fs/2) {
		return nil, &rppg.ConfigurationError{Field: "high_cut_hz", Reason: fmt.Sprintf("must be below Nyquist %v Hz, got %v", fs/2, highHz)}
	}
	return &BandPass{
		SampleRate: fs,
		LowHz:      lowHz,
		HighHz:     highHz,
		sections:   []biquad{butterworth(fs, lowHz, true), butterworth(fs, highHz, false)},
	}, nil
}

// MinSamples is the shortest input the filter accepts: two periods of the
// low cut-off. Shorter windows are dominated by the settling transient.
func (bp *BandPass) MinSamples() int {
	return int(math.Ceil(2 * bp.SampleRate / bp.LowHz))
}

func (bp *BandPass) padLen(n int) int {
	p := 3 * int(math.Ceil(bp.SampleRate/bp.LowHz))
	if p > n-1 {
		p = n - 1
	}
	return p
}

// Apply returns the zero-phase filtered copy of x. The input is extended at
// both ends by odd reflection before filtering and trimmed afterwards.
// Constant input yields all zeros.
func (bp *BandPass) Apply(x []float64) ([]float64, error) {
	n := len(x)
	if n < bp.MinSamples() {
		return nil, fmt.Errorf("band-pass needs %d samples, have %d: %w", bp.MinSamples(), n, rppg.ErrInsufficientData)
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("band-pass input: non-finite sample: %w", rppg.ErrDegenerateSignal)
		}
	}

	pad := bp.padLen(n)
	ext := make([]float64, n+2*pad)
	first, last := x[0], x[n-1]
	for i := 0; i < pad; i++ {
		ext[i] = 2*first - x[pad-i]
		ext[pad+n+i] = 2*last - x[n-2-i]
	}
	copy(ext[pad:], x)

	bp.pass(ext)
	reverse(ext)
	bp.pass(ext)
	reverse(ext)

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	debugf("band-pass %.2f-%.2f Hz fs=%.2f n=%d pad=%d", bp.LowHz, bp.HighHz, bp.SampleRate, n, pad)
	return out, nil
}

// pass runs every section over x once. The signal is shifted so it starts
// at zero; the cascade has no DC gain, so the offset needs no restoring.
func (bp *BandPass) pass(x []float64) {
	x0 := x[0]
	for i := range x {
		x[i] -= x0
	}
	for _, q := range bp.sections {
		q.run(x)
	}
}

// FilterSeries filters every channel of cs, keeping names and timestamps.
func (bp *BandPass) FilterSeries(cs rppg.ChannelSeries) (rppg.ChannelSeries, error) {
	out := make(rppg.ChannelSeries, len(cs))
	for c, s := range cs {
		y, err := bp.Apply(s.Y)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", c, err)
		}
		out[c] = rppg.Series{Name: s.Name, X: append([]float64(nil), s.X...), Y: y}
	}
	return out, nil
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
