package l2prep

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Baseline selects the reference subtracted from each channel.
type Baseline int

const (
	// BaselineMean subtracts the window mean (DC offset).
	BaselineMean Baseline = iota
	// BaselineLinear subtracts a least-squares line, removing slow
	// illumination drift as well as the offset.
	BaselineLinear
)

func (b Baseline) String() string {
	if b == BaselineLinear {
		return "linear"
	}
	return "mean"
}

// ParseBaseline accepts "mean" or "linear".
func ParseBaseline(s string) (Baseline, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean", "":
		return BaselineMean, nil
	case "linear":
		return BaselineLinear, nil
	}
	return 0, fmt.Errorf("unknown baseline %q", s)
}

// Options controls pre-processing.
type Options struct {
	Baseline  Baseline
	Normalize bool // scale each channel to unit variance
}

// Prepared is the output of Prepare. All series share Time.
type Prepared struct {
	Time       []float64
	Raw        rppg.ChannelSeries // intensities as sampled
	Delta      rppg.ChannelSeries // baseline removed
	Normalized rppg.ChannelSeries // delta scaled to unit variance, or delta when normalisation is off
}

// Prepare removes the baseline from every channel of w and optionally
// normalises it. The output has one series per channel, each as long as w.
func Prepare(w rppg.Window, opts Options) (*Prepared, error) {
	if len(w) < 2 {
		return nil, fmt.Errorf("prepare %d samples: %w", len(w), rppg.ErrInsufficientData)
	}

	t := w.Times()
	p := &Prepared{
		Time:       t,
		Raw:        make(rppg.ChannelSeries, len(rppg.Channels)),
		Delta:      make(rppg.ChannelSeries, len(rppg.Channels)),
		Normalized: make(rppg.ChannelSeries, len(rppg.Channels)),
	}
	for _, c := range rppg.Channels {
		raw := w.Values(c)
		delta := Detrend(t, raw, opts.Baseline)
		norm := delta
		if opts.Normalize {
			norm = Standardize(raw, delta)
		}
		p.Raw[c] = rppg.Series{Name: c.String(), X: t, Y: raw}
		p.Delta[c] = rppg.Series{Name: c.String(), X: t, Y: delta}
		p.Normalized[c] = rppg.Series{Name: c.String(), X: t, Y: norm}
	}
	return p, nil
}

// Detrend returns y minus the selected baseline.
func Detrend(t, y []float64, b Baseline) []float64 {
	out := make([]float64, len(y))
	if len(y) == 0 {
		return out
	}
	if isFlat(y) {
		return out
	}

	switch b {
	case BaselineLinear:
		alpha, beta := stat.LinearRegression(t, y, nil, false)
		for i := range y {
			out[i] = y[i] - (alpha + beta*t[i])
		}
	default:
		mean := stat.Mean(y, nil)
		for i := range y {
			out[i] = y[i] - mean
		}
	}
	return out
}

// Standardize scales delta to unit variance. A channel whose raw values are
// constant, or whose spread is at floating-point noise level, becomes all
// zeros rather than being divided by (almost) zero.
func Standardize(raw, delta []float64) []float64 {
	out := make([]float64, len(delta))
	if len(delta) < 2 || isFlat(raw) {
		return out
	}
	sd := stat.StdDev(delta, nil)
	scale := math.Max(1, floats.Norm(raw, math.Inf(1)))
	if sd <= 1e-12*scale || math.IsNaN(sd) {
		return out
	}
	for i, v := range delta {
		out[i] = v / sd
	}
	return out
}

func isFlat(y []float64) bool {
	if len(y) == 0 {
		return true
	}
	return floats.Max(y) == floats.Min(y)
}
