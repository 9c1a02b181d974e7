package l3filter

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/synthetic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func newDefault(t *testing.T) *BandPass {
	t.Helper()
	bp, err := NewBandPass(30, DefaultLowHz, DefaultHighHz)
	require.NoError(t, err)
	return bp
}

func TestNewBandPassValidation(t *testing.T) {
	cases := []struct {
		name          string
		fs, low, high float64
		field         string
	}{
		{"zero rate", 0, 0.7, 4, "frame_rate"},
		{"negative low", 30, -1, 4, "low_cut_hz"},
		{"inverted band", 30, 4, 0.7, "high_cut_hz"},
		{"above nyquist", 6, 0.7, 4, "high_cut_hz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBandPass(tc.fs, tc.low, tc.high)
			var cfgErr *rppg.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestFlatInputFiltersToZero(t *testing.T) {
	bp := newDefault(t)
	flat := make([]float64, 300)
	for i := range flat {
		flat[i] = 123.4
	}

	once, err := bp.Apply(flat)
	require.NoError(t, err)
	twice, err := bp.Apply(once)
	require.NoError(t, err)

	for i := range flat {
		assert.Zero(t, once[i])
		assert.Zero(t, twice[i])
	}
}

func TestApplyKeepsLengthAndRejectsShortInput(t *testing.T) {
	bp := newDefault(t)
	assert.Equal(t, 86, bp.MinSamples())

	_, err := bp.Apply(make([]float64, bp.MinSamples()-1))
	assert.True(t, errors.Is(err, rppg.ErrInsufficientData))

	out, err := bp.Apply(make([]float64, bp.MinSamples()))
	require.NoError(t, err)
	assert.Len(t, out, bp.MinSamples())
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
	}
}

func TestApplyRejectsNonFinite(t *testing.T) {
	bp := newDefault(t)
	x := synthetic.Sine(300, 30, 1.2, 1)
	x[10] = math.NaN()
	_, err := bp.Apply(x)
	assert.True(t, errors.Is(err, rppg.ErrDegenerateSignal))
}

func TestPassBandAndStopBand(t *testing.T) {
	bp := newDefault(t)
	n := 600

	pass, err := bp.Apply(synthetic.Sine(n, 30, 1.5, 1))
	require.NoError(t, err)
	// ignore the edges where reflection padding dominates
	mid := pass[150 : n-150]
	assert.InDelta(t, 1/math.Sqrt2, stat.StdDev(mid, nil), 0.1)

	drift, err := bp.Apply(synthetic.Sine(n, 30, 0.05, 1))
	require.NoError(t, err)
	assert.Less(t, floats.Norm(drift[150:n-150], math.Inf(1)), 0.05)

	hiss, err := bp.Apply(synthetic.Sine(n, 30, 12, 1))
	require.NoError(t, err)
	assert.Less(t, floats.Norm(hiss[150:n-150], math.Inf(1)), 0.05)
}

func TestZeroPhase(t *testing.T) {
	bp := newDefault(t)
	x := synthetic.Sine(600, 30, 1.2, 1)
	y, err := bp.Apply(x)
	require.NoError(t, err)

	// one period of the input and the output; their maxima line up
	peakIn := argmaxRange(x, 275, 300)
	peakOut := argmaxRange(y, 275, 300)
	assert.LessOrEqual(t, absInt(peakIn-peakOut), 1)
}

func TestFilterSeriesKeepsTimestamps(t *testing.T) {
	bp := newDefault(t)
	tm := synthetic.Times(120, 30)
	cs := rppg.ChannelSeries{
		rppg.Green: {Name: "green", X: tm, Y: synthetic.Sine(120, 30, 1.2, 1)},
	}
	out, err := bp.FilterSeries(cs)
	require.NoError(t, err)
	assert.Equal(t, tm, out[rppg.Green].X)
	assert.Equal(t, "green", out[rppg.Green].Name)
	assert.Len(t, out[rppg.Green].Y, 120)
}

func argmaxRange(x []float64, from, to int) int {
	return from + floats.MaxIdx(x[from:to])
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
