package l5ica

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/l4spectral"
	"github.com/banshee-data/pulse.report/internal/rppg/synthetic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const fs = 30.0

func estimator(t *testing.T) *l4spectral.Estimator {
	t.Helper()
	e, err := l4spectral.NewEstimator(l4spectral.Options{LowHz: 0.7, HighHz: 4})
	require.NoError(t, err)
	return e
}

// mixtures returns three channels that each carry the same 1.2 Hz pulse at
// different strengths plus independent noise.
func mixtures(n int) rppg.ChannelSeries {
	tm := synthetic.Times(n, fs)
	pulse := synthetic.Sine(n, fs, 1.2, 1)
	gains := map[rppg.Channel]float64{rppg.Red: 0.4, rppg.Green: 1.0, rppg.Blue: 0.2}
	out := make(rppg.ChannelSeries, 3)
	for i, c := range rppg.Channels {
		noise := synthetic.Noise(n, 1, int64(10+i))
		y := make([]float64, n)
		for k := range y {
			y[k] = gains[c]*pulse[k] + noise[k]
		}
		out[c] = rppg.Series{Name: c.String(), X: tm, Y: y}
	}
	return out
}

func TestSeparateRecoversSharedFrequency(t *testing.T) {
	e := estimator(t)
	res, err := Separate(mixtures(300), fs, e, Options{})
	require.NoError(t, err)
	require.Len(t, res.Components, 3)

	found := false
	for _, c := range rppg.Channels {
		s, err := e.Analyze(res.Components[c].Y, fs)
		require.NoError(t, err)
		if math.Abs(s.Peak.FrequencyHz-1.2) <= 0.05 {
			found = true
		}
	}
	assert.True(t, found, "no component carries the 1.2 Hz pulse")

	primary, err := e.Analyze(res.Components[res.Primary].Y, fs)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, primary.Peak.FrequencyHz, 0.05)
}

func TestSeparateComponentsAreWhiteAndAligned(t *testing.T) {
	in := mixtures(300)
	res, err := Separate(in, fs, nil, Options{})
	require.NoError(t, err)

	for _, c := range rppg.Channels {
		y := res.Components[c].Y
		require.Len(t, y, 300)
		assert.InDelta(t, 0, stat.Mean(y, nil), 1e-9)
		assert.InDelta(t, 1, stat.PopVariance(y, nil), 1e-6)
		assert.GreaterOrEqual(t, res.Correlation[c], 0.0)
		assert.Equal(t, in[c].X, res.Components[c].X)
	}
	// components are mutually uncorrelated
	r := stat.Correlation(res.Components[rppg.Red].Y, res.Components[rppg.Blue].Y, nil)
	assert.InDelta(t, 0, r, 1e-6)
	assert.Equal(t, rppg.Green, res.Primary)
}

func TestSeparateIsDeterministic(t *testing.T) {
	e := estimator(t)
	a, err := Separate(mixtures(200), fs, e, Options{})
	require.NoError(t, err)
	b, err := Separate(mixtures(200), fs, e, Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Components, b.Components)
	assert.Equal(t, a.Primary, b.Primary)
}

func TestSeparateInsufficientData(t *testing.T) {
	_, err := Separate(mixtures(89), fs, nil, Options{MinSamples: 90})
	assert.True(t, errors.Is(err, rppg.ErrInsufficientData))

	// the configured minimum is honoured as given
	_, err = Separate(mixtures(50), fs, nil, Options{MinSamples: 40})
	assert.NoError(t, err)

	one := rppg.ChannelSeries{rppg.Green: mixtures(300)[rppg.Green]}
	_, err = Separate(one, fs, nil, Options{})
	assert.True(t, errors.Is(err, rppg.ErrInsufficientData))
}

func TestSeparateRankDeficient(t *testing.T) {
	in := mixtures(300)
	// blue is an exact copy of red
	in[rppg.Blue] = rppg.Series{Name: "blue", X: in[rppg.Red].X, Y: append([]float64(nil), in[rppg.Red].Y...)}
	_, err := Separate(in, fs, nil, Options{})
	assert.True(t, errors.Is(err, rppg.ErrDegenerateSignal))
}

func TestSeparateReportsNonConvergence(t *testing.T) {
	res, err := Separate(mixtures(300), fs, nil, Options{MaxIterations: 1, Tolerance: 1e-15})
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Len(t, res.Components, 3)
}

func TestOptionsValidate(t *testing.T) {
	err := Options{MinSamples: -1}.Validate()
	var cfgErr *rppg.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "min_ica_samples", cfgErr.Field)
}

func TestAssignRolesUnscramblesComponents(t *testing.T) {
	const n = 200
	observed := make(rppg.ChannelSeries, 3)
	for i, c := range rppg.Channels {
		observed[c] = rppg.Series{Name: c.String(), X: synthetic.Times(n, fs), Y: synthetic.Noise(n, 1, int64(40+i))}
	}

	// rows arrive as blue, -red, green
	s := mat.NewDense(3, n, nil)
	s.SetRow(0, observed[rppg.Blue].Y)
	neg := make([]float64, n)
	for k, v := range observed[rppg.Red].Y {
		neg[k] = -v
	}
	s.SetRow(1, neg)
	s.SetRow(2, observed[rppg.Green].Y)

	res := &Result{
		Components:  make(rppg.ChannelSeries, 3),
		Correlation: make(map[rppg.Channel]float64, 3),
	}
	assignRoles(res, s, observed, rppg.Channels)

	for _, c := range rppg.Channels {
		assert.InDelta(t, 1, res.Correlation[c], 1e-9, c.String())
		assert.InDeltaSlice(t, observed[c].Y, res.Components[c].Y, 1e-9, c.String())
	}
}
