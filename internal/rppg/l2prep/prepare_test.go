package l2prep

import (
	"errors"
	"testing"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/synthetic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestPrepareLengthAndZeroMean(t *testing.T) {
	for _, n := range []int{2, 17, 300} {
		for _, b := range []Baseline{BaselineMean, BaselineLinear} {
			w := synthetic.NewGenerator(30, 1.2, int64(n)).Window(n)
			p, err := Prepare(w, Options{Baseline: b, Normalize: true})
			require.NoError(t, err)

			require.Len(t, p.Time, n)
			for _, c := range rppg.Channels {
				norm := p.Normalized[c].Y
				require.Len(t, norm, n, "channel %s", c)
				require.Len(t, p.Raw[c].Y, n)
				assert.InDelta(t, 0, stat.Mean(norm, nil), 1e-9, "n=%d baseline=%s channel=%s", n, b, c)
				assert.InDelta(t, 0, stat.Mean(p.Delta[c].Y, nil), 1e-9)
				if n > 2 {
					assert.InDelta(t, 1, stat.StdDev(norm, nil), 1e-9)
				}
			}
		}
	}
}

func TestPrepareAlignsTimestamps(t *testing.T) {
	w := synthetic.NewGenerator(30, 1.2, 1).Window(10)
	p, err := Prepare(w, Options{})
	require.NoError(t, err)
	for _, c := range rppg.Channels {
		assert.Equal(t, w.Times(), p.Normalized[c].X)
		assert.Equal(t, w.Values(c), p.Raw[c].Y)
	}
}

func TestPrepareZeroVarianceChannel(t *testing.T) {
	w := make(rppg.Window, 50)
	for i := range w {
		w[i] = rppg.Sample{Time: float64(i) / 30, R: 0.1, G: 120 + float64(i%3), B: 0.1}
	}
	p, err := Prepare(w, Options{Normalize: true})
	require.NoError(t, err)
	for _, v := range p.Normalized[rppg.Red].Y {
		assert.Zero(t, v)
	}
	for _, v := range p.Normalized[rppg.Blue].Y {
		assert.Zero(t, v)
	}
	assert.NotZero(t, stat.StdDev(p.Normalized[rppg.Green].Y, nil))
}

func TestPrepareInsufficientData(t *testing.T) {
	_, err := Prepare(rppg.Window{{Time: 0}}, Options{})
	assert.True(t, errors.Is(err, rppg.ErrInsufficientData))
}

func TestDetrendLinearRemovesRamp(t *testing.T) {
	tm := synthetic.Times(100, 30)
	y := make([]float64, len(tm))
	for i, ti := range tm {
		y[i] = 10 + 3*ti
	}
	for _, v := range Detrend(tm, y, BaselineLinear) {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestParseBaseline(t *testing.T) {
	b, err := ParseBaseline("Linear")
	require.NoError(t, err)
	assert.Equal(t, BaselineLinear, b)
	_, err = ParseBaseline("median")
	assert.Error(t, err)
}
