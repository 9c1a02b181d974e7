package rppg

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannel(t *testing.T) {
	tests := []struct {
		in      string
		want    Channel
		wantErr bool
	}{
		{"red", Red, false},
		{"G", Green, false},
		{" Blue ", Blue, false},
		{"alpha", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeriesKindRoundTrip(t *testing.T) {
	for _, k := range SeriesKinds {
		got, err := ParseSeriesKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseSeriesKind("fft-ica")
	require.NoError(t, err)
	assert.Equal(t, SeriesFFTICA, got)
	assert.True(t, SeriesFFTICA.IsSpectrum())
	assert.False(t, SeriesFilteredICA.IsSpectrum())
}

func TestChannelKeyedJSON(t *testing.T) {
	peaks := ChannelPeaks{Green: {FrequencyHz: 1.2, StdDevHz: 0.05}}
	b, err := json.Marshal(peaks)
	require.NoError(t, err)
	assert.JSONEq(t, `{"green":{"frequency_hz":1.2,"std_dev_hz":0.05}}`, string(b))

	var back ChannelPeaks
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, peaks, back)
}

func TestWindowAccessors(t *testing.T) {
	w := Window{
		{Time: 0, R: 1, G: 2, B: 3},
		{Time: 0.5, R: 4, G: 5, B: 6},
	}
	assert.Equal(t, []float64{0, 0.5}, w.Times())
	assert.Equal(t, []float64{2, 5}, w.Values(Green))
	assert.InDelta(t, 0.5, w.Duration(), 1e-12)
	assert.Zero(t, Window{}.Duration())
}

func TestSeriesCloneIsDeep(t *testing.T) {
	cs := ChannelSeries{Red: NewSeries("red", []float64{0, 1}, []float64{2, 3})}
	cp := cs.Clone()
	cp[Red].Y[0] = 99
	assert.Equal(t, 2.0, cs[Red].Y[0])
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(fmt.Errorf("stage: %w", ErrInsufficientData)))
	assert.True(t, Recoverable(ErrDegenerateSignal))
	assert.False(t, Recoverable(&ConfigurationError{Field: "frame_rate", Reason: "must be positive"}))
	assert.False(t, Recoverable(errors.New("other")))
}

func TestHeartRateResultPath(t *testing.T) {
	h := HeartRateResult{
		Direct: RateEstimate{FrequencyHz: 1.2, Valid: true},
		ICA:    RateEstimate{FrequencyHz: 1.1, Valid: true},
	}
	assert.Equal(t, 1.2, h.Path(PathDirect).FrequencyHz)
	assert.Equal(t, 1.1, h.Path(PathICA).FrequencyHz)
}
