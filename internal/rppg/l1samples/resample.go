package l1samples

import (
	"fmt"
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"gonum.org/v1/gonum/interp"
)

// Resample interpolates w onto a uniform time grid at rate fps, starting at
// the first sample. Spectral analysis assumes uniform sampling; camera frame
// intervals jitter, so every window passes through here first.
func Resample(w rppg.Window, fps float64) (rppg.Window, error) {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return nil, fmt.Errorf("resample rate %v: %w", fps, rppg.ErrDegenerateSignal)
	}
	if len(w) < 2 {
		return nil, fmt.Errorf("resample %d samples: %w", len(w), rppg.ErrInsufficientData)
	}

	t0 := w[0].Time
	n := int(math.Floor(w.Duration()*fps+1e-9)) + 1
	if n < 2 {
		return nil, fmt.Errorf("window spans %.3fs, shorter than one frame at %.1f fps: %w", w.Duration(), fps, rppg.ErrInsufficientData)
	}

	times := w.Times()
	fits := make(map[rppg.Channel]*interp.PiecewiseLinear, len(rppg.Channels))
	for _, c := range rppg.Channels {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(times, w.Values(c)); err != nil {
			return nil, fmt.Errorf("resample %s: %v: %w", c, err, rppg.ErrDegenerateSignal)
		}
		fits[c] = &pl
	}

	out := make(rppg.Window, n)
	for k := range out {
		t := t0 + float64(k)/fps
		out[k] = rppg.Sample{
			Time: t,
			R:    fits[rppg.Red].Predict(t),
			G:    fits[rppg.Green].Predict(t),
			B:    fits[rppg.Blue].Predict(t),
		}
	}
	return out, nil
}
