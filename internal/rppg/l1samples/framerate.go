package l1samples

import (
	"github.com/banshee-data/pulse.report/internal/rppg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// stabilityRatio is the largest instantaneous-FPS standard deviation, as a
// fraction of the mean, for a stream to count as stable.
const stabilityRatio = 0.15

// FrameStats describes the frame timing of a window.
type FrameStats struct {
	Frames    int     `json:"frames"`
	Duration  float64 `json:"duration_s"`
	FPSMean   float64 `json:"fps_mean"`
	FPSStdDev float64 `json:"fps_std_dev"`
	FPSMin    float64 `json:"fps_min"`
	FPSMax    float64 `json:"fps_max"`
	Stable    bool    `json:"stable"`
}

// MeasureFrameRate derives the frame rate of w from its timestamps. The mean
// rate is intervals over duration; the instantaneous rates give min, max and
// spread. A window with fewer than two samples yields a zero FrameStats.
func MeasureFrameRate(w rppg.Window) FrameStats {
	fs := FrameStats{Frames: len(w), Duration: w.Duration()}
	if len(w) < 2 || fs.Duration <= 0 {
		return fs
	}
	fs.FPSMean = float64(len(w)-1) / fs.Duration

	inst := make([]float64, 0, len(w)-1)
	for i := 1; i < len(w); i++ {
		if dt := w[i].Time - w[i-1].Time; dt > 0 {
			inst = append(inst, 1/dt)
		}
	}
	if len(inst) == 0 {
		return fs
	}
	fs.FPSMin = floats.Min(inst)
	fs.FPSMax = floats.Max(inst)
	if len(inst) > 1 {
		fs.FPSStdDev = stat.StdDev(inst, nil)
	}
	fs.Stable = fs.FPSStdDev < stabilityRatio*fs.FPSMean
	return fs
}
