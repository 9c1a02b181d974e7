package l3filter

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// peakFraction is the minimum height of a beat, relative to the tallest
// maximum in the window.
const peakFraction = 0.3

// DetectPeaks returns the local maxima of a filtered waveform that rise
// above peakFraction of the largest value. Maxima closer together than
// minInterval seconds are merged, keeping the taller one.
func DetectPeaks(t, y []float64, minInterval float64) []rppg.PeakPoint {
	if len(y) < 3 || len(t) != len(y) {
		return nil
	}
	top := floats.Max(y)
	if !(top > 0) {
		return nil
	}
	threshold := peakFraction * top

	var peaks []rppg.PeakPoint
	for i := 1; i < len(y)-1; i++ {
		if y[i] <= y[i-1] || y[i] < y[i+1] || y[i] < threshold {
			continue
		}
		p := rppg.PeakPoint{Time: t[i], Value: y[i]}
		if k := len(peaks) - 1; k >= 0 && p.Time-peaks[k].Time < minInterval {
			if p.Value > peaks[k].Value {
				peaks[k] = p
			}
			continue
		}
		peaks = append(peaks, p)
	}
	return peaks
}

// IntervalEstimate converts beat times into a frequency and spread. The
// frequency is the reciprocal of the mean inter-beat interval; the spread
// propagates the interval standard deviation (σf = σT / T²). Fewer than two
// beats, or a rate outside [lowHz, highHz], yields NoPeak.
func IntervalEstimate(peaks []rppg.PeakPoint, lowHz, highHz float64) rppg.PeakEstimate {
	if len(peaks) < 2 {
		return rppg.NoPeak
	}
	intervals := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals[i-1] = peaks[i].Time - peaks[i-1].Time
	}
	mean := stat.Mean(intervals, nil)
	if !(mean > 0) {
		return rppg.NoPeak
	}
	f := 1 / mean
	if f < lowHz || f > highHz {
		return rppg.NoPeak
	}
	var sd float64
	if len(intervals) > 1 {
		sd = stat.StdDev(intervals, nil)
	}
	if math.IsNaN(sd) {
		sd = 0
	}
	return rppg.PeakEstimate{FrequencyHz: f, StdDevHz: sd / (mean * mean)}
}

// Beats runs DetectPeaks and IntervalEstimate on one filtered series. The
// refractory interval is one period of the band's upper edge.
func (bp *BandPass) Beats(s rppg.Series) ([]rppg.PeakPoint, rppg.PeakEstimate) {
	peaks := DetectPeaks(s.X, s.Y, 1/bp.HighHz)
	return peaks, IntervalEstimate(peaks, bp.LowHz, bp.HighHz)
}
