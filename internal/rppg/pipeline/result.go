package pipeline

import (
	"time"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/l1samples"
)

// WindowSummary describes the window a cycle was computed from.
type WindowSummary struct {
	l1samples.WindowStats
	FrameRate       float64              `json:"frame_rate"`
	FrameRateSource string               `json:"frame_rate_source"`
	FrameStats      l1samples.FrameStats `json:"frame_stats"`
	Resampled       int                  `json:"resampled"`
	Dropped         uint64               `json:"dropped"`
	Rejected        uint64               `json:"rejected"`
}

// ICASummary reports how the ICA path went. Error is set when the path did
// not produce estimates this cycle.
type ICASummary struct {
	Primary     rppg.Channel             `json:"primary"`
	Converged   bool                     `json:"converged"`
	Iterations  int                      `json:"iterations"`
	Scores      map[rppg.Channel]float64 `json:"scores,omitempty"`
	Correlation map[rppg.Channel]float64 `json:"correlation,omitempty"`
	Elapsed     time.Duration            `json:"elapsed_ns"`
	Error       string                   `json:"error,omitempty"`
}

// CycleResult is everything one recomputation produced. It is published
// whole and never modified afterwards; readers that want to change a part
// take a copy through the Pipeline accessors.
type CycleResult struct {
	SessionID  string        `json:"session_id"`
	Cycle      uint64        `json:"cycle"`
	ComputedAt time.Time     `json:"computed_at"`
	Window     WindowSummary `json:"window"`

	Series map[rppg.SeriesKind]rppg.ChannelSeries `json:"series"`
	// Peaks are the spectral estimates per path.
	Peaks map[rppg.Path]rppg.ChannelPeaks `json:"peaks"`
	// WaveformPeaks are the inter-beat interval estimates per path.
	WaveformPeaks map[rppg.Path]rppg.ChannelPeaks `json:"waveform_peaks"`
	// Maxima are the beats of each path's primary channel.
	Maxima    map[rppg.Path][]rppg.PeakPoint `json:"maxima"`
	HeartRate rppg.HeartRateResult           `json:"heart_rate"`
	ICA       ICASummary                     `json:"ica"`
}

// Clone returns a deep copy.
func (r *CycleResult) Clone() *CycleResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Series = make(map[rppg.SeriesKind]rppg.ChannelSeries, len(r.Series))
	for k, cs := range r.Series {
		out.Series[k] = cs.Clone()
	}
	out.Peaks = clonePeaks(r.Peaks)
	out.WaveformPeaks = clonePeaks(r.WaveformPeaks)
	out.Maxima = make(map[rppg.Path][]rppg.PeakPoint, len(r.Maxima))
	for p, m := range r.Maxima {
		out.Maxima[p] = append([]rppg.PeakPoint(nil), m...)
	}
	out.ICA.Scores = cloneFloats(r.ICA.Scores)
	out.ICA.Correlation = cloneFloats(r.ICA.Correlation)
	return &out
}

// Summary is the compact form of a cycle sent to subscribers that do not
// need the series.
type Summary struct {
	SessionID  string                          `json:"session_id"`
	Cycle      uint64                          `json:"cycle"`
	ComputedAt time.Time                       `json:"computed_at"`
	FrameRate  float64                         `json:"frame_rate"`
	Samples    int                             `json:"samples"`
	HeartRate  rppg.HeartRateResult            `json:"heart_rate"`
	Peaks      map[rppg.Path]rppg.ChannelPeaks `json:"peaks"`
	ICAError   string                          `json:"ica_error,omitempty"`
}

// Summarize drops the series from r.
func (r *CycleResult) Summarize() Summary {
	return Summary{
		SessionID:  r.SessionID,
		Cycle:      r.Cycle,
		ComputedAt: r.ComputedAt,
		FrameRate:  r.Window.FrameRate,
		Samples:    r.Window.Samples,
		HeartRate:  r.HeartRate,
		Peaks:      clonePeaks(r.Peaks),
		ICAError:   r.ICA.Error,
	}
}

func clonePeaks(in map[rppg.Path]rppg.ChannelPeaks) map[rppg.Path]rppg.ChannelPeaks {
	out := make(map[rppg.Path]rppg.ChannelPeaks, len(in))
	for p, cp := range in {
		out[p] = cp.Clone()
	}
	return out
}

func cloneFloats(in map[rppg.Channel]float64) map[rppg.Channel]float64 {
	if in == nil {
		return nil
	}
	out := make(map[rppg.Channel]float64, len(in))
	for c, v := range in {
		out[c] = v
	}
	return out
}
