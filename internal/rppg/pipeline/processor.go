package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/l1samples"
	"github.com/banshee-data/pulse.report/internal/rppg/l2prep"
	"github.com/banshee-data/pulse.report/internal/rppg/l3filter"
	"github.com/banshee-data/pulse.report/internal/rppg/l4spectral"
	"github.com/banshee-data/pulse.report/internal/rppg/l5ica"
	"github.com/banshee-data/pulse.report/internal/rppg/l6heartrate"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

// Frame-rate sources reported in WindowSummary.
const (
	RateFromCamera     = "camera"
	RateFromTimestamps = "measured"
	RateFromConfig     = "configured"
)

// Processor runs one recomputation cycle: window in, CycleResult out. It
// holds no per-cycle state and is safe for concurrent use.
type Processor struct {
	frameRate    float64
	lowHz        float64
	highHz       float64
	maxGapFactor float64
	prep         l2prep.Options
	estimator    *l4spectral.Estimator
	ica          l5ica.Options
	icaSource    string
	primary      rppg.Channel
	clock        timeutil.Clock
}

// NewProcessor validates cfg and builds the stage configuration. Every
// configuration problem surfaces here as a *rppg.ConfigurationError.
func NewProcessor(cfg *config.PulseConfig) (*Processor, error) {
	if cfg == nil {
		cfg = config.EmptyPulseConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseline, err := l2prep.ParseBaseline(cfg.GetBaseline())
	if err != nil {
		return nil, &rppg.ConfigurationError{Field: "baseline", Reason: err.Error()}
	}
	primary, err := rppg.ParseChannel(cfg.GetPrimaryChannel())
	if err != nil {
		return nil, &rppg.ConfigurationError{Field: "primary_channel", Reason: err.Error()}
	}
	// the nominal rate must carry the band; measured rates are checked per cycle
	if _, err := l3filter.NewBandPass(cfg.GetFrameRate(), cfg.GetLowCutHz(), cfg.GetHighCutHz()); err != nil {
		return nil, err
	}
	est, err := l4spectral.NewEstimator(l4spectral.Options{
		LowHz:                cfg.GetLowCutHz(),
		HighHz:               cfg.GetHighCutHz(),
		FFTSize:              cfg.GetFFTSize(),
		MinConcentration:     cfg.GetMinConcentration(),
		ConcentrationWidthHz: cfg.GetConcentrationWidthHz(),
	})
	if err != nil {
		return nil, err
	}
	icaOpts := l5ica.Options{
		MinSamples:    cfg.GetMinICASamples(),
		MaxIterations: cfg.GetICAMaxIterations(),
		Tolerance:     cfg.GetICATolerance(),
	}
	if err := icaOpts.Validate(); err != nil {
		return nil, err
	}

	return &Processor{
		frameRate:    cfg.GetFrameRate(),
		lowHz:        cfg.GetLowCutHz(),
		highHz:       cfg.GetHighCutHz(),
		maxGapFactor: cfg.GetMaxGapFactor(),
		prep:         l2prep.Options{Baseline: baseline, Normalize: cfg.GetNormalize()},
		estimator:    est,
		ica:          icaOpts,
		icaSource:    cfg.GetICASource(),
		primary:      primary,
		clock:        timeutil.RealClock{},
	}, nil
}

// Estimator exposes the spectral estimator shared by both paths.
func (p *Processor) Estimator() *l4spectral.Estimator { return p.estimator }

// maxCameraRateRatio bounds how far a camera-reported rate may stray from the
// rate measured on the timestamps before it is ignored.
const maxCameraRateRatio = 2.0

// cameraRateAgrees reports whether the camera rate is within
// maxCameraRateRatio of the measured mean rate.
func cameraRateAgrees(actualFPS, measured float64) bool {
	if !(actualFPS > 0) || math.IsInf(actualFPS, 0) || !(measured > 0) {
		return false
	}
	return actualFPS >= measured/maxCameraRateRatio && actualFPS <= measured*maxCameraRateRatio
}

// frameRateFor picks the sampling rate of w: the camera's reported rate when
// it agrees with the timestamps, else the rate implied by the timestamps,
// else the configured rate.
func (p *Processor) frameRateFor(w rppg.Window, actualFPS float64) (float64, string, l1samples.FrameStats) {
	stats := l1samples.MeasureFrameRate(w)
	if actualFPS != 0 && !cameraRateAgrees(actualFPS, stats.FPSMean) {
		monitoring.Debugf("ignoring camera rate %.3f fps, timestamps give %.3f fps", actualFPS, stats.FPSMean)
		actualFPS = 0
	}
	switch {
	case actualFPS > 0:
		return actualFPS, RateFromCamera, stats
	case stats.FPSMean > 0:
		return stats.FPSMean, RateFromTimestamps, stats
	default:
		return p.frameRate, RateFromConfig, stats
	}
}

// Process computes every stage for w. actualFPS is the rate reported by the
// camera for this window, or 0 if unknown.
//
// The direct path failing fails the cycle with ErrInsufficientData or
// ErrDegenerateSignal. The ICA path failing does not: the result carries an
// invalid ICA estimate and ICA.Error explains why.
func (p *Processor) Process(ctx context.Context, w rppg.Window, actualFPS float64) (*CycleResult, error) {
	winStats, err := l1samples.Validate(w, p.frameRate, p.maxGapFactor)
	if err != nil {
		if rppg.Recoverable(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%v: %w", err, rppg.ErrDegenerateSignal)
	}

	fps, source, fpsStats := p.frameRateFor(w, actualFPS)
	bp, err := l3filter.NewBandPass(fps, p.lowHz, p.highHz)
	if err != nil {
		return nil, fmt.Errorf("frame rate %.2f fps cannot carry %.2f-%.2f Hz: %w", fps, p.lowHz, p.highHz, rppg.ErrDegenerateSignal)
	}

	uniform, err := l1samples.Resample(w, fps)
	if err != nil {
		return nil, err
	}
	prepared, err := l2prep.Prepare(uniform, p.prep)
	if err != nil {
		return nil, err
	}
	filtered, err := bp.FilterSeries(prepared.Normalized)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spectra, directPeaks, err := p.estimator.AnalyzeSeries(filtered, fps)
	if err != nil {
		return nil, err
	}

	res := &CycleResult{
		ComputedAt: p.clock.Now(),
		Window: WindowSummary{
			WindowStats:     winStats,
			FrameRate:       fps,
			FrameRateSource: source,
			FrameStats:      fpsStats,
			Resampled:       len(uniform),
		},
		Series: map[rppg.SeriesKind]rppg.ChannelSeries{
			rppg.SeriesRaw:      prepared.Raw,
			rppg.SeriesFiltered: filtered,
			rppg.SeriesFFT:      spectra,
		},
		Peaks:         map[rppg.Path]rppg.ChannelPeaks{rppg.PathDirect: directPeaks},
		WaveformPeaks: map[rppg.Path]rppg.ChannelPeaks{rppg.PathDirect: beats(bp, filtered)},
		Maxima:        map[rppg.Path][]rppg.PeakPoint{},
		ICA:           ICASummary{Primary: p.primary},
	}
	res.Maxima[rppg.PathDirect], _ = bp.Beats(filtered[p.primary])

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	icaPeaks := p.refine(res, bp, prepared, filtered, fps)

	res.HeartRate = l6heartrate.Aggregate(directPeaks, icaPeaks, p.primary, res.ICA.Primary)
	monitoring.Debugf("cycle: n=%d fps=%.2f (%s) direct=%.3f Hz ica=%.3f Hz", len(w), fps, source,
		res.HeartRate.Direct.FrequencyHz, res.HeartRate.ICA.FrequencyHz)
	return res, nil
}

// refine runs the ICA path into res and returns its peaks. Failures are
// recorded in res.ICA and yield empty peaks.
func (p *Processor) refine(res *CycleResult, bp *l3filter.BandPass, prepared *l2prep.Prepared, filtered rppg.ChannelSeries, fps float64) rppg.ChannelPeaks {
	source := filtered
	if p.icaSource == config.ICASourceNormalized {
		source = prepared.Normalized
	}

	start := time.Now()
	sep, err := l5ica.Separate(source, fps, p.estimator, p.ica)
	if err != nil {
		res.ICA.Error = err.Error()
		monitoring.Debugf("ica skipped: %v", err)
		return rppg.ChannelPeaks{}
	}

	components := sep.Components
	if p.icaSource == config.ICASourceNormalized {
		if components, err = bp.FilterSeries(components); err != nil {
			res.ICA.Error = err.Error()
			return rppg.ChannelPeaks{}
		}
	}
	spectra, peaks, err := p.estimator.AnalyzeSeries(components, fps)
	if err != nil {
		res.ICA.Error = err.Error()
		return rppg.ChannelPeaks{}
	}

	res.ICA = ICASummary{
		Primary:     sep.Primary,
		Converged:   sep.Converged,
		Iterations:  sep.Iterations,
		Scores:      sep.Scores,
		Correlation: sep.Correlation,
		Elapsed:     time.Since(start),
	}
	res.Series[rppg.SeriesFilteredICA] = components
	res.Series[rppg.SeriesFFTICA] = spectra
	res.Peaks[rppg.PathICA] = peaks
	res.WaveformPeaks[rppg.PathICA] = beats(bp, components)
	res.Maxima[rppg.PathICA], _ = bp.Beats(components[sep.Primary])
	return peaks
}

func beats(bp *l3filter.BandPass, cs rppg.ChannelSeries) rppg.ChannelPeaks {
	out := make(rppg.ChannelPeaks, len(cs))
	for c, s := range cs {
		_, out[c] = bp.Beats(s)
	}
	return out
}
