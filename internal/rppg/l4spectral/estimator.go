package l4spectral

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/stat"
)

// Defaults used when Options fields are zero.
const (
	DefaultFFTSize              = 1024
	DefaultMinConcentration     = 0.5
	DefaultConcentrationWidthHz = 0.15

	// minSamples is the shortest series worth transforming.
	minSamples = 8
)

// fwhmToSigma converts a full width at half maximum into the standard
// deviation of a Gaussian with that width.
var fwhmToSigma = 1 / (2 * math.Sqrt(2*math.Ln2))

// Options configures an Estimator.
type Options struct {
	LowHz  float64
	HighHz float64
	// FFTSize is the minimum transform length. Series longer than FFTSize
	// are padded to the next power of two instead.
	FFTSize int
	// MinConcentration is the fraction of in-band power that must sit in
	// the peak neighbourhood for the peak to count. Below it the band is
	// treated as noise.
	MinConcentration float64
	// ConcentrationWidthHz is the half-width of the peak neighbourhood. It
	// is never narrower than the main lobe of the analysis window.
	ConcentrationWidthHz float64
}

// Spectrum is the result of one analysis.
type Spectrum struct {
	// Freq and Magnitude cover the heart-rate band only.
	Freq      []float64
	Magnitude []float64
	Peak      rppg.PeakEstimate
	// Concentration is the fraction of in-band power near the peak, in [0,1].
	Concentration float64
	// ResolutionHz is the bin spacing of the padded transform.
	ResolutionHz float64
}

// Series returns the magnitude spectrum as a named series with x in Hz.
func (s *Spectrum) Series(name string) rppg.Series {
	return rppg.NewSeries(name, s.Freq, s.Magnitude)
}

// Estimator computes spectra. Transform plans are cached per length; an
// Estimator is safe for concurrent use.
type Estimator struct {
	opts Options

	mu   sync.Mutex
	ffts map[int]*fourier.FFT
}

// NewEstimator validates opts, filling zero fields with defaults.
func NewEstimator(opts Options) (*Estimator, error) {
	if opts.FFTSize == 0 {
		opts.FFTSize = DefaultFFTSize
	}
	if opts.MinConcentration == 0 {
		opts.MinConcentration = DefaultMinConcentration
	}
	if opts.ConcentrationWidthHz == 0 {
		opts.ConcentrationWidthHz = DefaultConcentrationWidthHz
	}
	switch {
	case !(opts.LowHz > 0):
		return nil, &rppg.ConfigurationError{Field: "low_cut_hz", Reason: "must be positive"}
	case !(opts.HighHz > opts.LowHz):
		return nil, &rppg.ConfigurationError{Field: "high_cut_hz", Reason: "must exceed low_cut_hz"}
	case opts.FFTSize < 0 || opts.FFTSize&(opts.FFTSize-1) != 0:
		return nil, &rppg.ConfigurationError{Field: "fft_size", Reason: fmt.Sprintf("must be a power of two, got %d", opts.FFTSize)}
	case opts.MinConcentration < 0 || opts.MinConcentration > 1:
		return nil, &rppg.ConfigurationError{Field: "min_concentration", Reason: "must be within [0,1]"}
	case opts.ConcentrationWidthHz < 0:
		return nil, &rppg.ConfigurationError{Field: "concentration_width_hz", Reason: "must not be negative"}
	}
	return &Estimator{opts: opts, ffts: make(map[int]*fourier.FFT)}, nil
}

// Options returns the effective options.
func (e *Estimator) Options() Options { return e.opts }

// Analyze computes the in-band magnitude spectrum of y sampled at fs and
// its dominant peak. A band with no energy, or whose strongest peak does not
// stand out from the rest of the band, yields NoPeak and no error.
func (e *Estimator) Analyze(y []float64, fs float64) (*Spectrum, error) {
	n := len(y)
	if n < minSamples {
		return nil, fmt.Errorf("spectrum of %d samples: %w", n, rppg.ErrInsufficientData)
	}
	if !(fs > 0) || math.IsInf(fs, 0) {
		return nil, fmt.Errorf("spectrum sample rate %v: %w", fs, rppg.ErrDegenerateSignal)
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("spectrum input: non-finite sample: %w", rppg.ErrDegenerateSignal)
		}
	}

	size := e.opts.FFTSize
	for size < n {
		size <<= 1
	}

	seq := make([]float64, size)
	mean := stat.Mean(y, nil)
	for i, v := range y {
		seq[i] = v - mean
	}
	window.Hann(seq[:n])
	coeffs := e.transform(size, seq)

	mag := make([]float64, len(coeffs))
	freq := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mag[i] = cmplx.Abs(c)
		freq[i] = float64(i) * fs / float64(size)
	}

	lo, hi := -1, -1
	for i, f := range freq {
		if f < e.opts.LowHz || f > e.opts.HighHz {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i
	}
	if lo < 0 {
		return nil, fmt.Errorf("band %.2f-%.2f Hz holds no bins at fs=%.2f: %w", e.opts.LowHz, e.opts.HighHz, fs, rppg.ErrInsufficientData)
	}

	s := &Spectrum{
		Freq:         append([]float64(nil), freq[lo:hi+1]...),
		Magnitude:    append([]float64(nil), mag[lo:hi+1]...),
		ResolutionHz: fs / float64(size),
	}

	k := lo
	var total float64
	for i := lo; i <= hi; i++ {
		total += mag[i] * mag[i]
		if mag[i] > mag[k] {
			k = i
		}
	}
	if !(total > 0) || !(mag[k] > 0) {
		return s, nil
	}

	peakHz := interpolate(mag, k) * s.ResolutionHz
	halfWidth := math.Max(e.opts.ConcentrationWidthHz, 2*fs/float64(n))
	var near float64
	for i := lo; i <= hi; i++ {
		if math.Abs(freq[i]-peakHz) <= halfWidth {
			near += mag[i] * mag[i]
		}
	}
	s.Concentration = near / total
	if s.Concentration < e.opts.MinConcentration {
		debugf("no peak: concentration %.3f below %.3f (peak %.3f Hz)", s.Concentration, e.opts.MinConcentration, peakHz)
		return s, nil
	}

	s.Peak = rppg.PeakEstimate{
		FrequencyHz: peakHz,
		StdDevHz:    halfPowerWidth(mag, k) * s.ResolutionHz * fwhmToSigma,
	}
	return s, nil
}

// Score returns the spectral concentration of y, or 0 when it cannot be
// computed. It ranks candidate pulse waveforms.
func (e *Estimator) Score(y []float64, fs float64) float64 {
	s, err := e.Analyze(y, fs)
	if err != nil {
		return 0
	}
	return s.Concentration
}

// AnalyzeSeries runs Analyze on every channel of cs and returns the
// magnitude spectra and peaks.
func (e *Estimator) AnalyzeSeries(cs rppg.ChannelSeries, fs float64) (rppg.ChannelSeries, rppg.ChannelPeaks, error) {
	spectra := make(rppg.ChannelSeries, len(cs))
	peaks := make(rppg.ChannelPeaks, len(cs))
	for c, series := range cs {
		s, err := e.Analyze(series.Y, fs)
		if err != nil {
			return nil, nil, fmt.Errorf("spectrum %s: %w", c, err)
		}
		spectra[c] = s.Series(series.Name)
		peaks[c] = s.Peak
	}
	return spectra, peaks, nil
}

func (e *Estimator) transform(size int, seq []float64) []complex128 {
	e.mu.Lock()
	defer e.mu.Unlock()
	fft, ok := e.ffts[size]
	if !ok {
		fft = fourier.NewFFT(size)
		e.ffts[size] = fft
	}
	return fft.Coefficients(nil, seq)
}

// interpolate refines bin k by fitting a parabola through the log
// magnitudes of k and its neighbours. Returns a fractional bin index.
func interpolate(mag []float64, k int) float64 {
	if k == 0 || k == len(mag)-1 || mag[k-1] <= 0 || mag[k+1] <= 0 {
		return float64(k)
	}
	a, b, c := math.Log(mag[k-1]), math.Log(mag[k]), math.Log(mag[k+1])
	den := a - 2*b + c
	if den >= 0 {
		return float64(k)
	}
	return float64(k) + 0.5*(a-c)/den
}

// halfPowerWidth is the width in bins between the points either side of k
// where power falls to half of its peak, linearly interpolated.
func halfPowerWidth(mag []float64, k int) float64 {
	half := mag[k] * mag[k] / 2
	power := func(i int) float64 { return mag[i] * mag[i] }

	left := 0.0
	for i := k; i > 0; i-- {
		if power(i-1) <= half {
			left = float64(i) - (power(i)-half)/(power(i)-power(i-1))
			break
		}
	}
	right := float64(len(mag) - 1)
	for i := k; i < len(mag)-1; i++ {
		if power(i+1) <= half {
			right = float64(i) + (power(i)-half)/(power(i)-power(i+1))
			break
		}
	}
	return right - left
}
