package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/pulse.report/internal/rppg"
)

// DefaultConfigPath is the path to the canonical pulse defaults file.
const DefaultConfigPath = "config/pulse.defaults.json"

// ICA input sources.
const (
	ICASourceNormalized = "normalized"
	ICASourceFiltered   = "filtered"
)

// PulseConfig is the pipeline configuration. Every field is optional; the
// Get* methods supply the default for a nil field, so partial files are
// safe. The JSON schema matches config/pulse.defaults.json.
type PulseConfig struct {
	// Sampling
	FrameRate                *float64 `json:"frame_rate,omitempty"`
	FramesPerHeartRateSample *int     `json:"frames_per_heart_rate_sample,omitempty"`
	PauseBetweenSamples      *bool    `json:"pause_between_samples,omitempty"`
	AutoCycle                *bool    `json:"auto_cycle,omitempty"`
	MaxGapFactor             *float64 `json:"max_gap_factor,omitempty"`

	// Pre-processing and filtering
	LowCutHz  *float64 `json:"low_cut_hz,omitempty"`
	HighCutHz *float64 `json:"high_cut_hz,omitempty"`
	Baseline  *string  `json:"baseline,omitempty"` // "mean" or "linear"
	Normalize *bool    `json:"normalize,omitempty"`

	// Spectral estimation
	FFTSize              *int     `json:"fft_size,omitempty"`
	MinConcentration     *float64 `json:"min_concentration,omitempty"`
	ConcentrationWidthHz *float64 `json:"concentration_width_hz,omitempty"`

	// ICA
	MinICASamples    *int     `json:"min_ica_samples,omitempty"`
	ICAMaxIterations *int     `json:"ica_max_iterations,omitempty"`
	ICATolerance     *float64 `json:"ica_tolerance,omitempty"`
	ICASource        *string  `json:"ica_source,omitempty"` // "normalized" or "filtered"

	// Aggregation
	PrimaryChannel *string `json:"primary_channel,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPulseConfig returns a PulseConfig with all fields nil.
func EmptyPulseConfig() *PulseConfig {
	return &PulseConfig{}
}

// DefaultPulseConfig returns a PulseConfig with every field set to its
// default, matching config/pulse.defaults.json.
func DefaultPulseConfig() *PulseConfig {
	c := EmptyPulseConfig()
	return &PulseConfig{
		FrameRate:                ptrFloat64(c.GetFrameRate()),
		FramesPerHeartRateSample: ptrInt(c.GetFramesPerHeartRateSample()),
		PauseBetweenSamples:      ptrBool(c.GetPauseBetweenSamples()),
		AutoCycle:                ptrBool(c.GetAutoCycle()),
		MaxGapFactor:             ptrFloat64(c.GetMaxGapFactor()),
		LowCutHz:                 ptrFloat64(c.GetLowCutHz()),
		HighCutHz:                ptrFloat64(c.GetHighCutHz()),
		Baseline:                 ptrString(c.GetBaseline()),
		Normalize:                ptrBool(c.GetNormalize()),
		FFTSize:                  ptrInt(c.GetFFTSize()),
		MinConcentration:         ptrFloat64(c.GetMinConcentration()),
		ConcentrationWidthHz:     ptrFloat64(c.GetConcentrationWidthHz()),
		MinICASamples:            ptrInt(c.GetMinICASamples()),
		ICAMaxIterations:         ptrInt(c.GetICAMaxIterations()),
		ICATolerance:             ptrFloat64(c.GetICATolerance()),
		ICASource:                ptrString(c.GetICASource()),
		PrimaryChannel:           ptrString(c.GetPrimaryChannel()),
	}
}

// LoadPulseConfig loads a PulseConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to defaults through the getters.
func LoadPulseConfig(path string) (*PulseConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPulseConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *PulseConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/rppg/pipeline/
		"../../../../" + DefaultConfigPath,    // deeper packages
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadPulseConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func invalid(field, format string, args ...interface{}) error {
	return &rppg.ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every set field and the relations between them. Errors
// are *rppg.ConfigurationError.
func (c *PulseConfig) Validate() error {
	fs := c.GetFrameRate()
	if !(fs > 0) || math.IsInf(fs, 0) {
		return invalid("frame_rate", "must be positive, got %v", fs)
	}
	if n := c.GetFramesPerHeartRateSample(); n <= 0 {
		return invalid("frames_per_heart_rate_sample", "must be positive, got %d", n)
	}
	if g := c.GetMaxGapFactor(); g != 0 && g < 1 {
		return invalid("max_gap_factor", "must be 0 (off) or at least 1, got %v", g)
	}

	low, high := c.GetLowCutHz(), c.GetHighCutHz()
	if !(low > 0) {
		return invalid("low_cut_hz", "must be positive, got %v", low)
	}
	if !(high > low) {
		return invalid("high_cut_hz", "must exceed low_cut_hz %v, got %v", low, high)
	}
	if !(high < fs/2) {
		return invalid("high_cut_hz", "must be below half the frame rate (%v Hz), got %v", fs/2, high)
	}
	switch c.GetBaseline() {
	case "mean", "linear":
	default:
		return invalid("baseline", "must be \"mean\" or \"linear\", got %q", c.GetBaseline())
	}

	if n := c.GetFFTSize(); n <= 0 || n&(n-1) != 0 {
		return invalid("fft_size", "must be a positive power of two, got %d", n)
	}
	if m := c.GetMinConcentration(); m < 0 || m > 1 {
		return invalid("min_concentration", "must be within [0,1], got %v", m)
	}
	if w := c.GetConcentrationWidthHz(); w < 0 {
		return invalid("concentration_width_hz", "must not be negative, got %v", w)
	}

	if n := c.GetMinICASamples(); n <= 0 {
		return invalid("min_ica_samples", "must be positive, got %d", n)
	}
	if n := c.GetICAMaxIterations(); n <= 0 {
		return invalid("ica_max_iterations", "must be positive, got %d", n)
	}
	if tol := c.GetICATolerance(); !(tol > 0) {
		return invalid("ica_tolerance", "must be positive, got %v", tol)
	}
	switch c.GetICASource() {
	case ICASourceNormalized, ICASourceFiltered:
	default:
		return invalid("ica_source", "must be %q or %q, got %q", ICASourceNormalized, ICASourceFiltered, c.GetICASource())
	}

	if _, err := rppg.ParseChannel(c.GetPrimaryChannel()); err != nil {
		return invalid("primary_channel", "%v", err)
	}
	return nil
}

// GetFrameRate returns the nominal camera frame rate in frames per second.
func (c *PulseConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 30
	}
	return *c.FrameRate
}

// GetFramesPerHeartRateSample returns the window size in frames.
func (c *PulseConfig) GetFramesPerHeartRateSample() int {
	if c.FramesPerHeartRateSample == nil {
		return 300
	}
	return *c.FramesPerHeartRateSample
}

// GetPauseBetweenSamples reports whether sampling pauses after each cycle.
func (c *PulseConfig) GetPauseBetweenSamples() bool {
	if c.PauseBetweenSamples == nil {
		return false
	}
	return *c.PauseBetweenSamples
}

// GetAutoCycle reports whether a full buffer triggers a cycle without
// waiting for the camera's cycle-complete signal.
func (c *PulseConfig) GetAutoCycle() bool {
	if c.AutoCycle == nil {
		return true
	}
	return *c.AutoCycle
}

// GetMaxGapFactor returns the frame-interval multiple above which a gap is
// counted. 0 disables gap counting.
func (c *PulseConfig) GetMaxGapFactor() float64 {
	if c.MaxGapFactor == nil {
		return 1.5
	}
	return *c.MaxGapFactor
}

func (c *PulseConfig) GetLowCutHz() float64 {
	if c.LowCutHz == nil {
		return 0.7
	}
	return *c.LowCutHz
}

func (c *PulseConfig) GetHighCutHz() float64 {
	if c.HighCutHz == nil {
		return 4.0
	}
	return *c.HighCutHz
}

func (c *PulseConfig) GetBaseline() string {
	if c.Baseline == nil || *c.Baseline == "" {
		return "mean"
	}
	return *c.Baseline
}

func (c *PulseConfig) GetNormalize() bool {
	if c.Normalize == nil {
		return true
	}
	return *c.Normalize
}

func (c *PulseConfig) GetFFTSize() int {
	if c.FFTSize == nil {
		return 1024
	}
	return *c.FFTSize
}

func (c *PulseConfig) GetMinConcentration() float64 {
	if c.MinConcentration == nil {
		return 0.5
	}
	return *c.MinConcentration
}

func (c *PulseConfig) GetConcentrationWidthHz() float64 {
	if c.ConcentrationWidthHz == nil {
		return 0.15
	}
	return *c.ConcentrationWidthHz
}

func (c *PulseConfig) GetMinICASamples() int {
	if c.MinICASamples == nil {
		return 90
	}
	return *c.MinICASamples
}

func (c *PulseConfig) GetICAMaxIterations() int {
	if c.ICAMaxIterations == nil {
		return 200
	}
	return *c.ICAMaxIterations
}

func (c *PulseConfig) GetICATolerance() float64 {
	if c.ICATolerance == nil {
		return 1e-4
	}
	return *c.ICATolerance
}

func (c *PulseConfig) GetICASource() string {
	if c.ICASource == nil || *c.ICASource == "" {
		return ICASourceFiltered
	}
	return *c.ICASource
}

func (c *PulseConfig) GetPrimaryChannel() string {
	if c.PrimaryChannel == nil || *c.PrimaryChannel == "" {
		return "green"
	}
	return *c.PrimaryChannel
}
