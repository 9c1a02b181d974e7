package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/google/go-cmp/cmp"
)

func TestDefaultPulseConfig(t *testing.T) {
	cfg := DefaultPulseConfig()

	if cfg.FrameRate == nil || *cfg.FrameRate != 30 {
		t.Errorf("Expected FrameRate 30, got %v", cfg.FrameRate)
	}
	if cfg.FramesPerHeartRateSample == nil || *cfg.FramesPerHeartRateSample != 300 {
		t.Errorf("Expected FramesPerHeartRateSample 300, got %v", cfg.FramesPerHeartRateSample)
	}
	if cfg.GetLowCutHz() != 0.7 || cfg.GetHighCutHz() != 4.0 {
		t.Errorf("band = %v-%v, want 0.7-4.0", cfg.GetLowCutHz(), cfg.GetHighCutHz())
	}
	if cfg.GetICASource() != ICASourceFiltered {
		t.Errorf("GetICASource() = %q, want %q", cfg.GetICASource(), ICASourceFiltered)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestDefaultsFileMatchesDefaultPulseConfig(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultPulseConfig(), fromFile); diff != "" {
		t.Errorf("%s differs from DefaultPulseConfig (-code +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestLoadPulseConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pulse.json")

	testJSON := `{
  "frame_rate": 25,
  "frames_per_heart_rate_sample": 250,
  "pause_between_samples": true,
  "baseline": "linear"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadPulseConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetFrameRate() != 25 {
		t.Errorf("GetFrameRate() = %v, want 25", cfg.GetFrameRate())
	}
	if cfg.GetFramesPerHeartRateSample() != 250 {
		t.Errorf("GetFramesPerHeartRateSample() = %d, want 250", cfg.GetFramesPerHeartRateSample())
	}
	if !cfg.GetPauseBetweenSamples() {
		t.Error("GetPauseBetweenSamples() = false, want true")
	}
	if cfg.GetBaseline() != "linear" {
		t.Errorf("GetBaseline() = %q, want linear", cfg.GetBaseline())
	}
	// omitted fields keep their defaults
	if cfg.FFTSize != nil || cfg.GetFFTSize() != 1024 {
		t.Errorf("FFTSize = %v / %d, want nil / 1024", cfg.FFTSize, cfg.GetFFTSize())
	}
}

func TestLoadPulseConfigRejects(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("pulse.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "absent.json"), "failed to stat"},
		{"bad json", write("bad.json", "{"), "failed to parse"},
		{"too large", write("big.json", "{\"x\":\""+strings.Repeat("a", 1024*1024)+"\"}"), "too large"},
		{"invalid value", write("zero.json", `{"frame_rate": 0}`), "frame_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPulseConfig(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   PulseConfig
		field string
	}{
		{"negative frame rate", PulseConfig{FrameRate: ptrFloat64(-1)}, "frame_rate"},
		{"zero window", PulseConfig{FramesPerHeartRateSample: ptrInt(0)}, "frames_per_heart_rate_sample"},
		{"inverted band", PulseConfig{LowCutHz: ptrFloat64(3), HighCutHz: ptrFloat64(2)}, "high_cut_hz"},
		{"band above nyquist", PulseConfig{FrameRate: ptrFloat64(6)}, "high_cut_hz"},
		{"unknown baseline", PulseConfig{Baseline: ptrString("median")}, "baseline"},
		{"fft not power of two", PulseConfig{FFTSize: ptrInt(1000)}, "fft_size"},
		{"concentration above one", PulseConfig{MinConcentration: ptrFloat64(2)}, "min_concentration"},
		{"negative ica minimum", PulseConfig{MinICASamples: ptrInt(-1)}, "min_ica_samples"},
		{"zero ica minimum", PulseConfig{MinICASamples: ptrInt(0)}, "min_ica_samples"},
		{"unknown ica source", PulseConfig{ICASource: ptrString("raw")}, "ica_source"},
		{"unknown primary", PulseConfig{PrimaryChannel: ptrString("infrared")}, "primary_channel"},
		{"gap factor below one", PulseConfig{MaxGapFactor: ptrFloat64(0.5)}, "max_gap_factor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			var cfgErr *rppg.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *rppg.ConfigurationError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}

	if err := EmptyPulseConfig().Validate(); err != nil {
		t.Errorf("empty config should validate through defaults: %v", err)
	}
}
