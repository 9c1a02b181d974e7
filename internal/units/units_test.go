package units

import (
	"math"
	"testing"
)

func TestConvertRate(t *testing.T) {
	tests := []struct {
		name     string
		hz       float64
		units    string
		expected float64
	}{
		{"resting pulse to bpm", 1.2, BPM, 72},
		{"hz stays hz", 1.2, Hz, 1.2},
		{"unknown units default to hz", 1.2, "unknown", 1.2},
		{"zero", 0, BPM, 0},
		{"band edge 4 Hz", 4, BPM, 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertRate(tt.hz, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertRate(%f, %s) = %f, want %f", tt.hz, tt.units, result, tt.expected)
			}
		})
	}
}

func TestBPMToHzRoundTrip(t *testing.T) {
	if got := BPMToHz(HzToBPM(1.37)); math.Abs(got-1.37) > 1e-12 {
		t.Errorf("round trip = %v, want 1.37", got)
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false", u)
		}
	}
	if IsValid("mph") {
		t.Error("IsValid(\"mph\") = true")
	}
	if GetValidUnitsString() != "hz, bpm" {
		t.Errorf("GetValidUnitsString() = %q", GetValidUnitsString())
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		hz   float64
		want string
	}{
		{1.2, "72"},
		{1.004, "60"},
		{0, Missing},
		{-1, Missing},
		{math.NaN(), Missing},
		{math.Inf(1), Missing},
	}
	for _, tt := range tests {
		if got := FormatRate(tt.hz); got != tt.want {
			t.Errorf("FormatRate(%v) = %q, want %q", tt.hz, got, tt.want)
		}
	}
}

func TestFormatPeak(t *testing.T) {
	if got := FormatPeak(1.2, 0.02); got != "72.0 +/- 1.2" {
		t.Errorf("FormatPeak = %q", got)
	}
	if got := FormatPeak(0, 0); got != Missing {
		t.Errorf("FormatPeak(0) = %q, want %q", got, Missing)
	}
}
