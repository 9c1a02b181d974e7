// Package units provides heart-rate unit conversion and the label formats
// shown to users. The pipeline works in Hz throughout; BPM exists only here.
package units

import (
	"fmt"
	"math"
)

// Unit constants
const (
	Hz  = "hz"
	BPM = "bpm"
)

// Missing is shown in place of a rate when there is no reliable estimate.
const Missing = "--"

// ValidUnits contains all valid unit values
var ValidUnits = []string{Hz, BPM}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "hz, bpm"
}

// HzToBPM converts a frequency to beats per minute.
func HzToBPM(hz float64) float64 { return hz * 60 }

// BPMToHz converts beats per minute to a frequency.
func BPMToHz(bpm float64) float64 { return bpm / 60 }

// ConvertRate converts a rate in Hz to the target units. Unknown units
// leave the value in Hz.
func ConvertRate(hz float64, targetUnits string) float64 {
	switch targetUnits {
	case BPM:
		return HzToBPM(hz)
	default:
		return hz
	}
}

func usable(hz float64) bool {
	return hz > 0 && !math.IsInf(hz, 0)
}

// FormatRate renders a heart rate in Hz as whole BPM, or Missing when hz is
// not a usable rate.
func FormatRate(hz float64) string {
	if !usable(hz) {
		return Missing
	}
	return fmt.Sprintf("%.0f", HzToBPM(hz))
}

// FormatPeak renders a peak frequency and its spread as "72.0 +/- 1.2" in
// BPM, or Missing when there is no peak.
func FormatPeak(hz, stdDevHz float64) string {
	if !usable(hz) {
		return Missing
	}
	return fmt.Sprintf("%.1f +/- %.1f", HzToBPM(hz), HzToBPM(stdDevHz))
}
