// Package synthetic generates colour-sample streams with a known pulse for
// development feeds and tests.
package synthetic

import (
	"math"
	"math/rand"

	"github.com/banshee-data/pulse.report/internal/rppg"
)

// Generator produces samples of a skin patch whose green channel carries a
// sinusoidal pulse. Red and blue share a common slow illumination drift plus
// their own noise, so they are correlated with each other but not pulsatile.
type Generator struct {
	FrameRate float64 // frames per second
	PulseHz   float64 // injected heart rate; 0 disables the pulse

	// Amplitudes are in intensity units on a 0-255 scale.
	PulseAmplitude float64
	NoiseAmplitude float64
	DriftAmplitude float64

	// Leak is the fraction of the pulse that also shows in red and blue.
	Leak float64

	rng   *rand.Rand
	frame int
}

// NewGenerator returns a generator with typical webcam amplitudes: a pulse of
// 0.5 on a baseline near 120, with noise and drift of the same order.
func NewGenerator(frameRate, pulseHz float64, seed int64) *Generator {
	return &Generator{
		FrameRate:      frameRate,
		PulseHz:        pulseHz,
		PulseAmplitude: 0.5,
		NoiseAmplitude: 0.2,
		DriftAmplitude: 0.8,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next sample and advances one frame.
func (g *Generator) Next() rppg.Sample {
	t := float64(g.frame) / g.FrameRate
	g.frame++

	pulse := 0.0
	if g.PulseHz > 0 {
		pulse = g.PulseAmplitude * math.Sin(2*math.Pi*g.PulseHz*t)
	}
	// common illumination drift well below the heart-rate band
	drift := g.DriftAmplitude * math.Sin(2*math.Pi*0.1*t)
	shared := g.NoiseAmplitude * g.rng.NormFloat64()

	return rppg.Sample{
		Time: t,
		R:    150 + drift + shared + g.Leak*pulse + g.NoiseAmplitude*g.rng.NormFloat64(),
		G:    120 + 0.5*drift + pulse + 0.5*g.NoiseAmplitude*g.rng.NormFloat64(),
		B:    90 + drift + shared + g.Leak*pulse + g.NoiseAmplitude*g.rng.NormFloat64(),
	}
}

// Window returns the next n samples.
func (g *Generator) Window(n int) rppg.Window {
	w := make(rppg.Window, n)
	for i := range w {
		w[i] = g.Next()
	}
	return w
}

// Frame returns the index of the next frame.
func (g *Generator) Frame() int { return g.frame }

// Sine returns n samples of a pure sinusoid at hz on every channel, sampled
// at fps. Useful where an exact frequency is needed.
func Sine(n int, fps, hz, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*hz*float64(i)/fps)
	}
	return out
}

// Noise returns n samples of zero-mean Gaussian noise.
func Noise(n int, sigma float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = sigma * rng.NormFloat64()
	}
	return out
}

// Times returns n uniformly spaced timestamps at fps.
func Times(n int, fps float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) / fps
	}
	return out
}
