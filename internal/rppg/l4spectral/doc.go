// Package l4spectral owns Layer 4 (Spectral estimation) of the rPPG pipeline.
//
// Responsibilities: windowed FFT magnitude spectrum of a uniformly sampled
// waveform, restricted to the heart-rate band, and the dominant peak with
// its uncertainty and spectral concentration.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5+.
package l4spectral
