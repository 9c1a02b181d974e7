// Package l3filter owns Layer 3 (Temporal filter) of the rPPG pipeline.
//
// Responsibilities: zero-phase band-pass filtering of each pre-processed
// channel to the plausible heart-rate band, and time-domain beat statistics
// (local maxima and inter-beat intervals) on the filtered waveform.
//
// Dependency rule: L3 may depend on L1/L2, but never on L4+.
package l3filter
