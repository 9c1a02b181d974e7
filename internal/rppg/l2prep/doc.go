// Package l2prep owns Layer 2 (Pre-processing) of the rPPG pipeline:
// baseline removal and amplitude normalisation of the raw channel series.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2prep
