// Package l5ica owns Layer 5 (ICA refinement) of the rPPG pipeline.
//
// Responsibilities: blind-source separation of the colour channels into
// independent components, mapping components onto colour roles and picking
// the pulsatile one. Components are not assumed to come out in any fixed
// order.
//
// Dependency rule: L5 may depend on L1-L4 through interfaces, but never on
// L6 or the pipeline.
package l5ica
