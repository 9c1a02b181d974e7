// Package l1samples owns Layer 1 (Samples) of the rPPG pipeline.
//
// Responsibilities: bounded accumulation of per-frame colour samples into
// windows, window validation, frame-rate measurement and resampling onto a
// uniform time grid.
//
// Dependency rule: L1 depends only on the rppg data model.
package l1samples
