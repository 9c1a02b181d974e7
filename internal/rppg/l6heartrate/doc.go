// Package l6heartrate owns Layer 6 (Heart-rate aggregation) of the rPPG
// pipeline: per-path channel selection with fallback, producing the
// HeartRateResult exposed to presentation.
//
// Dependency rule: L6 depends only on the rppg data model.
package l6heartrate
