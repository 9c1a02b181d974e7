// Package pipeline is the composition root of the rPPG pipeline.
//
// It wires the layer packages (L1 samples through L6 heart rate) into one
// recomputation cycle (Processor) and runs that cycle against a live sample
// stream (Pipeline): session state, the single recompute goroutine,
// snapshot publication and camera commands. The pipeline does not own
// signal-processing logic; it delegates to the layers.
package pipeline
