// Package rppg owns the shared data model of the remote-photoplethysmography
// pipeline: per-frame colour samples, sampling windows, named series and
// per-channel peak estimates.
//
// Processing is split into layer packages:
//
//	l1samples   sample buffer, window validation, frame-rate measurement
//	l2prep      baseline removal and normalisation
//	l3filter    heart-rate band-pass and time-domain peak statistics
//	l4spectral  FFT magnitude spectrum and dominant-peak estimation
//	l5ica       blind-source separation of the colour channels
//	l6heartrate channel selection and heart-rate aggregation
//
// Dependency rule: layer N may import this package and layers below N, never
// above. The pipeline package is the composition root and the only place
// where all layers meet.
package rppg
