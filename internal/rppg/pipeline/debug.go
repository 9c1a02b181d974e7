package pipeline

import (
	"io"

	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/rppg/l3filter"
	"github.com/banshee-data/pulse.report/internal/rppg/l4spectral"
	"github.com/banshee-data/pulse.report/internal/rppg/l5ica"
)

// SetDebugLogger routes the per-cycle diagnostics of the pipeline and of
// every layer that emits them to w. Pass nil to turn them all off.
func SetDebugLogger(w io.Writer) {
	monitoring.SetDebugLogger(w)
	l3filter.SetDebugLogger(w)
	l4spectral.SetDebugLogger(w)
	l5ica.SetDebugLogger(w)
}
