package l4spectral

import (
	"io"
	"log"
	"sync/atomic"
)

var debugLogger atomic.Pointer[log.Logger]

// SetDebugLogger installs a debug logger that receives spectral diagnostics.
// Pass nil to disable debug logging.
func SetDebugLogger(w io.Writer) {
	if w == nil {
		debugLogger.Store(nil)
		return
	}
	debugLogger.Store(log.New(w, "[l4spectral] ", log.LstdFlags|log.Lmicroseconds))
}

func debugf(format string, args ...interface{}) {
	if l := debugLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}
