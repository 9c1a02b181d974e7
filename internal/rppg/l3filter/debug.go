package l3filter

import (
	"io"
	"log"
	"sync/atomic"
)

var debugLogger atomic.Pointer[log.Logger]

// SetDebugLogger installs a debug logger that receives filter diagnostics.
// Pass nil to disable debug logging.
func SetDebugLogger(w io.Writer) {
	if w == nil {
		debugLogger.Store(nil)
		return
	}
	debugLogger.Store(log.New(w, "[l3filter] ", log.LstdFlags|log.Lmicroseconds))
}

func debugf(format string, args ...interface{}) {
	if l := debugLogger.Load(); l != nil {
		l.Printf(format, args...)
	}
}
