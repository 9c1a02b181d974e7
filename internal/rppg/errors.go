package rppg

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means a window is too short for a stage's minimum
	// requirement. The caller should wait for more samples and retry on the
	// next cycle.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDegenerateSignal means the input has zero variance, is rank
	// deficient, or contains non-finite values.
	ErrDegenerateSignal = errors.New("degenerate signal")
)

// ConfigurationError reports an invalid setting. It is fatal at
// initialisation and never produced per cycle.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Recoverable reports whether err is a per-cycle failure that leaves the
// pipeline usable.
func Recoverable(err error) bool {
	return errors.Is(err, ErrInsufficientData) || errors.Is(err, ErrDegenerateSignal)
}
