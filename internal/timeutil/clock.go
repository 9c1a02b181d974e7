// Package timeutil provides a testable abstraction over the time
// operations used by the pulse service: wall-clock reads, frame tickers and
// session stopwatches.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration

	// NewTicker returns a Ticker that delivers the time every d.
	NewTicker(d time.Duration) Ticker
}

// Ticker holds a channel that delivers ticks at intervals.
type Ticker interface {
	// C returns the channel on which the ticks are delivered.
	C() <-chan time.Time

	// Stop turns off the ticker.
	Stop()
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// NewTicker returns a ticker backed by time.Ticker.
func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }
func (t *realTicker) Stop()               { t.ticker.Stop() }

// FrameInterval converts a frame rate into the period between frames.
// Non-positive rates yield zero.
func FrameInterval(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

// Stopwatch measures seconds elapsed since a session started. Sample
// timestamps are taken from it so they are monotonic from session start.
type Stopwatch struct {
	clock Clock

	mu    sync.Mutex
	start time.Time
}

// NewStopwatch starts a stopwatch on clock. A nil clock uses RealClock.
func NewStopwatch(clock Clock) *Stopwatch {
	if clock == nil {
		clock = RealClock{}
	}
	return &Stopwatch{clock: clock, start: clock.Now()}
}

// Restart resets the origin to now.
func (s *Stopwatch) Restart() {
	s.mu.Lock()
	s.start = s.clock.Now()
	s.mu.Unlock()
}

// Started returns the origin.
func (s *Stopwatch) Started() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

// Seconds returns the time since the origin in seconds.
func (s *Stopwatch) Seconds() float64 {
	s.mu.Lock()
	start := s.start
	s.mu.Unlock()
	return s.clock.Since(start).Seconds()
}
