package l1samples

import (
	"math"
	"sync"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/gammazero/deque"
)

// Buffer accumulates samples for one heart-rate window.
//
// The buffer is bounded by its capacity (frames per heart-rate sample). Once
// full, further samples are dropped until Drain or Reset is called; the oldest
// samples are never overwritten, so a drained Window always covers one
// contiguous span of time. Samples that are not strictly later than the last
// accepted sample are dropped as well.
//
// Drain hands the buffered samples to the caller in a freshly allocated
// Window, so the producer can keep adding samples while the previous window
// is still being processed.
type Buffer struct {
	mu       sync.Mutex
	queue    deque.Deque[rppg.Sample]
	capacity int

	lastTime float64
	hasLast  bool

	dropped  uint64 // capacity reached
	rejected uint64 // out of order or non-finite
}

// NewBuffer creates a Buffer holding at most capacity samples.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, &rppg.ConfigurationError{Field: "frames_per_heart_rate_sample", Reason: "must be positive"}
	}
	return &Buffer{capacity: capacity}, nil
}

// Add appends one sample. It returns false when the sample was dropped.
func (b *Buffer) Add(s rppg.Sample) bool {
	if !finite(s.Time) || !finite(s.R) || !finite(s.G) || !finite(s.B) {
		b.mu.Lock()
		b.rejected++
		b.mu.Unlock()
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hasLast && s.Time <= b.lastTime {
		b.rejected++
		return false
	}
	if b.queue.Len() >= b.capacity {
		b.dropped++
		return false
	}
	b.queue.PushBack(s)
	b.lastTime = s.Time
	b.hasLast = true
	return true
}

// IsFull reports whether the buffer holds a complete window.
func (b *Buffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Len() >= b.capacity
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Len()
}

// Cap returns the window size.
func (b *Buffer) Cap() int { return b.capacity }

// Progress returns the filled fraction of the current window in [0, 1].
func (b *Buffer) Progress() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.queue.Len()) / float64(b.capacity)
}

// Dropped returns the number of samples discarded because the buffer was full.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Rejected returns the number of samples discarded for being out of order or
// non-finite.
func (b *Buffer) Rejected() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}

// Drain removes and returns all buffered samples and leaves the buffer empty.
// Time ordering continues across drains: the next accepted sample must still
// be later than the last drained one.
func (b *Buffer) Drain() rppg.Window {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := make(rppg.Window, b.queue.Len())
	for i := range w {
		w[i] = b.queue.At(i)
	}
	b.queue.Clear()
	return w
}

// Reset discards any partial window and the ordering reference. Used when a
// session is resumed or restarted so samples from before and after never
// share a window.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue.Clear()
	b.hasLast = false
	b.lastTime = 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
