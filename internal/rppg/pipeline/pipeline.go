package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/l1samples"
	"github.com/banshee-data/pulse.report/internal/timeutil"
	"github.com/google/uuid"
)

var (
	// ErrAlreadyRunning is returned by Run when the recompute loop is
	// already active.
	ErrAlreadyRunning = errors.New("pipeline already running")

	// ErrInvalidTransition is returned when a session command does not
	// apply to the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used to stamp samples and results.
func WithClock(c timeutil.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithCamera sets the controller that receives camera commands.
func WithCamera(c CameraController) Option {
	return func(p *Pipeline) { p.camera = c }
}

// WithPublisher adds a sink that receives every successful cycle.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publishers = append(p.publishers, pub) }
}

type cycleRequest struct {
	fps        float64
	generation uint64
}

// Pipeline runs recomputation cycles against a live sample stream.
//
// Samples arrive through OnFrame (or OnPixels) from the capture side; a
// single goroutine started by Run drains the buffer and recomputes when it
// fills or when OnCycleComplete is called. Requests arriving while a cycle
// is pending are coalesced, so at most one recomputation is in flight. Each
// successful cycle replaces the published CycleResult in one atomic step;
// a failed cycle leaves the previous one in place.
type Pipeline struct {
	cfg        *config.PulseConfig
	proc       *Processor
	buffer     *l1samples.Buffer
	clock      timeutil.Clock
	stopwatch  *timeutil.Stopwatch
	camera     CameraController
	publishers []Publisher

	mu          sync.Mutex
	state       State
	sessionID   string
	generation  uint64
	cycleCancel context.CancelFunc
	frames      uint64
	lastErr     string
	lastErrAt   time.Time

	running  atomic.Bool
	requests chan cycleRequest
	latest   atomic.Pointer[CycleResult]
	cycles   atomic.Uint64
	failures atomic.Uint64

	subscriberMu sync.Mutex
	subscribers  map[string]chan *CycleResult
}

// New validates cfg and builds a stopped pipeline. Call Run to start the
// recompute loop and StartSession (or Toggle) to begin accepting samples.
func New(cfg *config.PulseConfig, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.EmptyPulseConfig()
	}
	proc, err := NewProcessor(cfg)
	if err != nil {
		return nil, err
	}
	buf, err := l1samples.NewBuffer(cfg.GetFramesPerHeartRateSample())
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:         cfg,
		proc:        proc,
		buffer:      buf,
		clock:       timeutil.RealClock{},
		camera:      NopCamera{},
		requests:    make(chan cycleRequest, 1),
		subscribers: make(map[string]chan *CycleResult),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.proc.clock = p.clock
	p.stopwatch = timeutil.NewStopwatch(p.clock)
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() *config.PulseConfig { return p.cfg }

// Run processes cycle requests until ctx is done. It returns ctx.Err().
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.cycleCancel != nil {
				p.cycleCancel()
			}
			p.mu.Unlock()
			return ctx.Err()
		case req := <-p.requests:
			p.runCycle(ctx, req)
		}
	}
}

// OnFrame offers one sample to the current window. Samples are dropped,
// returning false, unless a session is running, and when the buffer is
// full or the sample is out of time order.
func (p *Pipeline) OnFrame(s rppg.Sample) bool {
	// The state check and the append share p.mu so no sample lands after a
	// concurrent Pause, Stop or Resume has taken effect.
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return false
	}
	p.frames++
	added := p.buffer.Add(s)
	full := added && p.buffer.IsFull()
	p.mu.Unlock()

	if !added {
		return false
	}
	if full && p.cfg.GetAutoCycle() {
		p.requestCycle(0)
	}
	return true
}

// OnPixels stamps a region-of-interest mean with the time since the session
// started and offers it as a sample.
func (p *Pipeline) OnPixels(r, g, b float64) bool {
	return p.OnFrame(rppg.Sample{Time: p.stopwatch.Seconds(), R: r, G: g, B: b})
}

// OnCycleComplete asks for a recomputation of the buffered window with the
// frame rate the camera measured (0 if unknown).
func (p *Pipeline) OnCycleComplete(actualFPS float64) {
	p.requestCycle(actualFPS)
}

func (p *Pipeline) requestCycle(fps float64) {
	p.mu.Lock()
	req := cycleRequest{fps: fps, generation: p.generation}
	p.mu.Unlock()

	select {
	case p.requests <- req:
	default:
		monitoring.Debugf("cycle request coalesced with pending request")
	}
}

func (p *Pipeline) runCycle(ctx context.Context, req cycleRequest) {
	p.mu.Lock()
	if req.generation != p.generation || p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.cycleCancel = cancel
	gen := p.generation
	session := p.sessionID
	p.mu.Unlock()

	window := p.buffer.Drain()
	dropped, rejected := p.buffer.Dropped(), p.buffer.Rejected()
	p.afterDrain(gen)

	res, err := p.proc.Process(cycleCtx, window, req.fps)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycleCancel = nil
	if gen != p.generation {
		monitoring.Debugf("discarding cycle from ended session %s", session)
		return
	}
	if err != nil {
		p.failures.Add(1)
		p.lastErr = err.Error()
		p.lastErrAt = p.clock.Now()
		if rppg.Recoverable(err) {
			monitoring.Debugf("cycle skipped: %v", err)
		} else {
			monitoring.Logf("pulse: cycle failed: %v", err)
		}
		return
	}

	res.SessionID = session
	res.Cycle = p.cycles.Add(1)
	res.Window.Dropped = dropped
	res.Window.Rejected = rejected
	p.latest.Store(res)
	p.lastErr = ""

	p.broadcast(res)
	for _, pub := range p.publishers {
		if err := pub.PublishCycle(res); err != nil {
			monitoring.Logf("pulse: publish cycle %d: %v", res.Cycle, err)
		}
	}
}

// afterDrain starts the next window: either pause until resumed or keep
// sampling straight away.
func (p *Pipeline) afterDrain(gen uint64) {
	p.mu.Lock()
	if gen != p.generation || p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	if p.cfg.GetPauseBetweenSamples() {
		p.state = StatePaused
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	if err := p.camera.ResumeCamera(p.cfg.GetFramesPerHeartRateSample()); err != nil {
		monitoring.Logf("pulse: resume camera: %v", err)
	}
}

// StartSession begins a new session from the stopped state and returns its
// id.
func (p *Pipeline) StartSession() (string, error) {
	p.mu.Lock()
	if p.state != StateStopped {
		state := p.state
		p.mu.Unlock()
		return "", fmt.Errorf("start session while %s: %w", state, ErrInvalidTransition)
	}
	p.generation++
	p.sessionID = uuid.NewString()
	p.state = StateRunning
	p.frames = 0
	p.buffer.Reset()
	p.stopwatch.Restart()
	id := p.sessionID
	p.mu.Unlock()

	monitoring.Logf("pulse: session %s started", id)
	if err := p.camera.StartCamera(int(p.cfg.GetFrameRate())); err != nil {
		return id, fmt.Errorf("start camera: %w", err)
	}
	return id, nil
}

// StopSession ends the session. The partial window and any in-flight
// computation are discarded; the last completed result stays readable.
func (p *Pipeline) StopSession() error {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return fmt.Errorf("stop session while stopped: %w", ErrInvalidTransition)
	}
	p.generation++
	p.state = StateStopped
	if p.cycleCancel != nil {
		p.cycleCancel()
	}
	id := p.sessionID
	p.buffer.Reset()
	p.mu.Unlock()

	select {
	case <-p.requests:
	default:
	}
	monitoring.Logf("pulse: session %s stopped", id)
	if err := p.camera.StopCamera(); err != nil {
		return fmt.Errorf("stop camera: %w", err)
	}
	return nil
}

// Pause stops accepting samples without ending the session.
func (p *Pipeline) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateRunning {
		return fmt.Errorf("pause while %s: %w", p.state, ErrInvalidTransition)
	}
	p.state = StatePaused
	return nil
}

// Resume discards any partial window collected before the pause and starts
// accepting samples for a fresh one.
func (p *Pipeline) Resume() error {
	p.mu.Lock()
	if p.state != StatePaused {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("resume while %s: %w", state, ErrInvalidTransition)
	}
	p.buffer.Reset()
	p.state = StateRunning
	p.mu.Unlock()

	if err := p.camera.ResumeCamera(p.cfg.GetFramesPerHeartRateSample()); err != nil {
		return fmt.Errorf("resume camera: %w", err)
	}
	return nil
}

// Toggle is the single start/stop/resume control: a stopped session
// starts, a running one stops, a paused one resumes. It returns the new
// state.
func (p *Pipeline) Toggle() (State, error) {
	var err error
	switch p.State() {
	case StateStopped:
		_, err = p.StartSession()
	case StateRunning:
		err = p.StopSession()
	case StatePaused:
		err = p.Resume()
	}
	return p.State(), err
}

// State returns the current session state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Latest returns the most recent successful cycle. The result is shared and
// must not be modified.
func (p *Pipeline) Latest() (*CycleResult, bool) {
	r := p.latest.Load()
	return r, r != nil
}

// Series returns a copy of one stage's series from the latest cycle.
func (p *Pipeline) Series(kind rppg.SeriesKind) (rppg.ChannelSeries, bool) {
	r := p.latest.Load()
	if r == nil {
		return nil, false
	}
	cs, ok := r.Series[kind]
	if !ok {
		return nil, false
	}
	return cs.Clone(), true
}

// Peaks returns a copy of the spectral peak estimates of one path.
func (p *Pipeline) Peaks(path rppg.Path) (rppg.ChannelPeaks, bool) {
	r := p.latest.Load()
	if r == nil {
		return nil, false
	}
	cp, ok := r.Peaks[path]
	if !ok {
		return nil, false
	}
	return cp.Clone(), true
}

// HeartRate returns the heart rates of the latest cycle.
func (p *Pipeline) HeartRate() (rppg.HeartRateResult, bool) {
	r := p.latest.Load()
	if r == nil {
		return rppg.HeartRateResult{}, false
	}
	return r.HeartRate, true
}

// Status is a point-in-time view of the session for presentation.
type Status struct {
	State       State     `json:"state"`
	SessionID   string    `json:"session_id,omitempty"`
	Frame       uint64    `json:"frame"`
	Buffered    int       `json:"buffered"`
	Capacity    int       `json:"capacity"`
	Progress    float64   `json:"progress"`
	Dropped     uint64    `json:"dropped"`
	Rejected    uint64    `json:"rejected"`
	Cycles      uint64    `json:"cycles"`
	Failures    uint64    `json:"failures"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at,omitempty"`
}

// Status reports session state and counters.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	st := Status{
		State:       p.state,
		SessionID:   p.sessionID,
		Frame:       p.frames,
		LastError:   p.lastErr,
		LastErrorAt: p.lastErrAt,
	}
	p.mu.Unlock()

	st.Buffered = p.buffer.Len()
	st.Capacity = p.buffer.Cap()
	st.Progress = p.buffer.Progress()
	st.Dropped = p.buffer.Dropped()
	st.Rejected = p.buffer.Rejected()
	st.Cycles = p.cycles.Load()
	st.Failures = p.failures.Load()
	if r := p.latest.Load(); r != nil {
		st.LastCycleAt = r.ComputedAt
	}
	return st
}

// Subscribe returns a channel that receives each new cycle. A subscriber
// that falls behind sees only the newest cycle. The id is used to
// unsubscribe.
func (p *Pipeline) Subscribe() (string, <-chan *CycleResult) {
	id := uuid.NewString()
	ch := make(chan *CycleResult, 1)
	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()
	p.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (p *Pipeline) Unsubscribe(id string) {
	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
}

func (p *Pipeline) broadcast(r *CycleResult) {
	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- r:
			continue
		default:
		}
		// replace the stale cycle the subscriber has not read yet
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- r:
		default:
		}
	}
}
