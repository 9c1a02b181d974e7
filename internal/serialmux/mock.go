package serialmux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/pulse.report/internal/rppg/synthetic"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

var errPortClosed = errors.New("serial port closed")

// SyntheticPort behaves like a camera bridge fed by a synthetic skin patch.
// It answers START, STOP and RESUME and, while started, streams one CSV
// sample line per frame interval.
type SyntheticPort struct {
	PulseHz float64
	Seed    int64
	// CycleFrames, when positive, emits a cycle marker every CycleFrames
	// frames, as a bridge that counts frames itself would.
	CycleFrames int

	clock timeutil.Clock
	r     *io.PipeReader
	w     *io.PipeWriter
	cmds  chan string
	done  chan struct{}
	once  sync.Once
}

// NewSyntheticPort starts a synthetic bridge with a pulse of pulseHz.
func NewSyntheticPort(clock timeutil.Clock, pulseHz float64, seed int64, cycleFrames int) *SyntheticPort {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	r, w := io.Pipe()
	p := &SyntheticPort{
		PulseHz:     pulseHz,
		Seed:        seed,
		CycleFrames: cycleFrames,
		clock:       clock,
		r:           r,
		w:           w,
		cmds:        make(chan string, 8),
		done:        make(chan struct{}),
	}
	go p.loop()
	return p
}

// NewSyntheticSerialMux wraps a synthetic bridge in a SerialMux.
func NewSyntheticSerialMux(pulseHz float64, seed int64, cycleFrames int) *SerialMux[*SyntheticPort] {
	return NewSerialMux(NewSyntheticPort(nil, pulseHz, seed, cycleFrames))
}

func (p *SyntheticPort) Read(b []byte) (int, error) { return p.r.Read(b) }

// Write accepts newline separated commands.
func (p *SyntheticPort) Write(b []byte) (int, error) {
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		select {
		case p.cmds <- line:
		case <-p.done:
			return 0, errPortClosed
		}
	}
	return len(b), nil
}

func (p *SyntheticPort) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.r.Close()
		p.w.Close()
	})
	return nil
}

func (p *SyntheticPort) emit(line string) bool {
	_, err := io.WriteString(p.w, line+"\n")
	return err == nil
}

func (p *SyntheticPort) loop() {
	var (
		gen     *synthetic.Generator
		ticker  timeutil.Ticker
		tick    <-chan time.Time
		fps     float64
		counted int
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	startTicker := func() {
		stopTicker()
		ticker = p.clock.NewTicker(timeutil.FrameInterval(fps))
		tick = ticker.C()
	}
	defer stopTicker()

	for {
		select {
		case <-p.done:
			return
		case cmd := <-p.cmds:
			fields := strings.Fields(strings.ToUpper(cmd))
			arg := 0
			if len(fields) > 1 {
				arg, _ = strconv.Atoi(fields[1])
			}
			switch fields[0] {
			case CommandStart:
				if arg <= 0 {
					p.emit(fmt.Sprintf("# ERR %s", cmd))
					continue
				}
				fps = float64(arg)
				gen = synthetic.NewGenerator(fps, p.PulseHz, p.Seed)
				counted = 0
				startTicker()
			case CommandStop:
				stopTicker()
			case CommandResume:
				if gen == nil {
					p.emit(fmt.Sprintf("# ERR %s before START", cmd))
					continue
				}
				counted = 0
				startTicker()
			case CommandFormat:
			default:
				p.emit(fmt.Sprintf("# ERR unknown command %s", cmd))
				continue
			}
			p.emit("OK " + cmd)
		case <-tick:
			if !p.emit(FormatSample(gen.Next())) {
				return
			}
			counted++
			if p.CycleFrames > 0 && counted >= p.CycleFrames {
				counted = 0
				p.emit(fmt.Sprintf("%s %.2f", cycleKeyword, fps))
			}
		}
	}
}

// TestableSerialPort implements SerialPorter with configurable behaviour for
// testing. Reads are served from ReadBuffer and writes captured in
// WriteBuffer.
type TestableSerialPort struct {
	mu sync.Mutex

	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer

	// WriteError is returned by the next Write call if set
	WriteError error

	Closed bool

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errPortClosed
	}
	if t.BlockReads {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, io.EOF
		}
	}
	return t.ReadBuffer.Read(p)
}

func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	return t.WriteBuffer.Write(p)
}

func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
	t.readCond.Signal()
}

// Written returns everything written to the port.
func (t *TestableSerialPort) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteBuffer.String()
}
