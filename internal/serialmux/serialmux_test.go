package serialmux

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"go.bug.st/serial"
)

// localHostRequest creates an httptest request that appears to come from localhost.
// This bypasses tsweb.AllowDebugAccess which checks for loopback IPs.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

type recordingSink struct {
	mu      sync.Mutex
	samples []rppg.Sample
	cycles  []float64
}

func (s *recordingSink) OnFrame(sample rppg.Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return true
}

func (s *recordingSink) OnCycleComplete(fps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, fps)
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples), len(s.cycles)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSerialMux_MonitorFansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	id1, ch1 := mux.Subscribe()
	_, ch2 := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddReadData([]byte("0.1,1,2,3\n\n  CYCLE 30 \n"))

	for _, ch := range []chan string{ch1, ch2} {
		for _, want := range []string{"0.1,1,2,3", "CYCLE 30"} {
			select {
			case got := <-ch:
				if got != want {
					t.Errorf("line = %q, want %q", got, want)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	mux.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Error("channel still open after Unsubscribe")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestSerialMux_MonitorEOF(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("# hello\n"))
	mux := NewSerialMux(port)
	if err := mux.Monitor(context.Background()); err != nil {
		t.Errorf("Monitor() at EOF = %v, want nil", err)
	}
}

func TestSerialMux_SendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.SendCommand("START 30"); err != nil {
		t.Fatal(err)
	}
	if err := mux.SendCommand("STOP\n"); err != nil {
		t.Fatal(err)
	}
	if got, want := port.Written(), "START 30\nSTOP\n"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}

	port.WriteError = io.ErrShortWrite
	if err := mux.SendCommand("STOP"); !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("SendCommand() = %v, want ErrShortWrite", err)
	}
}

func TestSerialMux_Initialize(t *testing.T) {
	port := NewTestableSerialPort()
	if err := NewSerialMux(port).Initialize(); err != nil {
		t.Fatal(err)
	}
	if got, want := port.Written(), "STOP\nFORMAT CSV\n"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestSerialMux_Close(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()
	if err := mux.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel open after Close")
	}
	if !port.Closed {
		t.Error("port not closed")
	}
}

func TestCamera_Commands(t *testing.T) {
	port := NewTestableSerialPort()
	cam := NewCamera(NewSerialMux(port))

	if err := cam.StartCamera(30); err != nil {
		t.Fatal(err)
	}
	if err := cam.ResumeCamera(300); err != nil {
		t.Fatal(err)
	}
	if err := cam.StopCamera(); err != nil {
		t.Fatal(err)
	}
	if got, want := port.Written(), "START 30\nRESUME 300\nSTOP\n"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}

	if err := cam.StartCamera(0); err == nil {
		t.Error("StartCamera(0) succeeded")
	}
	if err := cam.ResumeCamera(-1); err == nil {
		t.Error("ResumeCamera(-1) succeeded")
	}
}

func TestForward(t *testing.T) {
	mux := NewDisabledSerialMux()
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Forward(ctx, mux, sink) }()

	// wait for the subscription, then push lines through it directly
	var ch chan string
	waitFor(t, func() bool {
		mux.mu.Lock()
		defer mux.mu.Unlock()
		for _, c := range mux.subscribers {
			ch = c
		}
		return ch != nil
	})
	for _, line := range []string{"0.1,1,2,3", "garbage,,,", "0.2,1,2,3", "CYCLE 29.5", `{"exposure":9}`} {
		ch <- line
	}
	waitFor(t, func() bool {
		n, c := sink.counts()
		return n == 2 && c == 1
	})
	if got := CurrentState()["exposure"]; got != float64(9) {
		t.Errorf("CurrentState()[exposure] = %v, want 9", got)
	}
	if sink.cycles[0] != 29.5 {
		t.Errorf("cycle fps = %v, want 29.5", sink.cycles[0])
	}

	if err := mux.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Forward() = %v, want nil after close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Forward did not return after Close")
	}
}

func TestSyntheticPort_StreamsAfterStart(t *testing.T) {
	mux := NewSerialMux(NewSyntheticPort(nil, 1.2, 1, 5))
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	sink := &recordingSink{}
	go Forward(ctx, mux, sink)

	cam := NewCamera(mux)
	if err := cam.StartCamera(100); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		n, c := sink.counts()
		return n >= 10 && c >= 2
	})
	if err := cam.StopCamera(); err != nil {
		t.Fatal(err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for i := 1; i < len(sink.samples); i++ {
		if sink.samples[i].Time <= sink.samples[i-1].Time {
			t.Fatalf("sample %d at %v not after %v", i, sink.samples[i].Time, sink.samples[i-1].Time)
		}
	}
	if sink.cycles[0] != 100 {
		t.Errorf("cycle fps = %v, want 100", sink.cycles[0])
	}
}

func TestAttachAdminRoutes_SendCommandAPI(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name           string
		method         string
		formData       url.Values
		expectedStatus int
		bodyContains   string
	}{
		{"valid POST with command", http.MethodPost, url.Values{"command": {"START 30"}}, http.StatusOK, "START 30"},
		{"POST with empty command", http.MethodPost, url.Values{"command": {""}}, http.StatusBadRequest, "Missing command"},
		{"POST with whitespace-only command", http.MethodPost, url.Values{"command": {"   "}}, http.StatusBadRequest, "Missing command"},
		{"GET method not allowed", http.MethodGet, nil, http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.formData != nil {
				body = strings.NewReader(tt.formData.Encode())
			}
			req := localHostRequest(tt.method, "/debug/send-command-api", body)
			if tt.formData != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}

			w := httptest.NewRecorder()
			httpMux.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.bodyContains) {
				t.Errorf("body %q does not contain %q", w.Body.String(), tt.bodyContains)
			}
		})
	}

	if got := port.Written(); got != "START 30\n" {
		t.Errorf("written = %q", got)
	}
}

func TestAttachAdminRoutes_SendCommandPage(t *testing.T) {
	httpMux := http.NewServeMux()
	NewSerialMux(NewTestableSerialPort()).AttachAdminRoutes(httpMux)

	w := httptest.NewRecorder()
	httpMux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/send-command", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<form") {
		t.Error("Response doesn't appear to be the command form")
	}
}

func TestAttachAdminRoutes_TailMethod(t *testing.T) {
	httpMux := http.NewServeMux()
	NewSerialMux(NewTestableSerialPort()).AttachAdminRoutes(httpMux)

	w := httptest.NewRecorder()
	httpMux.ServeHTTP(w, localHostRequest(http.MethodPost, "/debug/tail", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestPortOptions(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	if got.BaudRate != DefaultBaudRate || got.DataBits != 8 || got.StopBits != 1 || got.Parity != "N" {
		t.Errorf("Normalize() defaults = %+v", got)
	}

	mode, err := PortOptions{StopBits: 2, Parity: "even"}.SerialMode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.StopBits != serial.TwoStopBits || mode.Parity != serial.EvenParity {
		t.Errorf("SerialMode() = %+v", mode)
	}
	mode, err = PortOptions{}.SerialMode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.StopBits != serial.OneStopBit {
		t.Errorf("one stop bit mapped to %v", mode.StopBits)
	}

	for _, bad := range []PortOptions{{DataBits: 9}, {StopBits: 3}, {Parity: "mark"}} {
		if _, err := bad.SerialMode(); err == nil {
			t.Errorf("SerialMode(%+v) succeeded", bad)
		}
	}
	if !(PortOptions{}).Equal(PortOptions{BaudRate: DefaultBaudRate, Parity: "none"}) {
		t.Error("defaults not equal to explicit defaults")
	}
}

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()
	if err := d.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := d.SendCommand("START 30"); err != nil {
		t.Fatal(err)
	}
	_, ch := d.Subscribe()
	d.Close()
	if _, ok := <-ch; ok {
		t.Error("channel open after Close")
	}
	_, ch = d.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("subscribe after Close returned open channel")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Monitor(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Monitor() = %v", err)
	}
}
