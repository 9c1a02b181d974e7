package monitoring

import (
	"bytes"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("cycle %d", 1)
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op; the previous logger must no longer be reached
	called = false
	SetLogger(nil)
	Logf("cycle %d", 2)
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("test message: %s", "value")
}

func TestDebugf(t *testing.T) {
	defer SetDebugLogger(nil)

	var buf bytes.Buffer
	SetDebugLogger(&buf)
	if !DebugEnabled() {
		t.Fatal("DebugEnabled() = false after SetDebugLogger")
	}
	Debugf("window %d samples", 300)
	if !bytes.Contains(buf.Bytes(), []byte("window 300 samples")) {
		t.Errorf("debug output missing message: %q", buf.String())
	}

	SetDebugLogger(nil)
	buf.Reset()
	Debugf("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected no output after disabling debug logger, got %q", buf.String())
	}
	if DebugEnabled() {
		t.Error("DebugEnabled() = true after SetDebugLogger(nil)")
	}
}
