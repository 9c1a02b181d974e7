package pipeline

import (
	"fmt"
	"strings"
)

// State is the sampling state of a session.
type State int

const (
	StateStopped State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stopped":
		return StateStopped, nil
	case "running":
		return StateRunning, nil
	case "paused":
		return StatePaused, nil
	}
	return 0, fmt.Errorf("unknown state %q", s)
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	parsed, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CameraController receives the session's camera commands. Capture itself
// happens elsewhere; the controller only relays start, stop and resume.
type CameraController interface {
	// StartCamera begins capture at fps frames per second.
	StartCamera(fps int) error
	// StopCamera ends capture.
	StopCamera() error
	// ResumeCamera continues capture for the next frames samples.
	ResumeCamera(frames int) error
}

// NopCamera accepts every command and does nothing. It is the default when
// samples arrive from a source that needs no control.
type NopCamera struct{}

func (NopCamera) StartCamera(int) error  { return nil }
func (NopCamera) StopCamera() error      { return nil }
func (NopCamera) ResumeCamera(int) error { return nil }

// Publisher receives every successful cycle. PublishCycle must not block
// for long; it runs on the recompute goroutine.
type Publisher interface {
	PublishCycle(r *CycleResult) error
}
