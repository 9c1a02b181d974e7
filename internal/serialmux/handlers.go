package serialmux

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/rppg"
)

// Sink consumes the events decoded from the camera link.
type Sink interface {
	OnFrame(s rppg.Sample) bool
	OnCycleComplete(actualFPS float64)
}

var (
	stateMu sync.Mutex
	// currentState holds the latest status values reported by the bridge.
	currentState = map[string]any{}
)

// CurrentState returns a copy of the latest bridge status values.
func CurrentState() map[string]any {
	stateMu.Lock()
	defer stateMu.Unlock()
	out := make(map[string]any, len(currentState))
	for k, v := range currentState {
		out[k] = v
	}
	return out
}

// HandleStatus records a status line. JSON objects are merged into the
// current state; other lines are kept under "message".
func HandleStatus(payload string) error {
	p := strings.TrimSpace(payload)
	values := map[string]any{}
	if strings.HasPrefix(p, "{") {
		if err := json.Unmarshal([]byte(p), &values); err != nil {
			return fmt.Errorf("failed to unmarshal JSON: %v", err)
		}
		delete(values, "event")
	} else {
		values["message"] = strings.TrimSpace(strings.TrimPrefix(p, "#"))
	}

	stateMu.Lock()
	for k, v := range values {
		currentState[k] = v
	}
	stateMu.Unlock()

	monitoring.Debugf("camera status: %s", p)
	return nil
}

// HandleEvent decodes one line and delivers it to sink.
func HandleEvent(sink Sink, payload string) error {
	switch ClassifyPayload(payload) {
	case EventTypeSample:
		s, err := ParseSample(payload)
		if err != nil {
			return fmt.Errorf("failed to handle sample: %w", err)
		}
		sink.OnFrame(s)
	case EventTypeCycleComplete:
		fps, err := ParseCycleComplete(payload)
		if err != nil {
			return fmt.Errorf("failed to handle cycle marker: %w", err)
		}
		sink.OnCycleComplete(fps)
	case EventTypeStatus:
		if err := HandleStatus(payload); err != nil {
			return fmt.Errorf("failed to handle status: %w", err)
		}
	default:
		monitoring.Debugf("unknown event type: %s", payload)
	}
	return nil
}

// Forward subscribes to mux and hands every line to sink until ctx is done
// or the subscription closes. Malformed lines are logged and skipped.
func Forward(ctx context.Context, mux SerialMuxInterface, sink Sink) error {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := HandleEvent(sink, line); err != nil {
				monitoring.Logf("camera link: %v", err)
			}
		}
	}
}
