package serialmux

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/pulse.report/internal/rppg"
)

// Event types carried on the camera link.
const (
	EventTypeSample        = "sample"
	EventTypeCycleComplete = "cycle_complete"
	EventTypeStatus        = "status"
	EventTypeUnknown       = "unknown"
)

// Commands understood by the camera bridge.
const (
	CommandStart  = "START"
	CommandStop   = "STOP"
	CommandResume = "RESUME"
	CommandFormat = "FORMAT"
)

const cycleKeyword = "CYCLE"

// sampleJSON is the JSON form of a sample or event line, e.g.
// {"t":1.033,"r":151.2,"g":120.4,"b":90.8} or
// {"event":"cycle_complete","fps":29.7}.
type sampleJSON struct {
	Event string   `json:"event"`
	Time  *float64 `json:"t"`
	R     float64  `json:"r"`
	G     float64  `json:"g"`
	B     float64  `json:"b"`
	FPS   float64  `json:"fps"`
}

// ClassifyPayload inspects a line and returns its event type token.
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	switch {
	case p == "":
		return EventTypeUnknown
	case strings.HasPrefix(p, "{"):
		var v sampleJSON
		if err := json.Unmarshal([]byte(p), &v); err != nil {
			return EventTypeUnknown
		}
		switch {
		case v.Event == EventTypeCycleComplete:
			return EventTypeCycleComplete
		case v.Event == EventTypeStatus:
			return EventTypeStatus
		case v.Time != nil:
			return EventTypeSample
		}
		return EventTypeStatus
	case strings.HasPrefix(strings.ToUpper(p), cycleKeyword):
		return EventTypeCycleComplete
	case strings.HasPrefix(p, "#"), strings.HasPrefix(strings.ToUpper(p), "OK"):
		return EventTypeStatus
	case strings.Count(p, ",") == 3:
		return EventTypeSample
	}
	return EventTypeUnknown
}

// ParseSample parses "t,r,g,b" or a JSON sample line.
func ParseSample(payload string) (rppg.Sample, error) {
	p := strings.TrimSpace(payload)
	if strings.HasPrefix(p, "{") {
		var v sampleJSON
		if err := json.Unmarshal([]byte(p), &v); err != nil {
			return rppg.Sample{}, fmt.Errorf("parse sample %q: %w", p, err)
		}
		if v.Time == nil {
			return rppg.Sample{}, fmt.Errorf("parse sample %q: missing t", p)
		}
		return rppg.Sample{Time: *v.Time, R: v.R, G: v.G, B: v.B}, nil
	}

	fields := strings.Split(p, ",")
	if len(fields) != 4 {
		return rppg.Sample{}, fmt.Errorf("parse sample %q: want 4 fields, got %d", p, len(fields))
	}
	var vals [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return rppg.Sample{}, fmt.Errorf("parse sample %q field %d: %w", p, i, err)
		}
		vals[i] = v
	}
	return rppg.Sample{Time: vals[0], R: vals[1], G: vals[2], B: vals[3]}, nil
}

// ParseCycleComplete parses "CYCLE <fps>" or the JSON event and returns the
// frame rate the bridge measured over the window, or 0 if it gave none.
func ParseCycleComplete(payload string) (float64, error) {
	p := strings.TrimSpace(payload)
	if strings.HasPrefix(p, "{") {
		var v sampleJSON
		if err := json.Unmarshal([]byte(p), &v); err != nil {
			return 0, fmt.Errorf("parse cycle marker %q: %w", p, err)
		}
		return v.FPS, nil
	}
	fields := strings.Fields(p)
	if len(fields) == 0 || !strings.EqualFold(fields[0], cycleKeyword) {
		return 0, fmt.Errorf("parse cycle marker %q: not a cycle line", p)
	}
	if len(fields) == 1 {
		return 0, nil
	}
	fps, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || fps < 0 {
		return 0, fmt.Errorf("parse cycle marker %q: bad fps", p)
	}
	return fps, nil
}

// FormatSample renders s in the CSV line form.
func FormatSample(s rppg.Sample) string {
	return fmt.Sprintf("%.4f,%.3f,%.3f,%.3f", s.Time, s.R, s.G, s.B)
}
