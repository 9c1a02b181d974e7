package rppg

import (
	"fmt"
	"strings"
)

// Channel identifies one colour channel of the region of interest.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

// Channels lists every channel in presentation order.
var Channels = []Channel{Red, Green, Blue}

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// ParseChannel accepts "red", "green" or "blue" (case-insensitive) and the
// single-letter forms "r", "g", "b".
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "r":
		return Red, nil
	case "green", "g":
		return Green, nil
	case "blue", "b":
		return Blue, nil
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}

// MarshalText lets Channel be used as a JSON object key.
func (c Channel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Channel) UnmarshalText(b []byte) error {
	parsed, err := ParseChannel(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Sample is one processed frame: the mean red, green and blue intensity over
// the region of interest and the frame timestamp in seconds since the start
// of the session.
type Sample struct {
	Time float64 `json:"t"`
	R    float64 `json:"r"`
	G    float64 `json:"g"`
	B    float64 `json:"b"`
}

// Value returns the intensity of channel c.
func (s Sample) Value(c Channel) float64 {
	switch c {
	case Red:
		return s.R
	case Green:
		return s.G
	case Blue:
		return s.B
	}
	return 0
}

// Window is the batch of samples processed together to produce one
// heart-rate cycle. Samples are time-ordered. A Window is never mutated
// after it has been drained from the sample buffer.
type Window []Sample

// Times returns the sample timestamps.
func (w Window) Times() []float64 {
	out := make([]float64, len(w))
	for i, s := range w {
		out[i] = s.Time
	}
	return out
}

// Values returns the intensities of channel c.
func (w Window) Values(c Channel) []float64 {
	out := make([]float64, len(w))
	for i, s := range w {
		out[i] = s.Value(c)
	}
	return out
}

// Duration is the time between the first and last sample.
func (w Window) Duration() float64 {
	if len(w) < 2 {
		return 0
	}
	return w[len(w)-1].Time - w[0].Time
}

// SeriesKind names one processing stage exposed to presentation.
type SeriesKind int

const (
	SeriesRaw SeriesKind = iota
	SeriesFiltered
	SeriesFFT
	SeriesFilteredICA
	SeriesFFTICA
)

// SeriesKinds lists every exposed stage.
var SeriesKinds = []SeriesKind{SeriesRaw, SeriesFiltered, SeriesFFT, SeriesFilteredICA, SeriesFFTICA}

func (k SeriesKind) String() string {
	switch k {
	case SeriesRaw:
		return "raw"
	case SeriesFiltered:
		return "filtered"
	case SeriesFFT:
		return "fft"
	case SeriesFilteredICA:
		return "filtered_ica"
	case SeriesFFTICA:
		return "fft_ica"
	default:
		return fmt.Sprintf("series(%d)", int(k))
	}
}

// ParseSeriesKind is the inverse of SeriesKind.String. Hyphens are accepted
// in place of underscores.
func ParseSeriesKind(s string) (SeriesKind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, k := range SeriesKinds {
		if k.String() == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown series %q", s)
}

func (k SeriesKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SeriesKind) UnmarshalText(b []byte) error {
	parsed, err := ParseSeriesKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IsSpectrum reports whether the series x axis is frequency (Hz) rather than
// time (s).
func (k SeriesKind) IsSpectrum() bool {
	return k == SeriesFFT || k == SeriesFFTICA
}

// Series is an ordered sequence of (x, y) pairs for one channel and stage.
type Series struct {
	Name string    `json:"name"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

// NewSeries builds a Series over copies of x and y.
func NewSeries(name string, x, y []float64) Series {
	return Series{
		Name: name,
		X:    append([]float64(nil), x...),
		Y:    append([]float64(nil), y...),
	}
}

// Len returns the number of points; x and y lengths always match for series
// built by this module.
func (s Series) Len() int { return len(s.Y) }

// Clone returns a deep copy.
func (s Series) Clone() Series {
	return NewSeries(s.Name, s.X, s.Y)
}

// ChannelSeries keys one stage's series by channel.
type ChannelSeries map[Channel]Series

// Clone returns a deep copy.
func (cs ChannelSeries) Clone() ChannelSeries {
	if cs == nil {
		return nil
	}
	out := make(ChannelSeries, len(cs))
	for c, s := range cs {
		out[c] = s.Clone()
	}
	return out
}

// Path distinguishes the direct estimate from the ICA-refined estimate.
type Path int

const (
	PathDirect Path = iota
	PathICA
)

// Paths lists both estimation paths.
var Paths = []Path{PathDirect, PathICA}

func (p Path) String() string {
	switch p {
	case PathDirect:
		return "direct"
	case PathICA:
		return "ica"
	default:
		return fmt.Sprintf("path(%d)", int(p))
	}
}

// ParsePath is the inverse of Path.String.
func ParsePath(s string) (Path, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct", "":
		return PathDirect, nil
	case "ica":
		return PathICA, nil
	}
	return 0, fmt.Errorf("unknown path %q", s)
}

func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Path) UnmarshalText(b []byte) error {
	parsed, err := ParsePath(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
