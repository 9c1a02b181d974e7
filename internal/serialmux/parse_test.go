package serialmux

import (
	"testing"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/google/go-cmp/cmp"
)

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"0.033,151.2,120.4,90.8", EventTypeSample},
		{" 1,2,3,4 ", EventTypeSample},
		{`{"t":0.5,"r":1,"g":2,"b":3}`, EventTypeSample},
		{"CYCLE 29.70", EventTypeCycleComplete},
		{"cycle", EventTypeCycleComplete},
		{`{"event":"cycle_complete","fps":29.7}`, EventTypeCycleComplete},
		{"# camera ready", EventTypeStatus},
		{"OK START 30", EventTypeStatus},
		{`{"exposure":12}`, EventTypeStatus},
		{`{"event":"status","lux":300}`, EventTypeStatus},
		{"", EventTypeUnknown},
		{"1,2,3", EventTypeUnknown},
		{"{not json", EventTypeUnknown},
		{"hello", EventTypeUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyPayload(tt.payload); got != tt.want {
			t.Errorf("ClassifyPayload(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestParseSample(t *testing.T) {
	tests := []struct {
		payload string
		want    rppg.Sample
		wantErr bool
	}{
		{payload: "0.5,150,120.5,90", want: rppg.Sample{Time: 0.5, R: 150, G: 120.5, B: 90}},
		{payload: " 1 , 2 , 3 , 4 ", want: rppg.Sample{Time: 1, R: 2, G: 3, B: 4}},
		{payload: `{"t":2.25,"r":1,"g":2,"b":3}`, want: rppg.Sample{Time: 2.25, R: 1, G: 2, B: 3}},
		{payload: `{"t":0,"g":7}`, want: rppg.Sample{G: 7}},
		{payload: `{"r":1,"g":2,"b":3}`, wantErr: true},
		{payload: "1,2,3", wantErr: true},
		{payload: "1,x,3,4", wantErr: true},
		{payload: "{", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSample(tt.payload)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSample(%q) succeeded, want error", tt.payload)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSample(%q): %v", tt.payload, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseSample(%q) mismatch (-want +got):\n%s", tt.payload, diff)
		}
	}
}

func TestParseCycleComplete(t *testing.T) {
	tests := []struct {
		payload string
		want    float64
		wantErr bool
	}{
		{payload: "CYCLE 29.5", want: 29.5},
		{payload: "cycle", want: 0},
		{payload: `{"event":"cycle_complete","fps":30}`, want: 30},
		{payload: "CYCLE fast", wantErr: true},
		{payload: "CYCLE -1", wantErr: true},
		{payload: "START 30", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseCycleComplete(tt.payload)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCycleComplete(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCycleComplete(%q) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func TestFormatSampleRoundTrip(t *testing.T) {
	s := rppg.Sample{Time: 1.5, R: 150.125, G: 120.5, B: 90}
	line := FormatSample(s)
	if got := ClassifyPayload(line); got != EventTypeSample {
		t.Fatalf("ClassifyPayload(%q) = %q", line, got)
	}
	got, err := ParseSample(line)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
