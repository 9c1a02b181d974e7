package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/pulse.report/internal/httputil"
	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/pipeline"
	"github.com/banshee-data/pulse.report/internal/serialmux"
	"github.com/banshee-data/pulse.report/internal/units"
	"github.com/banshee-data/pulse.report/internal/version"
	"github.com/go-chi/chi/v5"
)

// maxSampleBody bounds POST /api/samples.
const maxSampleBody = 4 << 20

// rateView is one heart rate as shown to clients.
type rateView struct {
	Value    float64      `json:"value"`
	StdDev   float64      `json:"std_dev"`
	Units    string       `json:"units"`
	Label    string       `json:"label"`
	Channel  rppg.Channel `json:"channel"`
	Fallback bool         `json:"fallback"`
	Valid    bool         `json:"valid"`
}

func newRateView(r rppg.RateEstimate, u string) rateView {
	v := rateView{
		Units:    u,
		Label:    units.FormatRate(r.FrequencyHz),
		Channel:  r.Channel,
		Fallback: r.Fallback,
		Valid:    r.Valid,
	}
	if r.Valid {
		v.Value = units.ConvertRate(r.FrequencyHz, u)
		v.StdDev = units.ConvertRate(r.StdDevHz, u)
	}
	return v
}

type peakView struct {
	FrequencyHz float64 `json:"frequency_hz"`
	StdDevHz    float64 `json:"std_dev_hz"`
	Label       string  `json:"label"`
}

func newPeakViews(cp rppg.ChannelPeaks) map[rppg.Channel]peakView {
	out := make(map[rppg.Channel]peakView, len(cp))
	for c, p := range cp {
		out[c] = peakView{FrequencyHz: p.FrequencyHz, StdDevHz: p.StdDevHz, Label: units.FormatPeak(p.FrequencyHz, p.StdDevHz)}
	}
	return out
}

// requestUnits returns the ?units= override or the server default.
func (s *Server) requestUnits(r *http.Request) (string, error) {
	u := strings.ToLower(r.URL.Query().Get("units"))
	if u == "" {
		u = s.units
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid units %q: expected one of %s", u, units.GetValidUnitsString())
	}
	return u, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.p.Status()
	resp := struct {
		pipeline.Status
		Version string `json:"version"`
		Direct  string `json:"direct_label"`
		ICA     string `json:"ica_label"`
	}{Status: st, Version: version.String(), Direct: units.Missing, ICA: units.Missing}
	if hr, ok := s.p.HeartRate(); ok {
		resp.Direct, resp.ICA = rateLabels(hr)
	}
	httputil.WriteJSONOK(w, resp)
}

// rateLabels renders both rates for display. The ICA rate is only shown
// alongside a direct rate; a cycle without one shows Missing for both.
func rateLabels(hr rppg.HeartRateResult) (direct, ica string) {
	direct = units.FormatRate(hr.Direct.FrequencyHz)
	if direct == units.Missing {
		return units.Missing, units.Missing
	}
	return direct, units.FormatRate(hr.ICA.FrequencyHz)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.p.Config())
}

func (s *Server) handleHeartRate(w http.ResponseWriter, r *http.Request) {
	u, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	res, ok := s.p.Latest()
	if !ok {
		httputil.ServiceUnavailable(w, "no heart rate computed yet")
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"session_id":  res.SessionID,
		"cycle":       res.Cycle,
		"computed_at": res.ComputedAt,
		"direct":      newRateView(res.HeartRate.Direct, u),
		"ica":         newRateView(res.HeartRate.ICA, u),
	})
}

func (s *Server) handlePeaks(w http.ResponseWriter, r *http.Request) {
	path := rppg.PathDirect
	if q := r.URL.Query().Get("path"); q != "" {
		var err error
		if path, err = rppg.ParsePath(q); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}
	res, ok := s.p.Latest()
	if !ok {
		httputil.ServiceUnavailable(w, "no peaks computed yet")
		return
	}
	spectral, ok := res.Peaks[path]
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no %s peaks in cycle %d", path, res.Cycle))
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"path":     path,
		"cycle":    res.Cycle,
		"spectral": newPeakViews(spectral),
		"waveform": newPeakViews(res.WaveformPeaks[path]),
		"maxima":   res.Maxima[path],
	})
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	res, ok := s.p.Latest()
	if !ok {
		httputil.ServiceUnavailable(w, "no cycle computed yet")
		return
	}
	if r.URL.Query().Get("full") == "true" {
		httputil.WriteJSONOK(w, res)
		return
	}
	httputil.WriteJSONOK(w, res.Summarize())
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	kind, err := rppg.ParseSeriesKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if _, ok := s.p.Latest(); !ok {
		httputil.ServiceUnavailable(w, "no series computed yet")
		return
	}
	cs, ok := s.p.Series(kind)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("series %s not available", kind))
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"kind":     kind,
		"spectrum": kind.IsSpectrum(),
		"channels": cs,
	})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	st, err := s.p.Toggle()
	s.writeSessionResult(w, st, err)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "start":
		_, err = s.p.StartSession()
	case "stop":
		err = s.p.StopSession()
	case "pause":
		err = s.p.Pause()
	case "resume":
		err = s.p.Resume()
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown session action %q", action))
		return
	}
	s.writeSessionResult(w, s.p.State(), err)
}

func (s *Server) writeSessionResult(w http.ResponseWriter, st pipeline.State, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidTransition):
		httputil.Conflict(w, err.Error())
	case err != nil:
		// the transition happened but the camera did not take the command
		httputil.WriteJSON(w, http.StatusBadGateway, map[string]any{"state": st, "error": err.Error()})
	default:
		status := s.p.Status()
		httputil.WriteJSONOK(w, map[string]any{"state": st, "session_id": status.SessionID})
	}
}

type sampleIn struct {
	T float64 `json:"t"`
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// handleSamples accepts a JSON array of {t,r,g,b} or "t,r,g,b" lines.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxSampleBody)
	var samples []rppg.Sample

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var in []sampleIn
		if err := json.NewDecoder(body).Decode(&in); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid sample array: %v", err))
			return
		}
		samples = make([]rppg.Sample, len(in))
		for i, v := range in {
			samples[i] = rppg.Sample{Time: v.T, R: v.R, G: v.G, B: v.B}
		}
	} else {
		parsed, err := readSampleLines(body)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		samples = parsed
	}

	accepted := 0
	for _, smp := range samples {
		if s.p.OnFrame(smp) {
			accepted++
		}
	}
	httputil.WriteJSONOK(w, map[string]int{"received": len(samples), "accepted": accepted})
}

func readSampleLines(r io.Reader) ([]rppg.Sample, error) {
	var out []rppg.Sample
	scan := bufio.NewScanner(r)
	line := 0
	for scan.Scan() {
		line++
		text := strings.TrimSpace(scan.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		smp, err := serialmux.ParseSample(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", line, err)
		}
		out = append(out, smp)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleCycleComplete(w http.ResponseWriter, r *http.Request) {
	fps := 0.0
	if q := r.URL.Query().Get("fps"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil || v < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid fps %q", q))
			return
		}
		fps = v
	}
	s.p.OnCycleComplete(fps)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]float64{"fps": fps})
}
