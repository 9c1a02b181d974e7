package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/banshee-data/pulse.report/internal/httputil"
	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/pipeline"
	"github.com/banshee-data/pulse.report/internal/units"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var channelColors = map[rppg.Channel]string{
	rppg.Red:   "#d62728",
	rppg.Green: "#2ca02c",
	rppg.Blue:  "#1f77b4",
}

// handleCharts renders every series of the latest cycle as one page of
// line charts.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	res, ok := s.p.Latest()
	if !ok {
		httputil.ServiceUnavailable(w, "no cycle computed yet")
		return
	}

	page := components.NewPage()
	page.PageTitle = "pulse"
	for _, kind := range rppg.SeriesKinds {
		cs, ok := res.Series[kind]
		if !ok {
			continue
		}
		page.AddCharts(seriesChart(res, kind, cs))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func seriesChart(res *pipeline.CycleResult, kind rppg.SeriesKind, cs rppg.ChannelSeries) *charts.Line {
	path := rppg.PathDirect
	if kind == rppg.SeriesFilteredICA || kind == rppg.SeriesFFTICA {
		path = rppg.PathICA
	}
	xName := "t (s)"
	if kind.IsSpectrum() {
		xName = "f (Hz)"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1000px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    kind.String(),
			Subtitle: chartSubtitle(res, kind, path),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xName, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	for _, c := range rppg.Channels {
		series, ok := cs[c]
		if !ok {
			continue
		}
		line.AddSeries(c.String(), lineItems(series),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: channelColors[c]}),
		)
	}

	// overlay the beats found on the primary channel of the filtered waveform
	if !kind.IsSpectrum() && kind != rppg.SeriesRaw && len(res.Maxima[path]) > 0 {
		peaks := charts.NewScatter()
		items := make([]opts.ScatterData, len(res.Maxima[path]))
		for i, p := range res.Maxima[path] {
			items[i] = opts.ScatterData{Value: []interface{}{p.Time, p.Value}, SymbolSize: 8}
		}
		peaks.AddSeries("beats", items, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#000000"}))
		line.Overlap(peaks)
	}
	return line
}

func lineItems(s rppg.Series) []opts.LineData {
	items := make([]opts.LineData, len(s.Y))
	for i := range s.Y {
		items[i] = opts.LineData{Value: []interface{}{s.X[i], s.Y[i]}}
	}
	return items
}

func chartSubtitle(res *pipeline.CycleResult, kind rppg.SeriesKind, path rppg.Path) string {
	hr := res.HeartRate.Path(path)
	sub := fmt.Sprintf("cycle %d, %d samples at %.1f fps, %s %s BPM", res.Cycle, res.Window.Samples,
		res.Window.FrameRate, path, units.FormatRate(hr.FrequencyHz))
	if !kind.IsSpectrum() {
		return sub
	}
	for _, c := range rppg.Channels {
		p := res.Peaks[path][c]
		sub += fmt.Sprintf(", %s %s", c, units.FormatPeak(p.FrequencyHz, p.StdDevHz))
	}
	return sub
}
