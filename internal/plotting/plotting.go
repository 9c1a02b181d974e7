// Package plotting writes the series of a computed cycle to PNG files.
package plotting

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/pipeline"
	"github.com/banshee-data/pulse.report/internal/units"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var channelColors = map[rppg.Channel]color.Color{
	rppg.Red:   color.RGBA{R: 214, G: 39, B: 40, A: 255},
	rppg.Green: color.RGBA{R: 44, G: 160, B: 44, A: 255},
	rppg.Blue:  color.RGBA{R: 31, G: 119, B: 180, A: 255},
}

// Plotter saves one image per series kind into outputDir.
type Plotter struct {
	outputDir string
	Width     vg.Length
	Height    vg.Length
}

// NewPlotter creates outputDir if needed.
func NewPlotter(outputDir string) (*Plotter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	return &Plotter{
		outputDir: outputDir,
		Width:     12 * vg.Inch,
		Height:    4 * vg.Inch,
	}, nil
}

// SaveCycle writes every series of res and returns the file paths written.
// Files are named cycle_<n>_<kind>.png.
func (pl *Plotter) SaveCycle(res *pipeline.CycleResult) ([]string, error) {
	if res == nil {
		return nil, fmt.Errorf("no cycle to plot")
	}
	var files []string
	for _, kind := range rppg.SeriesKinds {
		cs, ok := res.Series[kind]
		if !ok || len(cs) == 0 {
			continue
		}
		p, err := seriesPlot(res, kind, cs)
		if err != nil {
			return files, fmt.Errorf("plot %s: %w", kind, err)
		}
		file := filepath.Join(pl.outputDir, fmt.Sprintf("cycle_%04d_%s.png", res.Cycle, kind))
		if err := p.Save(pl.Width, pl.Height, file); err != nil {
			return files, fmt.Errorf("save %s plot: %w", kind, err)
		}
		files = append(files, file)
	}
	return files, nil
}

func seriesPlot(res *pipeline.CycleResult, kind rppg.SeriesKind, cs rppg.ChannelSeries) (*plot.Plot, error) {
	path := rppg.PathDirect
	if kind == rppg.SeriesFilteredICA || kind == rppg.SeriesFFTICA {
		path = rppg.PathICA
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (cycle %d, %s %s BPM)", kind, res.Cycle, path,
		units.FormatRate(res.HeartRate.Path(path).FrequencyHz))
	p.X.Label.Text = "t (s)"
	if kind.IsSpectrum() {
		p.X.Label.Text = "f (Hz)"
	}
	p.Y.Label.Text = "amplitude"
	p.Add(plotter.NewGrid())

	for _, c := range rppg.Channels {
		s, ok := cs[c]
		if !ok || s.Len() == 0 {
			continue
		}
		pts := make(plotter.XYs, s.Len())
		for i := range s.Y {
			pts[i].X = s.X[i]
			pts[i].Y = s.Y[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = channelColors[c]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(c.String(), line)
	}

	// beats of the primary channel on the filtered waveforms
	if kind == rppg.SeriesFiltered || kind == rppg.SeriesFilteredICA {
		if maxima := res.Maxima[path]; len(maxima) > 0 {
			pts := make(plotter.XYs, len(maxima))
			for i, m := range maxima {
				pts[i].X = m.Time
				pts[i].Y = m.Value
			}
			sc, err := plotter.NewScatter(pts)
			if err != nil {
				return nil, err
			}
			sc.GlyphStyle.Color = color.Black
			sc.GlyphStyle.Radius = vg.Points(3)
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			p.Add(sc)
			p.Legend.Add("beats", sc)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
