// Command pulse-replay runs recorded "t,r,g,b" samples through the heart
// rate processor one window at a time, the way a live session would, and
// reports each cycle.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/plotting"
	"github.com/banshee-data/pulse.report/internal/rppg"
	"github.com/banshee-data/pulse.report/internal/rppg/l1samples"
	"github.com/banshee-data/pulse.report/internal/rppg/pipeline"
	"github.com/banshee-data/pulse.report/internal/rppg/synthetic"
	"github.com/banshee-data/pulse.report/internal/serialmux"
	"github.com/banshee-data/pulse.report/internal/units"
	"github.com/google/uuid"
)

// Config holds the replay options.
type Config struct {
	InputFile  string
	ConfigFile string
	PlotDir    string
	JSON       bool
	FPS        float64
	Synthetic  int
	PulseHz    float64
	Verbose    bool
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.InputFile, "in", "", "Sample file (t,r,g,b per line); - for stdin")
	flag.StringVar(&cfg.ConfigFile, "config", "", "Pulse config JSON (defaults apply when empty)")
	flag.StringVar(&cfg.PlotDir, "plots", "", "Write PNG plots of every cycle into this directory")
	flag.BoolVar(&cfg.JSON, "json", false, "Print one JSON summary per cycle instead of text")
	flag.Float64Var(&cfg.FPS, "fps", 0, "Frame rate reported by the camera; measured from timestamps when 0")
	flag.IntVar(&cfg.Synthetic, "synthetic", 0, "Replay this many generated samples instead of a file")
	flag.Float64Var(&cfg.PulseHz, "pulse-hz", 1.2, "Pulse frequency of generated samples")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Log per-stage diagnostics")

	flag.Parse()

	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.Verbose {
		pipeline.SetDebugLogger(os.Stderr)
	}

	pulseCfg := config.DefaultPulseConfig()
	if cfg.ConfigFile != "" {
		var err error
		if pulseCfg, err = config.LoadPulseConfig(cfg.ConfigFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	var in io.Reader
	switch {
	case cfg.Synthetic > 0:
		var sb strings.Builder
		for _, s := range synthetic.NewGenerator(pulseCfg.GetFrameRate(), cfg.PulseHz, 1).Window(cfg.Synthetic) {
			sb.WriteString(serialmux.FormatSample(s))
			sb.WriteByte('\n')
		}
		in = strings.NewReader(sb.String())
	case cfg.InputFile == "-":
		in = os.Stdin
	case cfg.InputFile != "":
		f, err := os.Open(cfg.InputFile)
		if err != nil {
			log.Fatalf("Failed to open samples: %v", err)
		}
		defer f.Close()
		in = f
	default:
		log.Fatal("Sample file (-in) or -synthetic is required")
	}

	var plotter *plotting.Plotter
	if cfg.PlotDir != "" {
		var err error
		if plotter, err = plotting.NewPlotter(cfg.PlotDir); err != nil {
			log.Fatalf("Failed to prepare plots: %v", err)
		}
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	stats, err := replay(context.Background(), in, pulseCfg, cfg.FPS, func(res *pipeline.CycleResult, cycleErr error) error {
		if cycleErr != nil {
			fmt.Fprintf(out, "cycle failed: %v\n", cycleErr)
			return nil
		}
		if err := printCycle(out, res, cfg.JSON); err != nil {
			return err
		}
		if plotter != nil {
			files, err := plotter.SaveCycle(res)
			if err != nil {
				return err
			}
			log.Printf("cycle %d: wrote %d plots", res.Cycle, len(files))
		}
		return nil
	})
	if err != nil {
		out.Flush()
		log.Fatalf("Replay failed: %v", err)
	}
	log.Printf("read %d samples, %d rejected, %d cycles, %d failed, %d left over",
		stats.Samples, stats.Rejected, stats.Cycles, stats.Failures, stats.Leftover)
}

// Stats counts what a replay did.
type Stats struct {
	Samples  int
	Rejected uint64
	Cycles   int
	Failures int
	Leftover int
}

// replay feeds samples from r into a window buffer and processes every full
// window. emit sees each result or the error of a failed cycle; a non-nil
// return from emit stops the replay.
func replay(ctx context.Context, r io.Reader, cfg *config.PulseConfig, fps float64, emit func(*pipeline.CycleResult, error) error) (Stats, error) {
	var stats Stats
	proc, err := pipeline.NewProcessor(cfg)
	if err != nil {
		return stats, err
	}
	buf, err := l1samples.NewBuffer(cfg.GetFramesPerHeartRateSample())
	if err != nil {
		return stats, err
	}
	session := uuid.NewString()

	process := func() error {
		w := buf.Drain()
		res, err := proc.Process(ctx, w, fps)
		if err != nil {
			stats.Failures++
			if !rppg.Recoverable(err) {
				return err
			}
			return emit(nil, err)
		}
		stats.Cycles++
		res.SessionID = session
		res.Cycle = uint64(stats.Cycles)
		return emit(res, nil)
	}

	scan := bufio.NewScanner(r)
	line := 0
	for scan.Scan() {
		line++
		text := strings.TrimSpace(scan.Text())
		if text == "" || strings.HasPrefix(text, "#") || serialmux.ClassifyPayload(text) != serialmux.EventTypeSample {
			continue
		}
		s, err := serialmux.ParseSample(text)
		if err != nil {
			if stats.Samples == 0 {
				// header row
				continue
			}
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		stats.Samples++
		buf.Add(s)
		if buf.IsFull() {
			if err := process(); err != nil {
				return stats, err
			}
		}
	}
	if err := scan.Err(); err != nil {
		return stats, err
	}
	stats.Rejected = buf.Rejected()
	stats.Leftover = buf.Len()
	return stats, nil
}

func printCycle(w io.Writer, res *pipeline.CycleResult, asJSON bool) error {
	if asJSON {
		b, err := json.Marshal(res.Summarize())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
	hr := res.HeartRate
	_, err := fmt.Fprintf(w, "cycle %3d  %4d samples @ %5.1f fps  direct %s BPM (%s)  ica %s BPM (%s)\n",
		res.Cycle, res.Window.Samples, res.Window.FrameRate,
		units.FormatRate(hr.Direct.FrequencyHz), hr.Direct.Channel,
		units.FormatRate(hr.ICA.FrequencyHz), hr.ICA.Channel)
	return err
}
