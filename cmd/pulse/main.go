// Command pulse reads colour samples from a camera bridge, estimates heart
// rate every cycle and serves the results over HTTP, a websocket and NATS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/pulse.report/internal/api"
	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/rppg/pipeline"
	"github.com/banshee-data/pulse.report/internal/serialmux"
	"github.com/banshee-data/pulse.report/internal/stream"
	"github.com/banshee-data/pulse.report/internal/units"
	"github.com/banshee-data/pulse.report/internal/version"
	"github.com/cli/browser"
	"github.com/joho/godotenv"
)

var (
	listen      = flag.String("listen", envOr("PULSE_LISTEN", ":8080"), "HTTP listen address")
	configFile  = flag.String("config", envOr("PULSE_CONFIG", ""), "Pulse config JSON (defaults apply when empty)")
	devMode     = flag.Bool("dev", false, "Use a synthetic camera bridge instead of a serial port")
	devPulseHz  = flag.Float64("dev-pulse-hz", 1.2, "Pulse frequency of the synthetic bridge")
	port        = flag.String("port", envOr("PULSE_SERIAL_PORT", "/dev/ttyACM0"), "Serial port of the camera bridge (ignored in dev mode)")
	baud        = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	listPorts   = flag.Bool("list-ports", false, "List serial ports and exit")
	natsURL     = flag.String("nats", envOr("PULSE_NATS_URL", ""), "NATS server URL; cycles are not published when empty")
	natsSubject = flag.String("nats-subject", envOr("PULSE_NATS_SUBJECT", stream.DefaultSubject), "NATS subject prefix for cycle summaries")
	natsFull    = flag.Bool("nats-full", false, "Also publish full cycle results with series")
	rateUnits   = flag.String("units", envOr("PULSE_UNITS", units.BPM), "Default heart rate units for the API")
	openCharts  = flag.Bool("open", false, "Open the debug charts in a browser once serving")
	debug       = flag.Bool("debug", false, "Log per-cycle signal diagnostics to stderr")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// envOr returns the environment value for key, or def when unset.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// loadEnv reads a .env file when one exists. Flags still take precedence.
func loadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadConfig(path string) (*config.PulseConfig, error) {
	if path == "" {
		return config.DefaultPulseConfig(), nil
	}
	return config.LoadPulseConfig(path)
}

// newLink opens the camera bridge. In dev mode a synthetic bridge is used
// and the pipeline counts frames itself.
func newLink(dev bool, path string, baudRate int, pulseHz float64) (serialmux.SerialMuxInterface, error) {
	if dev {
		return serialmux.NewSyntheticSerialMux(pulseHz, time.Now().UnixNano(), 0), nil
	}
	if path == "" {
		return nil, errors.New("serial port is required outside dev mode")
	}
	return serialmux.NewRealSerialMux(path, serialmux.PortOptions{BaudRate: baudRate})
}

func main() {
	if err := loadEnv(".env"); err != nil {
		log.Printf("warning: %v", err)
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValid(strings.ToLower(*rateUnits)) {
		log.Fatalf("invalid units %q: expected one of %s", *rateUnits, units.GetValidUnitsString())
	}
	if *debug {
		pipeline.SetDebugLogger(os.Stderr)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	link, err := newLink(*devMode, *port, *baud, *devPulseHz)
	if err != nil {
		log.Fatalf("failed to open camera bridge: %v", err)
	}
	defer link.Close()

	if err := link.Initialize(); err != nil {
		log.Fatalf("failed to initialize camera bridge: %v", err)
	}
	log.Printf("initialized camera bridge %v", link)

	opts := []pipeline.Option{pipeline.WithCamera(serialmux.NewCamera(link))}
	if *natsURL != "" {
		nc, err := stream.Connect(*natsURL)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer nc.Close()
		pub := stream.NewPublisher(nc, *natsSubject)
		pub.Full = *natsFull
		opts = append(opts, pipeline.WithPublisher(pub))
		log.Printf("publishing cycles on %s.*", *natsSubject)
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// recompute routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pipeline stopped: %v", err)
		}
		log.Print("pipeline routine terminated")
	}()

	// serial IO
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := link.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor camera bridge: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// bridge lines into the pipeline
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serialmux.Forward(ctx, link, p); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("forwarding stopped: %v", err)
		}
		log.Print("forward routine terminated")
	}()

	// HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.NewServer(p, link, strings.ToLower(*rateUnits)).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("serving on %s", *listen)

		if *openCharts {
			if err := browser.OpenURL(chartsURL(*listen)); err != nil {
				log.Printf("failed to open browser: %v", err)
			}
		}

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	if err := p.StopSession(); err != nil && !errors.Is(err, pipeline.ErrInvalidTransition) {
		log.Printf("failed to stop session: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// chartsURL turns a listen address into the URL of the debug charts.
func chartsURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/debug/pulse-charts"
}
