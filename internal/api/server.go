// Package api serves the pulse HTTP interface: session control, the latest
// heart rate and series as JSON, a websocket feed of cycles, and debug
// charts.
package api

import (
	"bufio"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/pulse.report/internal/rppg/pipeline"
	"github.com/banshee-data/pulse.report/internal/serialmux"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"tailscale.com/tsweb"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes one pipeline over HTTP.
type Server struct {
	p     *pipeline.Pipeline
	link  serialmux.SerialMuxInterface
	units string
}

// NewServer returns a Server for p. link may be nil when no camera link is
// attached; units is the default rate unit for JSON responses.
func NewServer(p *pipeline.Pipeline, link serialmux.SerialMuxInterface, units string) *Server {
	if link == nil {
		link = serialmux.NewDisabledSerialMux()
	}
	return &Server{
		p:     p,
		link:  link,
		units: units,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack hands the connection to the websocket upgrader.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// Routes builds the router. The /debug/ tree is served by tsweb and is only
// reachable from localhost or the tailnet.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/config", s.handleConfig)
		r.Get("/heartrate", s.handleHeartRate)
		r.Get("/peaks", s.handlePeaks)
		r.Get("/cycle", s.handleCycle)
		r.Get("/series/{kind}", s.handleSeries)

		r.Post("/camera/toggle", s.handleToggle)
		r.Post("/session/{action}", s.handleSession)

		r.Post("/samples", s.handleSamples)
		r.Post("/cycle-complete", s.handleCycleComplete)
	})
	r.Get("/ws/cycles", s.handleCyclesWS)

	debugMux := http.NewServeMux()
	s.link.AttachAdminRoutes(debugMux)
	debug := tsweb.Debugger(debugMux)
	debug.HandleFunc("pulse-charts", "heart-rate series of the latest cycle", s.handleCharts)
	r.Handle("/debug/*", debugMux)
	r.Handle("/debug", http.RedirectHandler("/debug/", http.StatusMovedPermanently))

	return r
}
