// Package api serves the scanner, stored roadmaps and vehicle commands
// over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/overdrive/internal/db"
	"github.com/banshee-data/overdrive/internal/fsutil"
	"github.com/banshee-data/overdrive/internal/monitoring"
	"github.com/banshee-data/overdrive/internal/protocol"
	"github.com/banshee-data/overdrive/internal/scanner"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Vehicle is the connected vehicle commands are sent to.
type Vehicle interface {
	Address() string
	Send(protocol.Message) error
}

// Options configure a Server.
type Options struct {
	// ScanSpeed is the speed in mm/s the vehicle is driven at while a
	// scan runs. Zero leaves the vehicle alone.
	ScanSpeed int16
	// Accel is the acceleration used for speed commands the server sends
	// on its own.
	Accel int16
	// PlotDir receives exported roadmap plots. Empty disables export.
	PlotDir string
	// FS defaults to fsutil.OSFileSystem.
	FS fsutil.FileSystem
}

type Server struct {
	scanner *scanner.Scanner
	db      *db.DB
	vehicle Vehicle
	opts    Options
}

// NewServer builds a server. database and vehicle may be nil; the routes
// that need them then answer 503.
func NewServer(sc *scanner.Scanner, database *db.DB, vehicle Vehicle, opts Options) *Server {
	if opts.Accel == 0 {
		opts.Accel = 1000
	}
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	return &Server{
		scanner: sc,
		db:      database,
		vehicle: vehicle,
		opts:    opts,
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
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan", s.showScan)
	mux.HandleFunc("/api/scan/", s.controlScan)
	mux.HandleFunc("/api/roadmap", s.showRoadmap)
	mux.HandleFunc("/api/roadmap.png", s.roadmapPNG)
	mux.HandleFunc("/api/roadmap.html", s.roadmapHTML)
	mux.HandleFunc("/api/roadmaps", s.handleRoadmaps)
	mux.HandleFunc("/api/roadmaps/", s.handleRoadmap)
	mux.HandleFunc("/api/vehicle", s.showVehicle)
	mux.HandleFunc("/api/vehicle/", s.commandVehicle)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("api: failed to write response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) showScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.scanner.Status())
}

func (s *Server) controlScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	switch action := strings.TrimPrefix(r.URL.Path, "/api/scan/"); action {
	case "start":
		s.scanner.Start()
		if s.vehicle != nil && s.opts.ScanSpeed > 0 {
			if err := s.vehicle.Send(protocol.NewSetSpeed(s.opts.ScanSpeed, s.opts.Accel)); err != nil {
				s.writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("Failed to start vehicle: %v", err))
				return
			}
		}
	case "stop":
		s.scanner.Stop()
		if s.vehicle != nil && s.opts.ScanSpeed > 0 {
			if err := s.vehicle.Send(protocol.NewSetSpeed(0, s.opts.Accel)); err != nil {
				s.writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("Failed to stop vehicle: %v", err))
				return
			}
		}
	case "reset":
		s.scanner.Reset()
	default:
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Unknown scan action %q", action))
		return
	}
	s.writeJSON(w, http.StatusOK, s.scanner.Status())
}
