// Package server provides the HTTP and websocket front end of vigil.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/vigil/internal/app"
	"github.com/ayusman/vigil/internal/config"
	"github.com/ayusman/vigil/internal/metrics"
	"github.com/ayusman/vigil/internal/server/api"
	"github.com/ayusman/vigil/internal/store"
)

// DefaultMaxFrameBytes bounds one websocket message or detect request body.
const DefaultMaxFrameBytes = 8 << 20

// errProfilesUnavailable is returned when a profile is requested without a store.
var errProfilesUnavailable = errors.New("profiles are not available")

// Config holds the server configuration.
type Config struct {
	StaticDir     string
	Store         *store.Store
	Pipeline      *app.Pipeline
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	MaxFrameBytes int64
}

// Server represents the HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	start    time.Time
	logger   *zap.Logger
	profiles *api.ProfileHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.MaxFrameBytes <= 0 {
		config.MaxFrameBytes = DefaultMaxFrameBytes
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: config.Logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		defaults := config.DefaultThresholds()
		if s.config.Pipeline != nil {
			defaults = s.config.Pipeline.Tracker().Thresholds()
		}
		s.profiles = api.NewProfileHandler(s.config.Store, defaults)
		settings := api.NewSettingsHandler(s.config.Store)

		s.mux.Handle("/api/profiles", s.profiles)
		s.mux.Handle("/api/profiles/", s.profiles)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)
	}

	if s.config.Pipeline != nil {
		s.mux.Handle("/api/sessions", api.NewSessionsHandler(s.config.Pipeline.Tracker()))
		s.mux.Handle("/ws", NewSessionHandler(s.config.Pipeline, s.resolveThresholds, s.logger, s.config.MaxFrameBytes))
		s.mux.Handle("/api/detect", NewDetectHandler(s.config.Pipeline, s.resolveThresholds, s.config.MaxFrameBytes))
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// resolveThresholds picks the thresholds of a new session from an optional
// profile name or id.
func (s *Server) resolveThresholds(profile string) (config.Thresholds, error) {
	if s.profiles != nil {
		return s.profiles.Resolve(profile)
	}
	if profile != "" {
		return config.Thresholds{}, fmt.Errorf("%w: %q", errProfilesUnavailable, profile)
	}
	return s.config.Pipeline.Tracker().Thresholds(), nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if p := s.config.Pipeline; p != nil {
		response["sessions"] = p.Tracker().Len()
		response["detector"] = p.HasDetector()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// HTTPServer returns an http.Server for addr, for callers that need
// graceful shutdown.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
