// Package server exposes health, metrics and the latest snapshot over HTTP in serve mode.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rewired-gh/marketpulse/internal/models"
)

// WeightsSource reports the weights the next snapshot will use.
type WeightsSource interface {
	ActiveWeights() models.WeightVector
}

// Config holds server configuration
type Config struct {
	Port    int
	Log     zerolog.Logger
	Metrics http.Handler
	Weights WeightsSource
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	port    int
	metrics http.Handler
	weights WeightsSource
	started time.Time

	mu     sync.RWMutex
	latest *models.Snapshot
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log,
		port:    cfg.Port,
		metrics: cfg.Metrics,
		weights: cfg.Weights,
		started: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/weights", s.handleWeights)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetSnapshot replaces the snapshot served by /api/snapshot.
func (s *Server) SetSnapshot(snap *models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snap
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	snap := s.latest
	s.mu.RUnlock()

	if snap == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleWeights(w http.ResponseWriter, _ *http.Request) {
	if s.weights == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "weights unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.weights.ActiveWeights())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
