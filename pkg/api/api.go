// Package api hosts the HTTP dashboard: JSON endpoints over the counters,
// the recent-query log, and the mutable allow/deny lists.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"sink-hole/pkg/blocklist"
	"sink-hole/pkg/liststore"
	"sink-hole/pkg/stats"
)

// Server represents the API server
type Server struct {
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
	lists      *liststore.Store
	stats      *stats.Recorder
	blocklist  *blocklist.Manager
	startTime  time.Time
	version    string
}

// Config holds API server configuration
type Config struct {
	Lists         *liststore.Store
	Stats         *stats.Recorder
	Blocklist     *blocklist.Manager
	Logger        *slog.Logger
	ListenAddress string
	Version       string
}

// New creates a new API server
func New(cfg *Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		lists:     cfg.Lists,
		stats:     cfg.Stats,
		blocklist: cfg.Blocklist,
		logger:    cfg.Logger,
		version:   cfg.Version,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()

	// Dashboard page
	mux.HandleFunc("GET /{$}", s.handleDashboard)

	// Health check
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Statistics and logs
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/system", s.handleSystem)

	// List management
	mux.HandleFunc("POST /api/allowlist", s.handleUpdateAllowlist)
	mux.HandleFunc("POST /api/denylist", s.handleUpdateDenylist)
	mux.HandleFunc("POST /api/blocklist/refresh", s.handleBlocklistRefresh)

	handler := http.Handler(mux)
	handler = s.loggingMiddleware(handler)

	s.handler = handler
	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the API server
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the API server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	})
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs each request with its outcome and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
		)
	})
}
