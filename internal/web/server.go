// Package web provides the HTTP surface of serve mode: a status page, the
// latest phonebook file, an export trigger and run history.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/cardbook/internal/config"
	"github.com/JonMunkholm/cardbook/internal/export"
	mw "github.com/JonMunkholm/cardbook/internal/web/middleware"
)

// Options configure a Server.
type Options struct {
	Security       config.SecurityConfig
	RequestTimeout time.Duration // Per-request timeout (default: 2m)
	RateLimit      int           // Requests per minute per client IP (default: 100)
	HistoryLimit   int           // Default number of runs listed (default: 50)
	Metrics        http.Handler  // Served at /metrics when set
}

// Server is the HTTP server for serve mode.
type Server struct {
	exporter *export.Service
	opts     Options
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance.
func NewServer(exporter *export.Service, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 100
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}

	s := &Server{
		exporter: exporter,
		opts:     opts,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.opts.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.opts.RequestTimeout))
	s.router.Use(securityHeaders)
	s.router.Use(mw.NewRateLimiter(s.opts.RateLimit).Middleware)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleStatus)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/phonebook.csv", s.handlePhonebook)
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.With(mw.APIKeyAuth(&s.opts.Security)).Post("/export", s.handleExport)
		r.Get("/runs", s.handleRuns)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.opts.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		// The status page has inline styles only
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
