// Package web provides the HTTP API and dashboard for the sales pipeline.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/salesunifier/internal/config"
	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/JonMunkholm/salesunifier/internal/store"
	webmw "github.com/JonMunkholm/salesunifier/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StoredHistory lists persisted fixes. It is nil when persistence is off.
type StoredHistory interface {
	Recent(ctx context.Context, limit int) ([]store.StoredFix, error)
}

// Server is the HTTP server for the sales pipeline.
type Server struct {
	pipeline *core.Pipeline
	cfg      *config.Config
	history  StoredHistory
	gatherer prometheus.Gatherer
	router   *chi.Mux
	server   *http.Server
	now      func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithStoredHistory exposes persisted fixes under /api/fix-history/stored.
func WithStoredHistory(h StoredHistory) Option {
	return func(s *Server) { s.history = h }
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates a new Server instance.
func NewServer(pipeline *core.Pipeline, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		pipeline: pipeline,
		cfg:      cfg,
		gatherer: prometheus.DefaultGatherer,
		router:   chi.NewRouter(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleDashboard)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(&s.cfg.Security))

		// Reads are bounded by the request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/status", s.handleStatus)
			r.Get("/exceptions", s.handleExceptions)
			r.Get("/consolidated", s.handleConsolidated)
			r.Get("/fix-history", s.handleFixHistory)
			r.Get("/fix-history/stored", s.handleStoredHistory)
			r.Get("/export/consolidated", s.handleExportConsolidated)
			r.Get("/export/fix-history", s.handleExportFixHistory)
		})

		// Pipeline operations call the assistant and may run for minutes.
		r.Group(func(r chi.Router) {
			r.Use(operationTimeout(s.cfg.Server.OperationTimeout))

			r.Post("/files", s.handleProcessFiles)
			r.Post("/exceptions/fix-all", s.handleFixAll)
			r.Post("/exceptions/{index}/fix", s.handleFixException)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
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

// operationTimeout bounds a pipeline operation without writing a 504 itself;
// the handler maps the deadline error like any other.
func operationTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
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
