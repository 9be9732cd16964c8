// Package web provides the HTTP API for mapped file imports.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/JonMunkholm/ledgerimport/internal/config"
	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/web/middleware"
)

// sessionParam matches session IDs only, so POST /imports/{kind} and
// /imports/{id} can share a prefix.
const sessionParam = "{id:[0-9a-fA-F-]{36}}"

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithPinger makes /readyz check p.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithRateLimitStore shares limiter counters between servers.
func WithRateLimitStore(store limiter.Store) Option {
	return func(s *Server) { s.rateStore = store }
}

// Server is the HTTP server for the import API.
type Server struct {
	service   *core.Service
	cfg       *config.Config
	router    *chi.Mux
	server    *http.Server
	validate  *validator.Validate
	pinger    Pinger
	rateStore limiter.Store
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		router:   chi.NewRouter(),
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rateStore == nil {
		s.rateStore = middleware.NewMemoryStore()
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(api chi.Router) {
		if s.cfg.Rate.Enabled {
			api.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: int64(s.cfg.Rate.RequestsPerMinute),
				Store:             s.rateStore,
				Prefix:            "api:",
			}))
		}
		api.Use(middleware.APIKeyAuth(s.cfg.Security))
		api.Use(middleware.Tenant(s.cfg.Security.DefaultTenant))

		// Long-lived responses: no request timeout.
		api.Get("/imports/"+sessionParam+"/progress", s.handleImportProgress)
		api.Get("/imports/"+sessionParam+"/result", s.handleImportResult)

		api.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.requestTimeout()))

			// Registry and templates
			r.Get("/kinds", s.handleListKinds)
			r.Get("/templates/{kind}", s.handleDownloadTemplate)

			// Upload
			r.With(s.uploadLimiter()).Post("/imports/{kind}", s.handleUpload)

			// Session steps
			r.Route("/imports/"+sessionParam, func(r chi.Router) {
				r.Get("/", s.handleGetImport)
				r.Delete("/", s.handleDiscardImport)
				r.With(s.uploadLimiter()).Put("/file", s.handleReplaceFile)
				r.Put("/mappings", s.handleUpdateMappings)
				r.Get("/suggestions", s.handleSuggestions)
				r.Post("/confirm", s.handleConfirm)
				r.Get("/preview", s.handlePreview)
				r.Post("/back", s.handleBack)
				r.Post("/start", s.handleStartImport)
				r.Post("/cancel", s.handleCancelImport)
				r.Post("/preset/{presetID}", s.handleApplyPreset)
			})

			// Mapping presets
			r.Get("/presets/{kind}", s.handleListPresets)
			r.Post("/presets/{kind}", s.handleCreatePreset)
			r.Get("/presets/{kind}/match", s.handleMatchPresets)
			r.Delete("/presets/id/{id}", s.handleDeletePreset)

			// Run history
			r.Get("/runs", s.handleListRuns)
		})
	})
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.Server.RequestTimeout > 0 {
		return s.cfg.Server.RequestTimeout
	}
	return 60 * time.Second
}

// uploadLimiter applies the tighter per-client upload budget.
func (s *Server) uploadLimiter() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerPeriod: int64(s.cfg.Rate.UploadLimit),
		Store:             s.rateStore,
		Prefix:            "upload:",
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

	slog.Info("starting server", "addr", s.server.Addr)
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
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// handleHealth reports liveness plus session and run counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.service.SessionCount(),
		"imports":  s.service.LimiterStatus(),
	})
}

// handleReady checks the database when one is configured.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.respondError(w, r, err, http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
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
