// Package web provides the HTTP API for loading spreadsheets: upload a file
// for an entity and get its run report back, browse run history, audit a
// file without loading it.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/report"
	"github.com/JonMunkholm/sheet2neon/internal/service"
	"github.com/JonMunkholm/sheet2neon/internal/web/middleware"
)

// Server is the HTTP server.
type Server struct {
	service *service.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	limiter *middleware.RateLimiter
}

// NewServer wires routes for svc.
func NewServer(svc *service.Service, cfg *config.Config) *Server {
	s := &Server{
		service: svc,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	if cfg.Security.RequestsPerMinute > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.Security.RequestsPerMinute, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
}

// setupRoutes mounts everything. Runs are bounded by RUN_TIMEOUT inside the
// service, so only the other routes get the request timeout.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(s.cfg.Security.APIKeys))
		r.Post("/api/entities/{entity}/runs", s.handleRun)

		r.Group(func(r chi.Router) {
			if d := s.cfg.Server.RequestTimeout; d > 0 {
				r.Use(chimw.Timeout(d))
			}

			r.Get("/runs/{runID}", s.handleRunPage)
			r.Get("/api/entities", s.handleListEntities)
			r.Get("/api/template/{entity}", s.handleDownloadTemplate)
			r.Get("/api/runs", s.handleListRuns)
			r.Get("/api/runs/{runID}", s.handleGetRun)
			r.Post("/api/audit", s.handleAudit)
		})
	})
}

// Start listens until Shutdown. The rate limiter's sweeper stops with ctx.
func (s *Server) Start(ctx context.Context) error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}
	if s.limiter != nil {
		go s.limiter.Cleanup(ctx)
	}

	slog.Info("server starting", "addr", sc.Addr())
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

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes v with status. Encoding errors are only logged since the
// header is already out.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := report.WriteJSON(w, v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}
