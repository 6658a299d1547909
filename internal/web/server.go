// Package web provides the HTTP API for the overlay service.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/monoidalcat-ux/Impulse-overlay/internal/config"
	"github.com/monoidalcat-ux/Impulse-overlay/internal/core"
	"github.com/monoidalcat-ux/Impulse-overlay/internal/web/middleware"
)

// Server is the HTTP server for the overlay API.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	gatherer prometheus.Gatherer
	validate *validator.Validate
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server. Metrics are served from gatherer; a nil
// gatherer serves the default registry.
func NewServer(service *core.Service, cfg *config.Config, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		service:  service,
		cfg:      cfg,
		gatherer: gatherer,
		validate: newValidator(),
		router:   chi.NewRouter(),
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
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	general := func(next http.Handler) http.Handler { return next }
	uploads := general
	if s.cfg.Rate.Enabled {
		general = middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).Handler
		uploads = middleware.NewRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).Handler
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(general)

		// Uploads parse whole files and get a tighter budget.
		r.Group(func(r chi.Router) {
			r.Use(uploads)
			r.Post("/upload", s.handleUploadDataset)
			r.Post("/input-files/upload", s.handleUploadInputFile)
			r.Post("/name-list", s.handleUploadNameList)
		})

		// Datasets
		r.Get("/datasets/{id}", s.handleGetDataset)
		r.Post("/datasets/{id}/series", s.handleDatasetSeries)
		r.Post("/datasets/{id}/edit", s.handleEditDataset)
		r.Get("/datasets/{id}/export", s.handleExportDataset)
		r.Delete("/datasets/{id}", s.handleDeleteDataset)

		// Input files
		r.Get("/input-files", s.handleListInputFiles)
		r.Post("/input-files/edit", s.handleEditInputFile)
		r.Delete("/input-files/{id}", s.handleDeleteInputFile)
		r.Get("/input-files/{id}/export", s.handleExportInputFile)
		r.Get("/input-files/{id}/series/{name}", s.handleInputFileSeries)
		r.Post("/plot-series", s.handlePlotSeries)

		// Name list
		r.Get("/name-list", s.handleGetNameList)
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
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
