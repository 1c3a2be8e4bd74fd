// Package api exposes the quarry service over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kgm-ocak/ocak-map/internal/auth"
	"github.com/kgm-ocak/ocak-map/internal/monitoring"
	"github.com/kgm-ocak/ocak-map/internal/quarry"
	"github.com/kgm-ocak/ocak-map/pkg/directions"
)

// DefaultMaxUploadBytes caps KML/KMZ uploads and JSON bodies.
const DefaultMaxUploadBytes = 20 << 20

// Deps are the collaborators the handlers call.
type Deps struct {
	Quarries   *quarry.Service
	Auth       *auth.Service
	Directions directions.Client
	Health     monitoring.Pinger
	Metrics    *monitoring.Metrics
	Gatherer   prometheus.Gatherer
}

// Config holds HTTP-level limits.
type Config struct {
	MaxUploadBytes int64
	CORSOrigins    []string
}

// Server routes requests to the quarry, route and account handlers.
type Server struct {
	Deps
	cfg Config
}

// New creates a Server.
func New(deps Deps, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	return &Server{Deps: deps, cfg: cfg}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(instrument(s.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(s.Auth.Middleware)

	r.Get("/health", s.handleHealth)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/quarries", s.handleListQuarries)
		r.Get("/quarries/search", s.handleSearchQuarries)
		r.Get("/quarries/distances", s.handleDistances)
		r.Get("/quarries/{id}", s.handleGetQuarry)
		r.Get("/quarries.geojson", s.handleGeoJSON)
		r.With(requireUser).Get("/quarries.xlsx", s.handleXLSX)
		r.Get("/route", s.handleRoute)
		r.Get("/provinces", s.handleListProvinces)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/quarries", s.handleCreateQuarry)
			r.Post("/quarries/bulk", s.handleCreateBulk)
			r.Post("/quarries/import", s.handleImport)
			r.Patch("/quarries/{id}", s.handleUpdateQuarry)
			r.Delete("/quarries/{id}", s.handleDeleteQuarry)
			r.Post("/quarries/bulk-delete", s.handleDeleteBulk)
		})

		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/me", s.handleMe)

		r.Route("/admin/users", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", s.handleListUsers)
			r.Get("/pending", s.handlePendingUsers)
			r.Post("/", s.handleCreateUser)
			r.Patch("/{id}/role", s.handleUpdateRole)
			r.Post("/{id}/approve", s.handleApproveUser)
			r.Delete("/{id}", s.handleDeleteUser)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := monitoring.CheckHealth(r.Context(), s.Health)
	status := http.StatusOK
	if !h.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}
