// Package api exposes the query service and the manual ingestion trigger
// over REST.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/gramseva/mgnrega-tracker/internal/config"
	"github.com/gramseva/mgnrega-tracker/internal/query"
)

// Refresher triggers an ingestion run.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// Server serves the dashboard REST API.
type Server struct {
	service   *query.Service
	refresher Refresher
	cfg       config.ServerConfig
	startedAt time.Time
}

// NewServer creates a Server over the given query service and refresher.
func NewServer(service *query.Service, refresher Refresher, cfg config.ServerConfig) *Server {
	return &Server{
		service:   service,
		refresher: refresher,
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

// Router builds the chi router with the full middleware stack and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rateLimit := s.cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 100
	}
	rateWindow := time.Duration(s.cfg.RateWindowMins) * time.Minute
	if rateWindow <= 0 {
		rateWindow = 15 * time.Minute
	}
	r.Use(httprate.LimitByIP(rateLimit, rateWindow))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/info", s.handleInfo)
		r.Get("/districts", s.handleDistricts)
		r.Get("/performance/{districtCode}", s.handlePerformance)
		r.Get("/district/{districtCode}/summary", s.handleSummary)
		r.Get("/compare", s.handleCompare)
		r.Get("/state-summary", s.handleStateSummary)
		r.Post("/refresh-data", s.handleRefresh)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "route not found")
	})

	return r
}

// requestLogger logs each request with method, path, status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
