// Package api serves the tower-jumps REST API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/geo"
	"github.com/jonnison/tower-jumps/internal/inference"
	"github.com/jonnison/tower-jumps/internal/metrics"
	"github.com/jonnison/tower-jumps/internal/store"
)

// Options tunes the HTTP surface. Zero values disable the corresponding
// middleware.
type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

// Server holds the API dependencies.
type Server struct {
	store    store.Store
	svc      *inference.Service
	resolver geo.RegionResolver
	metrics  *metrics.Collector
	opts     Options
	validate *validator.Validate
	log      *zap.Logger
}

// New creates a Server. collector may be nil.
func New(st store.Store, svc *inference.Service, resolver geo.RegionResolver, collector *metrics.Collector, opts Options) *Server {
	return &Server{
		store:    st,
		svc:      svc,
		resolver: resolver,
		metrics:  collector,
		opts:     opts,
		validate: newValidator(),
		log:      zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.opts.RateLimitRPS > 0 {
			r.Use(newRateLimiter(s.opts.RateLimitRPS, s.opts.RateLimitBurst).Middleware)
		}
		if s.opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
		}

		r.Route("/regions", func(r chi.Router) {
			r.Get("/", s.handleListRegions)
			r.Post("/", s.handleCreateRegion)
			r.Get("/{code}", s.handleGetRegion)
		})

		r.Route("/subscribers", func(r chi.Router) {
			r.Get("/", s.handleListSubscribers)
			r.Post("/", s.handleCreateSubscriber)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSubscriber)
				r.Delete("/", s.handleDeleteSubscriber)
				r.Get("/infer", s.handleInfer)
				r.Get("/pings", s.handleListPings)
			})
		})

		r.Route("/subscriber-pings", func(r chi.Router) {
			r.Post("/", s.handleCreatePing)
			r.Get("/{id}", s.handleGetPing)
			r.Delete("/{id}", s.handleDeletePing)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
