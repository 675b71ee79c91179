// Package server implements the PicStash HTTP server and route multiplexer.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/picstash/picstash/internal/admission"
	"github.com/picstash/picstash/internal/config"
	apierr "github.com/picstash/picstash/internal/errors"
	"github.com/picstash/picstash/internal/handlers"
	"github.com/picstash/picstash/internal/imageproc"
	"github.com/picstash/picstash/internal/index"
	"github.com/picstash/picstash/internal/storage"
)

// Version is the server version reported by the health endpoint.
const Version = "1.0.0"

// Server is the PicStash HTTP server. It routes upload, delete, and serve
// requests to their handlers behind auth and admission middleware.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	api        huma.API
	store      storage.Backend
	index      index.Store
	limiter    admission.Limiter
	upload     *handlers.UploadHandler
	delete     *handlers.DeleteHandler
	serve      *handlers.ServeHandler
	stats      *handlers.StatsHandler
	httpServer *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status    string `json:"status" example:"ok" doc:"Health status, ok or degraded"`
	Timestamp string `json:"timestamp" doc:"Server time, RFC 3339"`
	Version   string `json:"version" example:"1.0.0" doc:"Server version"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// RootBody is the service descriptor returned at the root path.
type RootBody struct {
	Service   string            `json:"service" example:"picstash" doc:"Service name"`
	Version   string            `json:"version" example:"1.0.0" doc:"Server version"`
	Endpoints map[string]string `json:"endpoints" doc:"Endpoint map"`
}

// RootOutput is the Huma output struct for the root endpoint.
type RootOutput struct {
	Body RootBody
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithBackend sets the storage backend for the server.
func WithBackend(store storage.Backend) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithIndex sets the upload index for the server.
func WithIndex(idx index.Store) Option {
	return func(s *Server) {
		s.index = idx
	}
}

// WithLimiter sets the admission limiter for the server.
func WithLimiter(l admission.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// New creates a Server with the given configuration and wires all routes on
// the Chi router with a Huma API for health and docs. Unless overridden via
// options, the limiter is a sliding window built from the configured limits.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("PicStash API", Version)
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{
		cfg:    cfg,
		router: router,
		api:    api,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = admission.NewSlidingWindow(
			time.Duration(cfg.Limits.RateWindow)*time.Second, cfg.Limits.RateMax)
	}

	normalizer := imageproc.New(cfg.Image.MaxDimension, cfg.Image.JPEGQuality)
	s.upload = handlers.NewUploadHandler(cfg, s.store, s.index, normalizer)
	s.delete = handlers.NewDeleteHandler(cfg, s.store, s.index)
	s.serve = handlers.NewServeHandler(cfg, s.store)
	s.stats = handlers.NewStatsHandler(s.index)

	s.registerRoutes()
	return s, nil
}

// Handler returns the full middleware-wrapped handler chain. Exposed so
// tests can drive the server through httptest without a listener.
// Chain: metricsMiddleware -> commonHeaders -> cors -> rateLimit -> router.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router
	handler = rateLimitMiddleware(s.limiter)(handler)
	handler = cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
		MaxAge:         300,
	})(handler)
	handler = commonHeaders(handler)
	handler = metricsMiddleware(handler)
	return handler
}

// ListenAndServe starts the HTTP server on the given address. The returned
// http.Server is stored so it can be shut down gracefully.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes configures all routes on the Chi router. Huma routes
// (/health, /docs, /openapi.json) and /metrics are open; upload and delete
// routes require the API key; object serving and stats are open reads.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the PicStash server.",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		status := "ok"
		if s.store != nil {
			if err := s.store.HealthCheck(ctx); err != nil {
				slog.Warn("backend health check failed", "error", err)
				status = "degraded"
			}
		}
		return &HealthOutput{Body: HealthBody{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-root",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Service descriptor",
		Description: "Returns the service name, version, and endpoint map.",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*RootOutput, error) {
		endpoints := map[string]string{
			"upload":          "POST /upload/{namespace}",
			"upload_multiple": "POST /upload-multiple/{namespace}",
			"delete":          "DELETE /delete",
			"delete_by_url":   "DELETE /delete-by-url",
			"serve":           "GET /uploads/{namespace}/{filename}",
			"health":          "GET /health",
			"docs":            "GET /docs",
			"metrics":         "GET /metrics",
		}
		if s.index != nil {
			endpoints["stats"] = "GET /stats"
		}
		return &RootOutput{Body: RootBody{
			Service:   "picstash",
			Version:   Version,
			Endpoints: endpoints,
		}}, nil
	})

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(requireAPIKey(s.cfg.Auth.APIKey))
		r.Post("/upload/{namespace}", s.upload.Single)
		r.Post("/upload-multiple/{namespace}", s.upload.Multiple)
		r.Delete("/delete", s.delete.ByName)
		r.Delete("/delete-by-url", s.delete.ByURL)
	})

	s.router.Get("/uploads/{namespace}/{filename}", s.serve.Object)
	s.router.Get("/stats", s.stats.Stats)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, apierr.ErrNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, apierr.ErrNotFound)
	})
}
