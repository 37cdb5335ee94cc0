package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/sentiment-support-agent/internal/middleware"
	"github.com/capitalize-ai/sentiment-support-agent/internal/service"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Registry          *service.SessionRegistry
	Archive           *service.ArchiveService
	Store             Pinger
	Logger            *logger.Logger
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the chi router for the API.
func NewRouter(cfg RouterConfig) http.Handler {
	healthHandler := NewHealthHandler(cfg.Store)
	sessionHandler := NewSessionHandler(cfg.Registry, cfg.Logger)
	conversationHandler := NewConversationHandler(cfg.Archive, cfg.Logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Start)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/messages", sessionHandler.Send)
				r.Post("/end", sessionHandler.End)
				r.Get("/metrics", sessionHandler.Metrics)
			})
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Get("/stats", conversationHandler.Stats)
			r.Get("/search", conversationHandler.Search)
			r.Get("/{id}", conversationHandler.Get)
		})
	})

	return r
}
