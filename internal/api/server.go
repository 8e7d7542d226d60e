package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/shopcore/internal/domain"
	"github.com/opensource-finance/shopcore/internal/metrics"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Dependencies, version string) *Server {
	handler := NewHandler(deps, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)            // CORS for browser clients
	router.Use(RecoverMiddleware)         // Recover from panics
	router.Use(TracingMiddleware)         // OpenTelemetry tracing
	router.Use(LoggingMiddleware)         // Request logging
	router.Use(metrics.InstrumentHandler) // Prometheus request metrics
	router.Use(middleware.RealIP)         // Extract real IP
	router.Use(middleware.Compress(5))    // Gzip compression
	router.Use(OriginMiddleware)          // store-api / api / system

	// Probes (no sales channel required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	negotiate := NegotiationMiddleware(handler.deps.Factories)

	// Storefront routes (sales channel required)
	router.Route("/store-api", func(r chi.Router) {
		r.Use(SalesChannelMiddleware)
		r.Use(negotiate)

		r.Post("/product-listing/{categoryId}", handler.ProductListing)
		r.Get("/payment-method", handler.PaymentMethods)
		r.Get("/product/{productId}/buy-box", handler.BuyBox)
	})

	// Admin routes
	router.Route("/api", func(r chi.Router) {
		r.Use(negotiate)

		// Catalogue writes
		r.Post("/product", handler.SaveProduct)
		r.Post("/product-review", handler.SaveReview)
		r.Post("/payment-method", handler.SavePaymentMethod)

		// Rule management
		r.Get("/rule/{ruleId}/conditions", handler.ListRuleConditions)
		r.Post("/rule/{ruleId}/conditions", handler.ReplaceRuleConditions)
		r.Post("/rule/{ruleId}/match", handler.MatchRule)

		// Feature flags
		r.Get("/_info/features", handler.ListFeatures)
		r.Patch("/_action/feature/{name}", handler.ToggleFeature)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
