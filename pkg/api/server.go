package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/developer-mesh/expense-store/pkg/observability"
)

// Config holds HTTP server settings
type Config struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// Server serves the expense API
type Server struct {
	server *http.Server
	logger observability.Logger
}

// NewRouter wires middleware and routes. A nil gatherer disables /metrics.
func NewRouter(handler *ExpenseHandler, logger observability.Logger, metrics observability.MetricsClient, gatherer prometheus.Gatherer) *gin.Engine {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}

	router := gin.New()
	router.Use(RequestID())
	router.Use(Tracing())
	router.Use(RequestLogger(logger))
	router.Use(MetricsMiddleware(metrics))
	router.Use(RecoveryMiddleware(logger))

	router.GET("/health", handler.Health)
	if gatherer != nil {
		router.GET("/metrics", MetricsHandler(gatherer))
	}

	v1 := router.Group("/api/v1")
	handler.RegisterRoutes(v1)

	return router
}

// NewServer creates a new API server
func NewServer(cfg Config, router *gin.Engine, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Server{
		server: &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting API server", map[string]interface{}{
		"address": s.server.Addr,
	})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the API server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
