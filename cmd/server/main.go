package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/developer-mesh/expense-store/pkg/api"
	"github.com/developer-mesh/expense-store/pkg/config"
	"github.com/developer-mesh/expense-store/pkg/database"
	"github.com/developer-mesh/expense-store/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("expenses-server").Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLoggerWithLevel("expenses-server", observability.ParseLogLevel(cfg.Logging.Level))
	gin.SetMode(gin.ReleaseMode)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}

	var (
		metrics  observability.MetricsClient = observability.NewNoopMetricsClient()
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewPrometheusMetricsClient(cfg.Metrics.Namespace, registry)
		gatherer = registry
	}

	provider := database.NewProvider(database.Config{
		Driver:         cfg.Database.Driver,
		DatabaseURL:    cfg.Database.URL,
		InsertPageSize: cfg.Database.InsertPageSize,
	}, logger)

	handler := api.NewExpenseHandler(
		database.NewProvisioner(provider, logger, metrics),
		database.NewBatchWriter(provider, cfg.Database.InsertPageSize, logger, metrics),
		database.NewSchemaInspector(provider, logger),
		cfg.Database.OperationTimeout,
		logger,
	)
	router := api.NewRouter(handler, logger, metrics, gatherer)

	server := api.NewServer(api.Config{
		ListenAddress: cfg.API.ListenAddress,
		ReadTimeout:   cfg.API.ReadTimeout,
		WriteTimeout:  cfg.API.WriteTimeout,
	}, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for interrupt signal or a listener failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("Received shutdown signal", nil)
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("API server failed: %v", err)
		}
		return
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracer shutdown error", map[string]interface{}{
			"error": err.Error(),
		})
	}
	logger.Info("Server stopped", nil)
}
