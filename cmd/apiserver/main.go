// API server entry point: REST surface, metrics, and health probes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecocomply/compliance-engine/internal/bootstrap"
	"github.com/ecocomply/compliance-engine/internal/config"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	httpserver "github.com/ecocomply/compliance-engine/internal/interfaces/http"
	"github.com/ecocomply/compliance-engine/internal/interfaces/http/handlers"
	"github.com/ecocomply/compliance-engine/internal/interfaces/http/middleware"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	engine, err := bootstrap.New(cfg, logger, bootstrap.WithRedis(), bootstrap.WithKafka())
	if err != nil {
		logger.Error("failed to assemble engine", logging.Err(err))
		os.Exit(1)
	}
	defer engine.Close()

	readiness := map[string]handlers.Pinger{
		"postgres": pinger(engine.DB.HealthCheck),
	}
	if engine.Redis != nil {
		readiness["redis"] = engine.Redis
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		ScheduleHandler: handlers.NewScheduleHandler(engine.Scheduling, logger),
		DeadlineHandler: handlers.NewDeadlineHandler(engine.Lifecycle, logger),
		RiskHandler:     handlers.NewRiskHandler(engine.Risk, logger),
		HealthHandler:   handlers.NewHealthHandler(readiness),

		TenantMiddleware:    middleware.NewTenantMiddleware(cfg.Server.TenantHeader, logger),
		LoggingMiddleware:   middleware.NewLoggingMiddleware(logger, engine.Metrics),
		RateLimitMiddleware: middleware.NewRateLimitMiddleware(cfg.Server.RateLimitRPS),

		MetricsHandler: engine.Metrics.Handler(),
	})

	server := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", logging.Err(err))
			os.Exit(1)
		}
		return
	}

	if err := server.Stop(context.Background()); err != nil {
		logger.Error("graceful shutdown failed", logging.Err(err))
		os.Exit(1)
	}
}

// pinger adapts a health-check func to the readiness Pinger interface.
type pinger func(ctx context.Context) error

func (p pinger) Ping(ctx context.Context) error { return p(ctx) }
