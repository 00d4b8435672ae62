// Worker entry point: periodic deadline sweeps and batch risk recomputation.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ecocomply/compliance-engine/internal/bootstrap"
	"github.com/ecocomply/compliance-engine/internal/config"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/pkg/types/common"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultProbePort  = 8081
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	probePort := flag.Int("probe-port", defaultProbePort, "health probe listen port")
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
	logger = logger.Named("worker")

	engine, err := bootstrap.New(cfg, logger, bootstrap.WithRedis(), bootstrap.WithKafka())
	if err != nil {
		logger.Error("failed to assemble engine", logging.Err(err))
		os.Exit(1)
	}
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runSweepLoop(ctx, engine, logger)
	}()
	go func() {
		defer wg.Done()
		runRiskLoop(ctx, engine, logger)
	}()

	probe := startProbeServer(*probePort, engine, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("shutdown signal received", logging.String("signal", sig.String()))

	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = probe.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}

// runSweepLoop triggers one sweep per interval.  A sweep runs to completion
// even during shutdown; only the next tick is abandoned.
func runSweepLoop(ctx context.Context, engine *bootstrap.Engine, logger logging.Logger) {
	interval := engine.Config.Sweep.Interval
	if interval == 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := engine.Lifecycle.Sweep(context.Background())
			if err != nil {
				logger.Error("sweep failed", logging.Err(err))
				continue
			}
			logger.Info("sweep finished",
				logging.Int("examined", report.Examined),
				logging.Int("transitions", report.Transitions),
				logging.Int("reminders", report.RemindersFired),
				logging.Int("errors", report.Errors))
		}
	}
}

// runRiskLoop refreshes risk snapshots per interval for every tenant that
// carries sites.  The distributed lock keeps parallel workers from doing the
// same pass twice.
func runRiskLoop(ctx context.Context, engine *bootstrap.Engine, logger logging.Logger) {
	interval := engine.Config.Risk.RecomputeInterval
	if interval == 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tenants, err := listTenants(context.Background(), engine)
			if err != nil {
				logger.Error("tenant discovery failed", logging.Err(err))
				continue
			}
			for _, tenant := range tenants {
				sites, err := engine.Risk.RecomputeAll(context.Background(), tenant)
				if err != nil {
					logger.Error("risk recompute failed",
						logging.String("tenant_id", string(tenant)), logging.Err(err))
					continue
				}
				if sites > 0 {
					logger.Info("risk recompute finished",
						logging.String("tenant_id", string(tenant)),
						logging.Int("sites", sites))
				}
			}
		}
	}
}

// listTenants derives the tenant set from the active schedules.  Tenants
// without schedules carry no deadlines and therefore no risk inputs.
func listTenants(ctx context.Context, engine *bootstrap.Engine) ([]common.TenantID, error) {
	schedules, err := engine.Schedules.ListActive(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[common.TenantID]struct{})
	var tenants []common.TenantID
	for _, s := range schedules {
		if _, ok := seen[s.TenantID]; ok {
			continue
		}
		seen[s.TenantID] = struct{}{}
		tenants = append(tenants, s.TenantID)
	}
	return tenants, nil
}

func startProbeServer(port int, engine *bootstrap.Engine, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := engine.DB.HealthCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", engine.Metrics.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("probe server failed", logging.Err(err))
		}
	}()
	return srv
}
