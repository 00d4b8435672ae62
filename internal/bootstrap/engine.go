// Package bootstrap assembles the engine from configuration: connections,
// repositories, and application services.  Both binaries and the CLI build
// on it so the wiring lives in one place.
package bootstrap

import (
	"github.com/ecocomply/compliance-engine/internal/application/lifecycle"
	riskapp "github.com/ecocomply/compliance-engine/internal/application/risk"
	"github.com/ecocomply/compliance-engine/internal/application/scheduling"
	"github.com/ecocomply/compliance-engine/internal/config"
	"github.com/ecocomply/compliance-engine/internal/domain/deadline"
	"github.com/ecocomply/compliance-engine/internal/domain/obligation"
	"github.com/ecocomply/compliance-engine/internal/domain/risk"
	"github.com/ecocomply/compliance-engine/internal/domain/schedule"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/database/postgres"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/database/postgres/repositories"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/database/redis"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/messaging/kafka"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/prometheus"
)

// Engine bundles every wired component.  Callers pick what they need; Close
// releases the connections in reverse dependency order.
type Engine struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *prometheus.Metrics

	DB       *postgres.Connection
	Redis    *redis.Client
	Producer *kafka.Producer

	Schedules   schedule.Repository
	Deadlines   deadline.Repository
	Obligations obligation.Repository
	Events      obligation.EventRepository
	Scores      risk.Repository

	Calculator *schedule.Calculator
	Scheduling scheduling.Service
	Lifecycle  lifecycle.Service
	Risk       riskapp.Service
}

// Option tweaks the assembly for a specific binary.
type Option func(*options)

type options struct {
	withRedis bool
	withKafka bool
}

// WithRedis connects the Redis client and uses it for the distributed
// recompute lock.
func WithRedis() Option { return func(o *options) { o.withRedis = true } }

// WithKafka connects the producer and publishes lifecycle and risk signals.
// Ignored when kafka.enabled is false in the configuration.
func WithKafka() Option { return func(o *options) { o.withKafka = true } }

// New assembles the engine.  The database connection is always established;
// Redis and Kafka only on request.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		Config:  cfg,
		Logger:  logger,
		Metrics: prometheus.NewMetrics(),
	}

	db, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	e.DB = db

	if o.withRedis {
		rc, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.Redis = rc
	}

	var lifecycleNotifier lifecycle.Notifier = lifecycle.NopNotifier{}
	var riskNotifier riskapp.Notifier = riskapp.NopNotifier{}
	if o.withKafka && cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.ProducerRetries,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.Producer = producer
		notifier := kafka.NewNotifier(producer)
		lifecycleNotifier = notifier
		riskNotifier = notifier
	}

	e.Schedules = repositories.NewScheduleRepo(db, logger)
	e.Deadlines = repositories.NewDeadlineRepo(db, logger)
	e.Obligations = repositories.NewObligationRepo(db, logger)
	e.Events = repositories.NewEventRepo(db, logger)
	e.Scores = repositories.NewRiskRepo(db, logger)

	e.Calculator = schedule.NewCalculator(nil)
	tx := postgres.NewTxRunner(db)

	e.Scheduling = scheduling.NewService(
		e.Schedules, e.Deadlines, e.Obligations, e.Events,
		e.Calculator, tx, nil, logger)

	e.Lifecycle = lifecycle.NewService(
		e.Deadlines, e.Schedules, e.Calculator, tx,
		lifecycleNotifier, nil, e.Metrics, logger,
		lifecycle.Config{
			MaxRetries:   cfg.Sweep.MaxRetries,
			RetryBackoff: cfg.Sweep.RetryBackoff,
		})

	var locker riskapp.Locker
	var snapshotCache riskapp.SnapshotCache
	if e.Redis != nil {
		locker = redis.NewLocker(e.Redis, logger)
		snapshotCache = redis.NewCache(e.Redis, logger, cfg.Risk.SnapshotValidity)
	}
	e.Risk = riskapp.NewService(
		e.Scores, e.Deadlines, e.Obligations, e.Events,
		nil, snapshotCache, locker, riskNotifier, nil, e.Metrics, logger,
		riskapp.Config{
			SnapshotValidity: cfg.Risk.SnapshotValidity,
			LockTTL:          cfg.Risk.LockTTL,
		})

	return e, nil
}

// Close releases every held connection.  Safe on a partially assembled
// engine.
func (e *Engine) Close() {
	if e.Producer != nil {
		if err := e.Producer.Close(); err != nil {
			e.Logger.Warn("failed to close kafka producer", logging.Err(err))
		}
	}
	if e.Redis != nil {
		_ = e.Redis.Close()
	}
	if e.DB != nil {
		_ = e.DB.Close()
	}
}
