// Package config defines all configuration structures for the compliance
// engine.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"time"

	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitRPS    int           `mapstructure:"rate_limit_rps"`
	TenantHeader    string        `mapstructure:"tenant_header"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds producer parameters for outbound signal topics.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	ProducerRetries int           `mapstructure:"producer_retries"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	Enabled         bool          `mapstructure:"enabled"`
}

// SweepConfig holds the lifecycle sweep tunables.
type SweepConfig struct {
	// Interval between periodic sweep passes in the worker.
	Interval time.Duration `mapstructure:"interval"`
	// MaxRetries bounds the per-schedule retry of transient persistence
	// failures.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryBackoff is the base delay for exponential backoff between retries.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// RiskConfig holds the risk scoring engine tunables.  Factor weights and caps
// are fixed in the domain layer; only operational knobs live here.
type RiskConfig struct {
	// RecomputeInterval between batch recomputation passes in the worker.
	RecomputeInterval time.Duration `mapstructure:"recompute_interval"`
	// SnapshotValidity is the validity window stamped on each snapshot.
	SnapshotValidity time.Duration `mapstructure:"snapshot_validity"`
	// LockTTL guards a tenant's batch pass against redundant workers.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// Config is the root configuration structure for the engine.
type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Database DatabaseConfig    `mapstructure:"database"`
	Redis    RedisConfig       `mapstructure:"redis"`
	Kafka    KafkaConfig       `mapstructure:"kafka"`
	Sweep    SweepConfig       `mapstructure:"sweep"`
	Risk     RiskConfig        `mapstructure:"risk"`
	Log      logging.LogConfig `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("config: database.max_open_conns must be >= 1, got %d", c.Database.MaxOpenConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker when kafka is enabled")
	}

	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("config: sweep.interval must be positive, got %s", c.Sweep.Interval)
	}
	if c.Sweep.MaxRetries < 0 {
		return fmt.Errorf("config: sweep.max_retries must be >= 0, got %d", c.Sweep.MaxRetries)
	}

	if c.Risk.RecomputeInterval <= 0 {
		return fmt.Errorf("config: risk.recompute_interval must be positive, got %s", c.Risk.RecomputeInterval)
	}
	if c.Risk.SnapshotValidity <= 0 {
		return fmt.Errorf("config: risk.snapshot_validity must be positive, got %s", c.Risk.SnapshotValidity)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
