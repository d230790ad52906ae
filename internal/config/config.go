// Package config loads and validates service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultServerAddress     = ":8085"
	defaultReadTimeout       = 10 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultSweepSchedule     = "*/10 * * * *"
	defaultReconcileInterval = time.Minute
	defaultLeaseTimeout      = 10 * time.Minute
	defaultDueAfter          = 24 * time.Hour
	defaultWorkerConcurrency = 4
	defaultWorkerBatchSize   = 10
	defaultBlockTimeout      = 5 * time.Second
	defaultClaimMinIdle      = 5 * time.Minute
	defaultConsumerGroup     = "executors"
	defaultStreamPrefix      = "mindshare"
)

// Config is the top-level service configuration.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Worker    WorkerConfig    `yaml:"worker"`
	Providers ProvidersConfig `yaml:"providers"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	StreamPrefix string `yaml:"stream_prefix"`
}

// SchedulerConfig controls the due-prompt sweep and the reconciliation pass.
type SchedulerConfig struct {
	// SweepSchedule is a standard 5-field cron expression.
	SweepSchedule string `yaml:"sweep_schedule"`
	// DueAfter is how stale a prompt's last run must be before it is due.
	DueAfter time.Duration `yaml:"due_after"`
	// ReconcileInterval is how often finished runs are stamped and stale
	// processing jobs reclaimed.
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	// LeaseTimeout is how long a job may sit in processing before the
	// reconciler assumes the executor crashed and re-queues it.
	LeaseTimeout time.Duration `yaml:"lease_timeout"`
}

// WorkerConfig controls the queue-consuming executor pool.
type WorkerConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	BatchSize     int64         `yaml:"batch_size"`
	BlockTimeout  time.Duration `yaml:"block_timeout"`
	ClaimMinIdle  time.Duration `yaml:"claim_min_idle"`
	ConsumerGroup string        `yaml:"consumer_group"`
}

// ProvidersConfig carries API credentials for the model adapters. Keys are
// normally supplied via environment, not the config file.
type ProvidersConfig struct {
	OpenAIKey     string `yaml:"openai_key"`
	AnthropicKey  string `yaml:"anthropic_key"`
	OpenRouterKey string `yaml:"openrouter_key"`
	XAIKey        string `yaml:"xai_key"`
}

// AuthConfig holds the shared secret gating privileged endpoints.
type AuthConfig struct {
	SharedSecret string `yaml:"shared_secret"`
}

// Load reads the config file, applies environment overrides, fills defaults,
// and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values for
// credentials and connection settings.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"DB_HOST":            &cfg.Database.Host,
		"DB_PORT":            &cfg.Database.Port,
		"DB_USER":            &cfg.Database.User,
		"DB_PASSWORD":        &cfg.Database.Password,
		"DB_NAME":            &cfg.Database.DBName,
		"REDIS_ADDR":         &cfg.Redis.Addr,
		"REDIS_PASSWORD":     &cfg.Redis.Password,
		"CRON_SECRET":        &cfg.Auth.SharedSecret,
		"OPENAI_API_KEY":     &cfg.Providers.OpenAIKey,
		"ANTHROPIC_API_KEY":  &cfg.Providers.AnthropicKey,
		"OPENROUTER_API_KEY": &cfg.Providers.OpenRouterKey,
		"XAI_API_KEY":        &cfg.Providers.XAIKey,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultServerAddress
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Redis.StreamPrefix == "" {
		cfg.Redis.StreamPrefix = defaultStreamPrefix
	}
	if cfg.Scheduler.SweepSchedule == "" {
		cfg.Scheduler.SweepSchedule = defaultSweepSchedule
	}
	if cfg.Scheduler.DueAfter <= 0 {
		cfg.Scheduler.DueAfter = defaultDueAfter
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = defaultReconcileInterval
	}
	if cfg.Scheduler.LeaseTimeout <= 0 {
		cfg.Scheduler.LeaseTimeout = defaultLeaseTimeout
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = defaultWorkerConcurrency
	}
	if cfg.Worker.BatchSize <= 0 {
		cfg.Worker.BatchSize = defaultWorkerBatchSize
	}
	if cfg.Worker.BlockTimeout <= 0 {
		cfg.Worker.BlockTimeout = defaultBlockTimeout
	}
	if cfg.Worker.ClaimMinIdle <= 0 {
		cfg.Worker.ClaimMinIdle = defaultClaimMinIdle
	}
	if cfg.Worker.ConsumerGroup == "" {
		cfg.Worker.ConsumerGroup = defaultConsumerGroup
	}
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Auth.SharedSecret == "" {
		return errors.New("auth.shared_secret is required (set CRON_SECRET)")
	}
	return nil
}
