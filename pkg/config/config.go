// Package config loads kernel configuration from environment variables.
// Every value is validated at load time; a malformed setting is a fatal
// ConfigurationError, never a silently applied default.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Veridex-Labs/veridex/kernel/pkg/resilient"
	"github.com/Veridex-Labs/veridex/kernel/pkg/retention"
)

// ConfigurationError marks a startup-fatal misconfiguration.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// Config holds kernel configuration.
type Config struct {
	LogLevel    string
	CatalogPath string

	Retention retention.Policy

	// Probe target for the resilient store; empty disables probing.
	ProbeTarget  string
	ProbeTimeout time.Duration

	DurableBackend resilient.BackendConfig
	CachePath      string // SQLite cache; empty keeps the buffer in memory

	LedgerStore string // "memory", "sqlite", or "postgres"
	LedgerPath  string // SQLite file for the sqlite ledger store
	LedgerDSN   string // DSN for the postgres ledger store

	// Ed25519 signing seed, hex-encoded. Empty generates an ephemeral dev key.
	SigningSeed []byte
	SigningKey  string

	// OTLP gRPC collector endpoint; empty disables telemetry export.
	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads and validates configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:     envOr("LOG_LEVEL", "INFO"),
		CatalogPath:  envOr("CATALOG_PATH", "rules.yaml"),
		ProbeTarget:  os.Getenv("PROBE_TARGET"),
		CachePath:    os.Getenv("CACHE_PATH"),
		LedgerStore:  envOr("LEDGER_STORE", "memory"),
		LedgerPath:   envOr("LEDGER_PATH", "ledger.db"),
		LedgerDSN:    os.Getenv("LEDGER_DSN"),
		SigningKey:   envOr("SIGNING_KEY_ID", "key-1"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}

	hotDays, err := envInt("RETENTION_HOT_DAYS", retention.DefaultHotDays)
	if err != nil {
		return nil, err
	}
	purgeDays, err := envInt("RETENTION_PURGE_DAYS", retention.DefaultPurgeDays)
	if err != nil {
		return nil, err
	}
	cfg.Retention = retention.Policy{HotDays: hotDays, PurgeDays: purgeDays}
	if err := cfg.Retention.Validate(); err != nil {
		return nil, &ConfigurationError{Key: "RETENTION_HOT_DAYS", Reason: err.Error()}
	}

	cfg.ProbeTimeout, err = envDuration("PROBE_TIMEOUT", resilient.DefaultProbeTimeout)
	if err != nil {
		return nil, err
	}

	if err := loadDurable(cfg); err != nil {
		return nil, err
	}

	switch cfg.LedgerStore {
	case "memory", "sqlite":
	case "postgres":
		if cfg.LedgerDSN == "" {
			return nil, &ConfigurationError{Key: "LEDGER_DSN", Reason: "required for the postgres ledger store"}
		}
	default:
		return nil, &ConfigurationError{Key: "LEDGER_STORE", Reason: fmt.Sprintf("unknown store %q", cfg.LedgerStore)}
	}

	cfg.OTLPInsecure, err = envBool("OTLP_INSECURE", false)
	if err != nil {
		return nil, err
	}

	if seedHex := os.Getenv("SIGNING_SEED"); seedHex != "" {
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, &ConfigurationError{Key: "SIGNING_SEED", Reason: "must be hex-encoded"}
		}
		if len(seed) < 16 {
			return nil, &ConfigurationError{Key: "SIGNING_SEED", Reason: "must be at least 16 bytes"}
		}
		cfg.SigningSeed = seed
	}

	return cfg, nil
}

func loadDurable(cfg *Config) error {
	backend := resilient.BackendType(envOr("DURABLE_BACKEND", string(resilient.BackendMemory)))
	cfg.DurableBackend.Type = backend

	switch backend {
	case resilient.BackendMemory:
	case resilient.BackendFS:
		cfg.DurableBackend.DataDir = envOr("DURABLE_DATA_DIR", "data")
	case resilient.BackendS3:
		cfg.DurableBackend.S3 = resilient.S3Config{
			Bucket:   os.Getenv("DURABLE_S3_BUCKET"),
			Region:   envOr("DURABLE_S3_REGION", envOr("AWS_REGION", "us-east-1")),
			Endpoint: os.Getenv("DURABLE_S3_ENDPOINT"),
			Prefix:   os.Getenv("DURABLE_S3_PREFIX"),
		}
		if cfg.DurableBackend.S3.Bucket == "" {
			return &ConfigurationError{Key: "DURABLE_S3_BUCKET", Reason: "required for the s3 backend"}
		}
	case resilient.BackendGCS:
		cfg.DurableBackend.GCS.Bucket = os.Getenv("DURABLE_GCS_BUCKET")
		cfg.DurableBackend.GCS.Prefix = os.Getenv("DURABLE_GCS_PREFIX")
		if cfg.DurableBackend.GCS.Bucket == "" {
			return &ConfigurationError{Key: "DURABLE_GCS_BUCKET", Reason: "required for the gcs backend"}
		}
	case resilient.BackendRedis:
		db, err := envInt("DURABLE_REDIS_DB", 0)
		if err != nil {
			return err
		}
		cfg.DurableBackend.Redis = resilient.RedisConfig{
			Addr:     os.Getenv("DURABLE_REDIS_ADDR"),
			Password: os.Getenv("DURABLE_REDIS_PASSWORD"),
			DB:       db,
			Prefix:   os.Getenv("DURABLE_REDIS_PREFIX"),
		}
		if cfg.DurableBackend.Redis.Addr == "" {
			return &ConfigurationError{Key: "DURABLE_REDIS_ADDR", Reason: "required for the redis backend"}
		}
	default:
		return &ConfigurationError{Key: "DURABLE_BACKEND", Reason: fmt.Sprintf("unknown backend %q", backend)}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Reason: fmt.Sprintf("not an integer: %q", v)}
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ConfigurationError{Key: key, Reason: fmt.Sprintf("not a boolean: %q", v)}
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Reason: fmt.Sprintf("not a duration: %q", v)}
	}
	if d <= 0 {
		return 0, &ConfigurationError{Key: key, Reason: "must be positive"}
	}
	return d, nil
}
