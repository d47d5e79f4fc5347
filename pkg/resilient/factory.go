package resilient

import (
	"context"
	"fmt"
)

// BackendType selects the durable storage backend.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendFS     BackendType = "fs"
	BackendS3     BackendType = "s3"
	BackendGCS    BackendType = "gcs"
	BackendRedis  BackendType = "redis"
)

// BackendConfig carries the settings for every backend; only the section
// matching Type is read.
type BackendConfig struct {
	Type    BackendType
	DataDir string // fs
	S3      S3Config
	GCS     struct {
		Bucket string
		Prefix string
	}
	Redis RedisConfig
}

// NewDurable builds the configured durable backend. GCS requires the gcp
// build tag.
func NewDurable(ctx context.Context, cfg BackendConfig) (DurableStore, error) {
	switch cfg.Type {
	case BackendMemory, "":
		return NewMemoryDurable(), nil
	case BackendFS:
		return NewFSDurable(cfg.DataDir)
	case BackendS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 backend requires a bucket")
		}
		return NewS3Durable(ctx, cfg.S3)
	case BackendGCS:
		if cfg.GCS.Bucket == "" {
			return nil, fmt.Errorf("gcs backend requires a bucket")
		}
		return newGCSDurable(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis backend requires an address")
		}
		return NewRedisDurable(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported durable backend: %s", cfg.Type)
	}
}
