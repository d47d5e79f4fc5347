//go:build gcp

package resilient

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSDurable writes objects to Google Cloud Storage.
type GCSDurable struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSConfig holds configuration for GCSDurable.
type GCSConfig struct {
	Bucket string
	Prefix string // Optional key prefix
}

// NewGCSDurable creates a GCS-backed durable store. Uses ADC credentials.
func NewGCSDurable(ctx context.Context, cfg GCSConfig) (*GCSDurable, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSDurable{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSDurable) Write(ctx context.Context, key string, data []byte) error {
	obj := s.client.Bucket(s.bucket).Object(s.prefix + key)

	// Idempotent: a key already written by a previous reconcile run is a no-op.
	_, err := obj.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs attrs error for %s: %w", key, err)
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed for %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed for %s: %w", key, err)
	}
	return nil
}

func (s *GCSDurable) Name() string { return "gcs" }

// Close closes the GCS client.
func (s *GCSDurable) Close() error {
	return s.client.Close()
}
