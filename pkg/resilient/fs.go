package resilient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FSDurable writes objects as files under a base directory. The durable
// backend for single-node deployments without cloud storage.
type FSDurable struct {
	baseDir string
	mu      sync.Mutex
}

// NewFSDurable creates the base directory if needed.
func NewFSDurable(baseDir string) (*FSDurable, error) {
	//nolint:gosec // G301: 0755 is intentional for a shared data directory
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure durable dir: %w", err)
	}
	return &FSDurable{baseDir: baseDir}, nil
}

func (s *FSDurable) Write(ctx context.Context, key string, data []byte) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // G301: key segments become subdirectories
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to ensure object dir: %w", err)
	}

	// Write to temp, then rename
	tmpPath := path + ".tmp"
	//nolint:gosec // G306: 0644 is intentional for readable blob files
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to commit object: %w", err)
	}
	return nil
}

func (s *FSDurable) Name() string { return "fs" }

// objectPath rejects keys that would escape the base directory.
func (s *FSDurable) objectPath(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	path := filepath.Join(s.baseDir, filepath.FromSlash(key)+".blob")
	if !strings.HasPrefix(path, filepath.Clean(s.baseDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return path, nil
}
