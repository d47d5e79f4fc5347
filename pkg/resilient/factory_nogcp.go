//go:build !gcp

package resilient

import (
	"context"
	"fmt"
)

func newGCSDurable(ctx context.Context, bucket, prefix string) (DurableStore, error) {
	return nil, fmt.Errorf("gcs backend is not enabled in this build (use -tags gcp)")
}
