//go:build gcp

package resilient

import "context"

func newGCSDurable(ctx context.Context, bucket, prefix string) (DurableStore, error) {
	return NewGCSDurable(ctx, GCSConfig{Bucket: bucket, Prefix: prefix})
}
