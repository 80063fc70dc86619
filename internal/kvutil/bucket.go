// Package kvutil provides helpers for NATS JetStream KeyValue buckets.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultMaxRetries is used when EnsureKVBucketWithRetry gets maxRetries <= 0.
const DefaultMaxRetries = 3

// LeaseBucketConfig returns the bucket configuration used for lease records.
//
// Lease buckets keep a single revision per key and never expire entries:
// expiry is decided by comparing the record's renew time against its lease
// duration, not by the bucket.
//
// Parameters:
//   - bucket: Bucket name
//   - replicas: Stream replicas (values < 1 become 1)
//   - storage: Backing storage type
//
// Returns:
//   - jetstream.KeyValueConfig: Bucket configuration
func LeaseBucketConfig(bucket string, replicas int, storage jetstream.StorageType) jetstream.KeyValueConfig {
	if replicas < 1 {
		replicas = 1
	}

	return jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "solo leader election leases",
		History:     1,
		Storage:     storage,
		Replicas:    replicas,
	}
}

// EnsureKVBucketWithRetry creates or opens a KV bucket with retry logic.
//
// Several agents usually start at once and race to create the bucket. Losing
// that race (ErrBucketExists) opens the existing bucket; other failures are
// retried with exponential backoff until maxRetries or ctx is done.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of attempts (default: 3)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Last error after all attempts
//
// Example:
//
//	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js,
//	    kvutil.LeaseBucketConfig("solo-leases", 1, jetstream.FileStorage), 3)
func EnsureKVBucketWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := range maxRetries {
		kv, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			return kv, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err = js.KeyValue(ctx, config.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		// 10ms, 20ms, 40ms...
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt is bounded by maxRetries
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
		config.Bucket, maxRetries, lastErr)
}
