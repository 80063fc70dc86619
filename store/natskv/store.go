// Package natskv implements a LeaseStore on a NATS JetStream KeyValue bucket.
//
// Each lease is one key whose value is the JSON-encoded record. The KV
// revision is the version token: Create maps to KeyValue.Create (fails if the
// key exists) and CompareAndSwap maps to KeyValue.Update with the expected
// revision, which the server rejects once any other write has landed.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/solo/internal/codec"
	"github.com/arloliu/solo/internal/hash"
	"github.com/arloliu/solo/internal/kvutil"
	"github.com/arloliu/solo/internal/logger"
	"github.com/arloliu/solo/internal/natsutil"
	"github.com/arloliu/solo/types"
)

// DefaultBucket is the bucket used when Config.Bucket is empty.
const DefaultBucket = "solo-leases"

// Compile-time assertion that Store implements LeaseStore.
var _ types.LeaseStore = (*Store)(nil)

var validKey = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

// Config configures the NATS KV store.
type Config struct {
	// Bucket is the KV bucket holding lease records. Default: "solo-leases".
	Bucket string `yaml:"bucket"`
	// Scope prefixes every key, usually the namespace.
	Scope string `yaml:"scope"`
	// Replicas is the bucket replica count when the bucket is created. Default: 1.
	Replicas int `yaml:"replicas"`
	// MemoryStorage keeps the bucket in memory instead of on disk.
	MemoryStorage bool `yaml:"memoryStorage"`
}

// Store is a LeaseStore backed by a JetStream KV bucket.
type Store struct {
	kv     jetstream.KeyValue
	scope  string
	logger types.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l types.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New ensures the lease bucket exists and returns a store on it.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - nc: Connected NATS client
//   - cfg: Store configuration
//   - opts: Optional logger
//
// Returns:
//   - *Store: Store ready for use
//   - error: Bucket creation or JetStream error
//
// Example:
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	store, err := natskv.New(ctx, nc, natskv.Config{Scope: "default"})
func New(ctx context.Context, nc *nats.Conn, cfg Config, opts ...Option) (*Store, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	storage := jetstream.FileStorage
	if cfg.MemoryStorage {
		storage = jetstream.MemoryStorage
	}

	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, kvutil.LeaseBucketConfig(bucket, cfg.Replicas, storage), kvutil.DefaultMaxRetries)
	if err != nil {
		return nil, err
	}

	return NewWithKeyValue(kv, cfg.Scope, opts...), nil
}

// NewWithKeyValue returns a store on an existing bucket.
func NewWithKeyValue(kv jetstream.KeyValue, scope string, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		scope:  scope,
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Key returns the KV key used for a lease in the given scope.
//
// "scope.name" (or "name" without a scope) is used when it is a valid KV
// key; otherwise the key is "lease." followed by the xxh3 digest of scope
// and name.
func Key(scope, name string) string {
	key := name
	if scope != "" {
		key = scope + "." + name
	}
	if validKey.MatchString(key) && key[0] != '.' && key[len(key)-1] != '.' {
		return key
	}

	return "lease." + hash.Hex(scope, name)
}

// Get reads the lease record.
func (s *Store) Get(ctx context.Context, name string) (*types.LeaseRecord, error) {
	entry, err := s.kv.Get(ctx, Key(s.scope, name))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, fmt.Errorf("%w: lease %q", types.ErrNotFound, name)
		}

		return nil, s.storeError("get", name, err)
	}

	return codec.Unmarshal(entry.Value(), revision(entry.Revision()))
}

// Create writes the record if the key does not exist.
func (s *Store) Create(ctx context.Context, rec *types.LeaseRecord) error {
	data, err := codec.Marshal(rec)
	if err != nil {
		return err
	}

	if _, err := s.kv.Create(ctx, Key(s.scope, rec.Name), data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("%w: lease %q", types.ErrAlreadyExists, rec.Name)
		}

		return s.storeError("create", rec.Name, err)
	}

	return nil
}

// CompareAndSwap updates the record if the key is still at revision expected.
func (s *Store) CompareAndSwap(ctx context.Context, rec *types.LeaseRecord, expected types.Version) (types.Version, error) {
	data, err := codec.Marshal(rec)
	if err != nil {
		return types.NoVersion, err
	}

	rev, err := strconv.ParseUint(string(expected), 10, 64)
	if err != nil {
		return types.NoVersion, fmt.Errorf("%w: lease %q has non-numeric version %q", types.ErrVersionConflict, rec.Name, expected)
	}

	next, err := s.kv.Update(ctx, Key(s.scope, rec.Name), data, rev)
	if err != nil {
		if natsutil.IsWrongLastRevision(err) || errors.Is(err, jetstream.ErrKeyExists) {
			return types.NoVersion, fmt.Errorf("%w: lease %q moved past revision %d", types.ErrVersionConflict, rec.Name, rev)
		}

		return types.NoVersion, s.storeError("update", rec.Name, err)
	}

	return revision(next), nil
}

func (s *Store) storeError(op, name string, err error) error {
	if natsutil.IsConnectivityError(err) {
		s.logger.Warn("NATS unreachable", "op", op, "lease", name, "error", err)
		return fmt.Errorf("%w: %w: %w", types.ErrStore, types.ErrConnectivity, err)
	}

	return fmt.Errorf("%w: %s lease %q: %w", types.ErrStore, op, name, err)
}

func revision(rev uint64) types.Version {
	return types.Version(strconv.FormatUint(rev, 10))
}
