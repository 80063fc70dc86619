// Package etcd implements a LeaseStore on etcd v3.
//
// Each lease is one key under a prefix holding the JSON-encoded record. The
// key's ModRevision is the version token. Create is a transaction guarded by
// CreateRevision == 0 and CompareAndSwap one guarded by ModRevision ==
// expected, so etcd's serializable transactions arbitrate contenders.
package etcd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/arloliu/solo/internal/codec"
	"github.com/arloliu/solo/types"
)

const (
	// DefaultPrefix is the key prefix used when Config.Prefix is empty.
	DefaultPrefix = "/solo/leases/"
	// DefaultDialTimeout is used when Config.DialTimeout is zero.
	DefaultDialTimeout = 5 * time.Second
)

// Compile-time assertion that Store implements LeaseStore.
var _ types.LeaseStore = (*Store)(nil)

// Config configures the etcd store.
type Config struct {
	// Endpoints of the etcd cluster.
	Endpoints []string `yaml:"endpoints"`
	// Prefix of lease keys. The scope, if any, is appended. Default: "/solo/leases/".
	Prefix string `yaml:"prefix"`
	// Scope groups leases below the prefix, usually the namespace.
	Scope string `yaml:"scope"`
	// DialTimeout bounds the initial connection. Default: 5s.
	DialTimeout time.Duration `yaml:"dialTimeout"`
	// Username and Password enable etcd authentication.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Store is a LeaseStore backed by an etcd key prefix.
type Store struct {
	kv     clientv3.KV
	prefix string
	client *clientv3.Client
}

// New connects to etcd and returns a store that closes the client on Close.
//
// Parameters:
//   - cfg: Endpoints, prefix and credentials
//
// Returns:
//   - *Store: Store ready for use
//   - error: Client creation error
//
// Example:
//
//	store, err := etcd.New(etcd.Config{Endpoints: []string{"127.0.0.1:2379"}, Scope: "default"})
//	defer store.Close()
func New(cfg Config) (*Store, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("%w: etcd endpoints are required", types.ErrInvalidConfig)
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	s := NewWithKV(client.KV, KeyPrefix(cfg.Prefix, cfg.Scope))
	s.client = client

	return s, nil
}

// NewWithKV returns a store using an existing KV and a full key prefix.
func NewWithKV(kv clientv3.KV, prefix string) *Store {
	return &Store{kv: kv, prefix: prefix}
}

// KeyPrefix joins prefix and scope into a key prefix ending in "/".
func KeyPrefix(prefix, scope string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if scope != "" {
		prefix += strings.Trim(scope, "/") + "/"
	}

	return prefix
}

// Close closes the etcd client if the store created it.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}

	return s.client.Close()
}

// Get reads the lease record.
func (s *Store) Get(ctx context.Context, name string) (*types.LeaseRecord, error) {
	resp, err := s.kv.Get(ctx, s.key(name))
	if err != nil {
		return nil, fmt.Errorf("%w: get lease %q: %w", types.ErrStore, name, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: lease %q", types.ErrNotFound, name)
	}

	kv := resp.Kvs[0]

	return codec.Unmarshal(kv.Value, revision(kv.ModRevision))
}

// Create writes the record if the key has never been created (or was deleted).
func (s *Store) Create(ctx context.Context, rec *types.LeaseRecord) error {
	data, err := codec.Marshal(rec)
	if err != nil {
		return err
	}

	key := s.key(rec.Name)
	resp, err := s.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("%w: create lease %q: %w", types.ErrStore, rec.Name, err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("%w: lease %q", types.ErrAlreadyExists, rec.Name)
	}

	return nil
}

// CompareAndSwap writes the record if its ModRevision still equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, rec *types.LeaseRecord, expected types.Version) (types.Version, error) {
	data, err := codec.Marshal(rec)
	if err != nil {
		return types.NoVersion, err
	}

	rev, err := strconv.ParseInt(string(expected), 10, 64)
	if err != nil || rev <= 0 {
		return types.NoVersion, fmt.Errorf("%w: lease %q has invalid revision %q", types.ErrVersionConflict, rec.Name, expected)
	}

	key := s.key(rec.Name)
	resp, err := s.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", rev)).
		Then(clientv3.OpPut(key, string(data))).
		Else(clientv3.OpGet(key)).
		Commit()
	if err != nil {
		return types.NoVersion, fmt.Errorf("%w: update lease %q: %w", types.ErrStore, rec.Name, err)
	}

	if !resp.Succeeded {
		if len(resp.Responses) > 0 {
			if rng := resp.Responses[0].GetResponseRange(); rng != nil && len(rng.Kvs) == 0 {
				return types.NoVersion, fmt.Errorf("%w: lease %q", types.ErrNotFound, rec.Name)
			}
		}

		return types.NoVersion, fmt.Errorf("%w: lease %q moved past revision %d", types.ErrVersionConflict, rec.Name, rev)
	}

	return revision(resp.Header.GetRevision()), nil
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

func revision(rev int64) types.Version {
	return types.Version(strconv.FormatInt(rev, 10))
}
