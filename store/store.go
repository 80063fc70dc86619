// Package store selects and opens a lease store backend from configuration.
//
// Each backend lives in its own subpackage and can be used directly; this
// package only maps a Config onto one of them, so that binaries can switch
// backends from a flag or a YAML file:
//
//	cfg := store.DefaultConfig()
//	cfg.Type = store.TypeNATS
//	cfg.NATS.URL = "nats://127.0.0.1:4222"
//	leases, closeFn, err := store.Open(ctx, cfg, "default", logger)
//	defer closeFn(context.Background())
package store

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/solo/internal/logger"
	"github.com/arloliu/solo/store/aztable"
	"github.com/arloliu/solo/store/boltdb"
	"github.com/arloliu/solo/store/etcd"
	"github.com/arloliu/solo/store/kubelease"
	"github.com/arloliu/solo/store/memory"
	"github.com/arloliu/solo/store/mongo"
	"github.com/arloliu/solo/store/natskv"
	"github.com/arloliu/solo/types"
)

// Type names a lease store backend.
type Type string

// Supported backends.
const (
	TypeMemory     Type = "memory"
	TypeNATS       Type = "nats"
	TypeKubernetes Type = "kubernetes"
	TypeBolt       Type = "bolt"
	TypeEtcd       Type = "etcd"
	TypeMongo      Type = "mongo"
	TypeAzureTable Type = "aztable"
)

// Types lists every supported backend in a stable order.
func Types() []Type {
	return []Type{TypeMemory, TypeNATS, TypeKubernetes, TypeBolt, TypeEtcd, TypeMongo, TypeAzureTable}
}

// NATSConfig configures the NATS JetStream KV backend.
type NATSConfig struct {
	// URL of the NATS server. Default: nats.DefaultURL.
	URL string `yaml:"url"`

	natskv.Config `yaml:",inline"`
}

// Config selects a backend and carries the settings of every backend.
// Only the section matching Type is used.
type Config struct {
	// Type is the backend to open. Default: "memory".
	Type Type `yaml:"type"`

	NATS       NATSConfig       `yaml:"nats"`
	Kubernetes kubelease.Config `yaml:"kubernetes"`
	Bolt       boltdb.Config    `yaml:"bolt"`
	Etcd       etcd.Config      `yaml:"etcd"`
	Mongo      mongo.Config     `yaml:"mongo"`
	AzureTable aztable.Config   `yaml:"azureTable"`
}

// CloseFunc releases the resources held by an opened store.
type CloseFunc func(ctx context.Context) error

// DefaultConfig returns a Config using the in-memory backend.
func DefaultConfig() Config {
	return Config{
		Type: TypeMemory,
		NATS: NATSConfig{URL: nats.DefaultURL},
	}
}

// Validate checks that Type names a supported backend.
//
// Backend specific settings are checked when the backend is opened.
//
// Returns:
//   - error: Wrapped ErrInvalidConfig, nil if valid
func (c *Config) Validate() error {
	for _, t := range Types() {
		if c.Type == t {
			return nil
		}
	}

	return fmt.Errorf("%w: unknown store type %q (supported: %v)", types.ErrInvalidConfig, c.Type, Types())
}

// Open opens the backend selected by cfg.Type.
//
// namespace fills the backend's scope setting when that is left empty, so
// agents configured with a namespace land in the same place on every backend.
//
// Parameters:
//   - ctx: Context for connection and bucket/table setup
//   - cfg: Store configuration
//   - namespace: Lease namespace used as the default scope
//   - log: Logger for backends that log connectivity events (nil = no logging)
//
// Returns:
//   - types.LeaseStore: Opened store
//   - CloseFunc: Releases connections and files; never nil on success
//   - error: Wrapped ErrInvalidConfig or a connection error
func Open(ctx context.Context, cfg Config, namespace string, log types.Logger) (types.LeaseStore, CloseFunc, error) {
	if cfg.Type == "" {
		cfg.Type = TypeMemory
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	switch cfg.Type {
	case TypeNATS:
		return openNATS(ctx, cfg.NATS, namespace, log)

	case TypeKubernetes:
		kcfg := cfg.Kubernetes
		if kcfg.Namespace == "" {
			kcfg.Namespace = namespace
		}
		s, err := kubelease.New(kcfg)
		if err != nil {
			return nil, nil, err
		}

		return s, noopClose, nil

	case TypeBolt:
		s, err := boltdb.Open(cfg.Bolt)
		if err != nil {
			return nil, nil, err
		}

		return s, func(context.Context) error { return s.Close() }, nil

	case TypeEtcd:
		ecfg := cfg.Etcd
		if ecfg.Scope == "" {
			ecfg.Scope = namespace
		}
		s, err := etcd.New(ecfg)
		if err != nil {
			return nil, nil, err
		}

		return s, func(context.Context) error { return s.Close() }, nil

	case TypeMongo:
		mcfg := cfg.Mongo
		if mcfg.Scope == "" {
			mcfg.Scope = namespace
		}
		s, err := mongo.Connect(ctx, mcfg)
		if err != nil {
			return nil, nil, err
		}

		return s, s.Close, nil

	case TypeAzureTable:
		acfg := cfg.AzureTable
		if acfg.Scope == "" {
			acfg.Scope = namespace
		}
		s, err := aztable.New(acfg)
		if err != nil {
			return nil, nil, err
		}

		return s, noopClose, nil

	default:
		return memory.New(), noopClose, nil
	}
}

func openNATS(ctx context.Context, cfg NATSConfig, namespace string, log types.Logger) (types.LeaseStore, CloseFunc, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url,
		nats.Name("solo"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected from NATS", "url", url, "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	kcfg := cfg.Config
	if kcfg.Scope == "" {
		kcfg.Scope = namespace
	}

	s, err := natskv.New(ctx, nc, kcfg, natskv.WithLogger(log))
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	return s, func(context.Context) error { return nc.Drain() }, nil
}

func noopClose(context.Context) error {
	return nil
}
