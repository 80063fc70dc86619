// Package boltdb implements a LeaseStore on a bbolt database file.
//
// bbolt locks its file for a single process, so this store suits agents
// sharing one *bolt.DB inside a process (or a sidecar that owns the file).
// Each scope is a bucket; each value is an 8-byte big-endian version followed
// by the JSON-encoded record. Checks and writes happen inside one read-write
// transaction, which bbolt serializes.
package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/arloliu/solo/internal/codec"
	"github.com/arloliu/solo/types"
)

const (
	// DefaultBucket is used when the scope is empty.
	DefaultBucket = "leases"
	// fileMode of a database file created by Open.
	fileMode = 0o600
	// openTimeout bounds waiting for the file lock.
	openTimeout = 5 * time.Second
	versionSize = 8
)

// Compile-time assertion that Store implements LeaseStore.
var _ types.LeaseStore = (*Store)(nil)

// Config configures the bbolt store.
type Config struct {
	// Path of the database file.
	Path string `yaml:"path"`
	// Bucket holding lease records. Default: "leases".
	Bucket string `yaml:"bucket"`
}

// Store is a LeaseStore on one bbolt bucket.
type Store struct {
	db     *bolt.DB
	bucket []byte
	owned  bool
}

// Open opens (creating if needed) the database file and returns a store that
// closes it on Close.
//
// Parameters:
//   - cfg: Database path and bucket name
//
// Returns:
//   - *Store: Store ready for use
//   - error: Open or bucket creation error
//
// Example:
//
//	store, err := boltdb.Open(boltdb.Config{Path: "/var/lib/solo/leases.db"})
//	defer store.Close()
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: bolt path is required", types.ErrInvalidConfig)
	}

	db, err := bolt.Open(cfg.Path, fileMode, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", cfg.Path, err)
	}

	s, err := New(db, cfg.Bucket)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true

	return s, nil
}

// New returns a store on an already opened database, creating the bucket.
func New(db *bolt.DB, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bolt bucket %s: %w", bucket, err)
	}

	return &Store{db: db, bucket: []byte(bucket)}, nil
}

// Close closes the database if it was opened by Open.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}

	return s.db.Close()
}

// Get reads the lease record.
func (s *Store) Get(ctx context.Context, name string) (*types.LeaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStore, err)
	}

	var rec *types.LeaseRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("%w: bucket %s missing", types.ErrStore, s.bucket)
		}

		value := b.Get([]byte(name))
		if value == nil {
			return fmt.Errorf("%w: lease %q", types.ErrNotFound, name)
		}

		version, payload, err := split(value)
		if err != nil {
			return err
		}
		rec, err = codec.Unmarshal(payload, version)

		return err
	})

	return rec, err
}

// Create writes the record if the key is absent.
func (s *Store) Create(ctx context.Context, rec *types.LeaseRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	payload, err := codec.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("%w: bucket %s missing", types.ErrStore, s.bucket)
		}
		if b.Get([]byte(rec.Name)) != nil {
			return fmt.Errorf("%w: lease %q", types.ErrAlreadyExists, rec.Name)
		}

		return s.put(b, rec.Name, payload)
	})
}

// CompareAndSwap writes the record if the stored version equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, rec *types.LeaseRecord, expected types.Version) (types.Version, error) {
	if err := ctx.Err(); err != nil {
		return types.NoVersion, fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	payload, err := codec.Marshal(rec)
	if err != nil {
		return types.NoVersion, err
	}

	var next types.Version
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("%w: bucket %s missing", types.ErrStore, s.bucket)
		}

		value := b.Get([]byte(rec.Name))
		if value == nil {
			return fmt.Errorf("%w: lease %q", types.ErrNotFound, rec.Name)
		}
		current, _, err := split(value)
		if err != nil {
			return err
		}
		if current != expected {
			return fmt.Errorf("%w: lease %q at version %s, expected %s", types.ErrVersionConflict, rec.Name, current, expected)
		}

		if err := s.put(b, rec.Name, payload); err != nil {
			return err
		}
		next, _, err = split(b.Get([]byte(rec.Name)))

		return err
	})
	if err != nil {
		return types.NoVersion, err
	}

	return next, nil
}

// put stores payload under a fresh bucket sequence number.
func (s *Store) put(b *bolt.Bucket, name string, payload []byte) error {
	seq, err := b.NextSequence()
	if err != nil {
		return fmt.Errorf("%w: next sequence: %w", types.ErrStore, err)
	}

	value := make([]byte, versionSize+len(payload))
	binary.BigEndian.PutUint64(value, seq)
	copy(value[versionSize:], payload)

	if err := b.Put([]byte(name), value); err != nil {
		return fmt.Errorf("%w: put lease %q: %w", types.ErrStore, name, err)
	}

	return nil
}

func split(value []byte) (types.Version, []byte, error) {
	if len(value) < versionSize {
		return types.NoVersion, nil, fmt.Errorf("%w: corrupt lease value of %d bytes", types.ErrStore, len(value))
	}
	seq := binary.BigEndian.Uint64(value[:versionSize])

	return types.Version(strconv.FormatUint(seq, 10)), value[versionSize:], nil
}
