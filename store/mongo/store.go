// Package mongo implements a LeaseStore on a MongoDB collection.
//
// Each lease is one document keyed by scope and name. An integer version
// field is the version token: Create is an insert (the unique _id rejects a
// second one) and CompareAndSwap is a replace filtered on the expected
// version, so a replace that matches nothing lost the race.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arloliu/solo/types"
)

const (
	// DefaultDatabase is used when Config.Database is empty.
	DefaultDatabase = "solo"
	// DefaultCollection is used when Config.Collection is empty.
	DefaultCollection = "leases"
	connectTimeout    = 10 * time.Second
)

// Compile-time assertion that Store implements LeaseStore.
var _ types.LeaseStore = (*Store)(nil)

// Config configures the MongoDB store.
type Config struct {
	// URI is the MongoDB connection string.
	URI string `yaml:"uri"`
	// Database name. Default: "solo".
	Database string `yaml:"database"`
	// Collection name. Default: "leases".
	Collection string `yaml:"collection"`
	// Scope groups leases, usually the namespace.
	Scope string `yaml:"scope"`
}

// leaseDocument is the BSON representation of a lease record.
type leaseDocument struct {
	ID                   string     `bson:"_id"`
	Name                 string     `bson:"name"`
	Namespace            string     `bson:"namespace,omitempty"`
	HolderIdentity       string     `bson:"holderIdentity,omitempty"`
	LeaseDurationSeconds int32      `bson:"leaseDurationSeconds"`
	AcquireTime          *time.Time `bson:"acquireTime,omitempty"`
	RenewTime            *time.Time `bson:"renewTime,omitempty"`
	LeaseTransitions     int32      `bson:"leaseTransitions"`
	Version              int64      `bson:"version"`
}

// Store is a LeaseStore backed by one collection.
type Store struct {
	collection *mongo.Collection
	scope      string
	client     *mongo.Client
}

// Connect connects to MongoDB and returns a store that disconnects on Close.
//
// Parameters:
//   - ctx: Context bounding the connection attempt
//   - cfg: URI, database, collection and scope
//
// Returns:
//   - *Store: Store ready for use
//   - error: Connection error
//
// Example:
//
//	store, err := mongo.Connect(ctx, mongo.Config{URI: "mongodb://localhost:27017", Scope: "default"})
//	defer store.Close(ctx)
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: mongo uri is required", types.ErrInvalidConfig)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = DefaultDatabase
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	s := NewWithCollection(client.Database(database).Collection(collection), cfg.Scope)
	s.client = client

	return s, nil
}

// NewWithCollection returns a store on an existing collection.
func NewWithCollection(collection *mongo.Collection, scope string) *Store {
	return &Store{collection: collection, scope: scope}
}

// Close disconnects the client if the store created it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	return s.client.Disconnect(ctx)
}

// Get reads the lease document.
func (s *Store) Get(ctx context.Context, name string) (*types.LeaseRecord, error) {
	var doc leaseDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": s.id(name)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: lease %q", types.ErrNotFound, name)
		}

		return nil, fmt.Errorf("%w: find lease %q: %w", types.ErrStore, name, err)
	}

	return doc.record(), nil
}

// Create inserts the lease document at version 1.
func (s *Store) Create(ctx context.Context, rec *types.LeaseRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	if _, err := s.collection.InsertOne(ctx, s.document(rec, 1)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: lease %q", types.ErrAlreadyExists, rec.Name)
		}

		return fmt.Errorf("%w: insert lease %q: %w", types.ErrStore, rec.Name, err)
	}

	return nil
}

// CompareAndSwap replaces the document if its version still equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, rec *types.LeaseRecord, expected types.Version) (types.Version, error) {
	if err := rec.Validate(); err != nil {
		return types.NoVersion, err
	}

	version, err := strconv.ParseInt(string(expected), 10, 64)
	if err != nil {
		return types.NoVersion, fmt.Errorf("%w: lease %q has non-numeric version %q", types.ErrVersionConflict, rec.Name, expected)
	}

	filter := bson.M{"_id": s.id(rec.Name), "version": version}
	res, err := s.collection.ReplaceOne(ctx, filter, s.document(rec, version+1))
	if err != nil {
		return types.NoVersion, fmt.Errorf("%w: replace lease %q: %w", types.ErrStore, rec.Name, err)
	}
	// Missing and moved-on documents both match nothing.
	if res.MatchedCount == 0 {
		return types.NoVersion, fmt.Errorf("%w: lease %q is no longer at version %d", types.ErrVersionConflict, rec.Name, version)
	}

	return types.Version(strconv.FormatInt(version+1, 10)), nil
}

func (s *Store) id(name string) string {
	if s.scope == "" {
		return name
	}

	return s.scope + "/" + name
}

func (s *Store) document(rec *types.LeaseRecord, version int64) leaseDocument {
	return leaseDocument{
		ID:                   s.id(rec.Name),
		Name:                 rec.Name,
		Namespace:            rec.Scope,
		HolderIdentity:       rec.HolderIdentity,
		LeaseDurationSeconds: rec.LeaseDurationSeconds,
		AcquireTime:          rec.AcquireTime,
		RenewTime:            rec.RenewTime,
		LeaseTransitions:     rec.Transitions,
		Version:              version,
	}
}

func (d *leaseDocument) record() *types.LeaseRecord {
	return &types.LeaseRecord{
		Name:                 d.Name,
		Scope:                d.Namespace,
		HolderIdentity:       d.HolderIdentity,
		LeaseDurationSeconds: d.LeaseDurationSeconds,
		AcquireTime:          d.AcquireTime,
		RenewTime:            d.RenewTime,
		Transitions:          d.LeaseTransitions,
		Version:              types.Version(strconv.FormatInt(d.Version, 10)),
	}
}
