// Package aztable implements a LeaseStore on an Azure Storage table.
//
// Each lease is one entity (PartitionKey = scope, RowKey = lease name) whose
// Record property holds the JSON-encoded record. The entity ETag is the
// version token: updates send it as If-Match and the service answers 412
// Precondition Failed once another writer has replaced the entity.
package aztable

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/storage"

	"github.com/arloliu/solo/internal/codec"
	"github.com/arloliu/solo/types"
)

const (
	// DefaultTable is used when Config.Table is empty.
	DefaultTable = "sololeases"
	// DefaultPartition is used when Config.Scope is empty.
	DefaultPartition = "default"
	// recordProperty holds the encoded record.
	recordProperty = "Record"
	// holderProperty mirrors the holder for portal and query visibility.
	holderProperty = "HolderIdentity"
	// defaultTimeoutSeconds is the server-side timeout without a context deadline.
	defaultTimeoutSeconds = 30
	tableCreateTimeout    = 100
)

// Compile-time assertion that Store implements LeaseStore.
var _ types.LeaseStore = (*Store)(nil)

// Config configures the Azure Table store.
type Config struct {
	// AccountName and AccountKey authenticate against the storage account.
	AccountName string `yaml:"accountName"`
	AccountKey  string `yaml:"accountKey"`
	// EndpointSuffix selects a non-public cloud or Cosmos table endpoint.
	EndpointSuffix string `yaml:"endpointSuffix"`
	// UseEmulator targets the local storage emulator (Azurite).
	UseEmulator bool `yaml:"useEmulator"`
	// Table name. Default: "sololeases".
	Table string `yaml:"table"`
	// Scope is the partition key, usually the namespace. Default: "default".
	Scope string `yaml:"scope"`
}

// entityClient is the subset of table operations the store issues.
type entityClient interface {
	Get(partition, row string, timeout uint) (*storage.Entity, error)
	Insert(partition, row string, props map[string]any, timeout uint) (etag string, err error)
	Replace(partition, row string, props map[string]any, etag string, timeout uint) (string, error)
}

// Store is a LeaseStore backed by one table partition.
type Store struct {
	entities  entityClient
	partition string
}

// New connects to the storage account, creates the table if needed, and
// returns a store on the scope's partition.
//
// Parameters:
//   - cfg: Account credentials, table and scope
//
// Returns:
//   - *Store: Store ready for use
//   - error: Client or table creation error
//
// Example:
//
//	store, err := aztable.New(aztable.Config{AccountName: "acct", AccountKey: key, Scope: "default"})
func New(cfg Config) (*Store, error) {
	var (
		client storage.Client
		err    error
	)
	switch {
	case cfg.UseEmulator:
		client, err = storage.NewEmulatorClient()
	case cfg.EndpointSuffix != "":
		client, err = storage.NewClient(cfg.AccountName, cfg.AccountKey, cfg.EndpointSuffix, storage.DefaultAPIVersion, true)
	default:
		client, err = storage.NewBasicClient(cfg.AccountName, cfg.AccountKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	name := cfg.Table
	if name == "" {
		name = DefaultTable
	}
	table := client.GetTableService().GetTableReference(name)

	if err := table.Create(tableCreateTimeout, storage.EmptyPayload, &storage.TableOptions{}); err != nil {
		var status storage.AzureStorageServiceError
		if !errors.As(err, &status) || status.StatusCode != http.StatusConflict {
			return nil, fmt.Errorf("failed to create table %s: %w", name, err)
		}
	}

	return newStore(&sdkTable{table: table}, cfg.Scope), nil
}

func newStore(entities entityClient, scope string) *Store {
	if scope == "" {
		scope = DefaultPartition
	}

	return &Store{entities: entities, partition: scope}
}

// Get reads the lease entity.
func (s *Store) Get(ctx context.Context, name string) (*types.LeaseRecord, error) {
	timeout, err := timeoutSeconds(ctx)
	if err != nil {
		return nil, err
	}

	entity, err := s.entities.Get(s.partition, name, timeout)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: lease %q", types.ErrNotFound, name)
		}

		return nil, fmt.Errorf("%w: get lease %q: %w", types.ErrStore, name, err)
	}

	raw, ok := entity.Properties[recordProperty].(string)
	if !ok {
		return nil, fmt.Errorf("%w: lease %q has no %s property", types.ErrStore, name, recordProperty)
	}

	return codec.Unmarshal([]byte(raw), types.Version(entity.OdataEtag))
}

// Create inserts the lease entity.
func (s *Store) Create(ctx context.Context, rec *types.LeaseRecord) error {
	timeout, err := timeoutSeconds(ctx)
	if err != nil {
		return err
	}
	props, err := properties(rec)
	if err != nil {
		return err
	}

	if _, err := s.entities.Insert(s.partition, rec.Name, props, timeout); err != nil {
		if statusCode(err) == http.StatusConflict {
			return fmt.Errorf("%w: lease %q", types.ErrAlreadyExists, rec.Name)
		}

		return fmt.Errorf("%w: insert lease %q: %w", types.ErrStore, rec.Name, err)
	}

	return nil
}

// CompareAndSwap replaces the entity if its ETag still equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, rec *types.LeaseRecord, expected types.Version) (types.Version, error) {
	timeout, err := timeoutSeconds(ctx)
	if err != nil {
		return types.NoVersion, err
	}
	if expected == types.NoVersion {
		return types.NoVersion, fmt.Errorf("%w: lease %q has no etag", types.ErrVersionConflict, rec.Name)
	}
	props, err := properties(rec)
	if err != nil {
		return types.NoVersion, err
	}

	etag, err := s.entities.Replace(s.partition, rec.Name, props, string(expected), timeout)
	if err != nil {
		switch statusCode(err) {
		case http.StatusPreconditionFailed, http.StatusConflict:
			return types.NoVersion, fmt.Errorf("%w: lease %q etag changed", types.ErrVersionConflict, rec.Name)
		case http.StatusNotFound:
			return types.NoVersion, fmt.Errorf("%w: lease %q", types.ErrNotFound, rec.Name)
		default:
			return types.NoVersion, fmt.Errorf("%w: replace lease %q: %w", types.ErrStore, rec.Name, err)
		}
	}

	return types.Version(etag), nil
}

func properties(rec *types.LeaseRecord) (map[string]any, error) {
	data, err := codec.Marshal(rec)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		recordProperty: string(data),
		holderProperty: rec.HolderIdentity,
	}, nil
}

// timeoutSeconds converts the context deadline into the service timeout.
func timeoutSeconds(ctx context.Context) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrStore, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultTimeoutSeconds, nil
	}

	secs := math.Ceil(time.Until(deadline).Seconds())
	if secs < 1 {
		return 1, nil
	}

	return uint(secs), nil
}

func statusCode(err error) int {
	var status storage.AzureStorageServiceError
	if errors.As(err, &status) {
		return status.StatusCode
	}

	return 0
}

// sdkTable issues entity operations through the storage SDK.
type sdkTable struct {
	table *storage.Table
}

func (t *sdkTable) Get(partition, row string, timeout uint) (*storage.Entity, error) {
	entity := t.table.GetEntityReference(partition, row)
	if err := entity.Get(timeout, storage.FullMetadata, &storage.GetEntityOptions{}); err != nil {
		return nil, err
	}

	return entity, nil
}

func (t *sdkTable) Insert(partition, row string, props map[string]any, timeout uint) (string, error) {
	entity := t.table.GetEntityReference(partition, row)
	entity.Properties = props
	if err := entity.Insert(storage.FullMetadata, &storage.EntityOptions{Timeout: timeout}); err != nil {
		return "", err
	}

	return entity.OdataEtag, nil
}

func (t *sdkTable) Replace(partition, row string, props map[string]any, etag string, timeout uint) (string, error) {
	entity := t.table.GetEntityReference(partition, row)
	entity.Properties = props
	entity.OdataEtag = etag
	if err := entity.Update(false, &storage.EntityOptions{Timeout: timeout}); err != nil {
		return "", err
	}

	return entity.OdataEtag, nil
}
