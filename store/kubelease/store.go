// Package kubelease implements a LeaseStore on Kubernetes coordination.k8s.io/v1 Leases.
//
// The record maps field-for-field onto LeaseSpec and the object's
// resourceVersion is the version token: Update carries it and the API server
// answers 409 Conflict when the object has moved on. Object metadata written
// by others (labels, annotations) is kept across updates.
package kubelease

import (
	"context"
	"fmt"
	"time"

	coordinationv1 "k8s.io/api/coordination/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	coordinationclient "k8s.io/client-go/kubernetes/typed/coordination/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/arloliu/solo/types"
)

// Compile-time assertion that Store implements LeaseStore.
var _ types.LeaseStore = (*Store)(nil)

// Config configures the Kubernetes store.
type Config struct {
	// Namespace holding the Lease objects. Default: "default".
	Namespace string `yaml:"namespace"`
	// Kubeconfig is a kubeconfig path; empty means in-cluster configuration.
	Kubeconfig string `yaml:"kubeconfig"`
}

// Store is a LeaseStore backed by Lease objects in one namespace.
type Store struct {
	namespace string
	leases    coordinationclient.LeaseInterface
}

// New builds a clientset from cfg and returns a store on its namespace.
//
// Parameters:
//   - cfg: Namespace and kubeconfig location
//
// Returns:
//   - *Store: Store ready for use
//   - error: Client configuration error
//
// Example:
//
//	store, err := kubelease.New(kubelease.Config{Namespace: "default"})
func New(cfg Config) (*Store, error) {
	var (
		restCfg *rest.Config
		err     error
	)
	if cfg.Kubeconfig != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
	} else {
		restCfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load kubernetes config: %w", err)
	}

	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return NewWithClient(client, cfg.Namespace), nil
}

// NewWithClient returns a store using an existing clientset.
func NewWithClient(client kubernetes.Interface, namespace string) *Store {
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}

	return &Store{
		namespace: namespace,
		leases:    client.CoordinationV1().Leases(namespace),
	}
}

// Get reads the Lease.
func (s *Store) Get(ctx context.Context, name string) (*types.LeaseRecord, error) {
	lease, err := s.leases.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: lease %s/%s", types.ErrNotFound, s.namespace, name)
		}

		return nil, fmt.Errorf("%w: get lease %s/%s: %w", types.ErrStore, s.namespace, name, err)
	}

	return fromLease(lease), nil
}

// Create creates the Lease.
func (s *Store) Create(ctx context.Context, rec *types.LeaseRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	lease := &coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{Name: rec.Name, Namespace: s.namespace},
		Spec:       toSpec(rec),
	}
	if _, err := s.leases.Create(ctx, lease, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return fmt.Errorf("%w: lease %s/%s", types.ErrAlreadyExists, s.namespace, rec.Name)
		}

		return fmt.Errorf("%w: create lease %s/%s: %w", types.ErrStore, s.namespace, rec.Name, err)
	}

	return nil
}

// CompareAndSwap replaces the Lease spec, carrying expected as resourceVersion.
//
// The current object is read first so labels, annotations, owner references
// and spec fields outside the record survive the update. A resourceVersion
// that already differs from expected fails without writing.
func (s *Store) CompareAndSwap(ctx context.Context, rec *types.LeaseRecord, expected types.Version) (types.Version, error) {
	if err := rec.Validate(); err != nil {
		return types.NoVersion, err
	}

	cur, err := s.leases.Get(ctx, rec.Name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return types.NoVersion, fmt.Errorf("%w: lease %s/%s", types.ErrNotFound, s.namespace, rec.Name)
		}

		return types.NoVersion, fmt.Errorf("%w: get lease %s/%s: %w", types.ErrStore, s.namespace, rec.Name, err)
	}
	if cur.ResourceVersion != string(expected) {
		return types.NoVersion, fmt.Errorf("%w: lease %s/%s at resourceVersion %s, expected %s",
			types.ErrVersionConflict, s.namespace, rec.Name, cur.ResourceVersion, expected)
	}

	lease := cur.DeepCopy()
	lease.ResourceVersion = string(expected)
	applySpec(&lease.Spec, rec)

	updated, err := s.leases.Update(ctx, lease, metav1.UpdateOptions{})
	if err != nil {
		switch {
		case apierrors.IsConflict(err):
			return types.NoVersion, fmt.Errorf("%w: lease %s/%s", types.ErrVersionConflict, s.namespace, rec.Name)
		case apierrors.IsNotFound(err):
			return types.NoVersion, fmt.Errorf("%w: lease %s/%s", types.ErrNotFound, s.namespace, rec.Name)
		default:
			return types.NoVersion, fmt.Errorf("%w: update lease %s/%s: %w", types.ErrStore, s.namespace, rec.Name, err)
		}
	}

	return types.Version(updated.ResourceVersion), nil
}

func toSpec(rec *types.LeaseRecord) coordinationv1.LeaseSpec {
	var spec coordinationv1.LeaseSpec
	applySpec(&spec, rec)

	return spec
}

// applySpec writes the record's fields onto spec and leaves the rest untouched.
func applySpec(spec *coordinationv1.LeaseSpec, rec *types.LeaseRecord) {
	spec.LeaseDurationSeconds = ptr(rec.LeaseDurationSeconds)
	spec.LeaseTransitions = ptr(rec.Transitions)
	spec.AcquireTime = microTime(rec.AcquireTime)
	spec.RenewTime = microTime(rec.RenewTime)
	spec.HolderIdentity = nil
	if rec.HolderIdentity != "" {
		spec.HolderIdentity = ptr(rec.HolderIdentity)
	}
}

func fromLease(lease *coordinationv1.Lease) *types.LeaseRecord {
	rec := &types.LeaseRecord{
		Name:    lease.Name,
		Scope:   lease.Namespace,
		Version: types.Version(lease.ResourceVersion),
	}
	if lease.Spec.HolderIdentity != nil {
		rec.HolderIdentity = *lease.Spec.HolderIdentity
	}
	if lease.Spec.LeaseDurationSeconds != nil {
		rec.LeaseDurationSeconds = *lease.Spec.LeaseDurationSeconds
	}
	if lease.Spec.LeaseTransitions != nil {
		rec.Transitions = *lease.Spec.LeaseTransitions
	}
	rec.AcquireTime = fromMicroTime(lease.Spec.AcquireTime)
	rec.RenewTime = fromMicroTime(lease.Spec.RenewTime)

	return rec
}

func microTime(t *time.Time) *metav1.MicroTime {
	if t == nil {
		return nil
	}
	mt := metav1.NewMicroTime(t.UTC())

	return &mt
}

func fromMicroTime(mt *metav1.MicroTime) *time.Time {
	if mt == nil {
		return nil
	}
	t := mt.UTC()

	return &t
}

func ptr[T any](v T) *T {
	return &v
}
