package ingester

import (
	"context"
	"sync/atomic"

	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
)

// ReferenceLoader loads reference data from its backing snapshots.
type ReferenceLoader interface {
	LoadReference(ctx context.Context) (*refdata.Data, error)
}

// Reference tracks whether reference data has loaded successfully at least once.
type Reference struct {
	loader ReferenceLoader
	ready  atomic.Bool
}

// NewReference wraps loader.
func NewReference(loader ReferenceLoader) *Reference {
	return &Reference{loader: loader}
}

// LoadReference delegates to the wrapped loader and marks the service ready on success.
func (r *Reference) LoadReference(ctx context.Context) (*refdata.Data, error) {
	ref, err := r.loader.LoadReference(ctx)
	if err != nil {
		return nil, err
	}
	r.ready.Store(true)
	return ref, nil
}

// Ready reports whether a load has ever succeeded.
func (r *Reference) Ready() bool {
	return r.ready.Load()
}
