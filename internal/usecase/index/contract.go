package index

import (
	"context"

	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
)

// Repository defines the storage contract for indices.
type Repository interface {
	Create(ctx context.Context, idx domidx.Index) error
	Get(ctx context.Context, name string) (domidx.Index, error)
	List(ctx context.Context) ([]domidx.Index, error)
	Delete(ctx context.Context, name string) error
}
