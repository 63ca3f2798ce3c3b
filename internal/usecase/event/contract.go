package event

import (
	"context"

	domevent "github.com/kailas-cloud/seqdex/internal/domain/event"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
)

// Repository defines the storage contract for events.
type Repository interface {
	Upsert(ctx context.Context, idx domidx.Index, ev *domevent.Event) (created bool, err error)
	UpsertBatch(ctx context.Context, idx domidx.Index, events []domevent.Event) error
	Get(ctx context.Context, indexName, id string) (domevent.Event, error)
	Delete(ctx context.Context, indexName, id string) error
}

// IndexReader reads indices for existence and schema checks.
type IndexReader interface {
	Get(ctx context.Context, name string) (domidx.Index, error)
}
