package seqdex

import (
	"context"
	"fmt"
)

// TypedIndex is a schema-first index of T events backed by a Client.
// The schema is inferred from T's struct tags at construction time.
type TypedIndex[T any] struct {
	name   string
	client *Client
	meta   *schemaMeta
}

// NewIndex creates a typed index handle. T must be a struct with seqdex
// tags and exactly one id field.
func NewIndex[T any](client *Client, name string) (*TypedIndex[T], error) {
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new index %q: %w", name, err)
	}
	return &TypedIndex[T]{name: name, client: client, meta: meta}, nil
}

// Name returns the index name.
func (idx *TypedIndex[T]) Name() string { return idx.name }

// Fields returns the schema derived from T.
func (idx *TypedIndex[T]) Fields() []Field { return idx.meta.fields }

// Ensure creates the index if it does not exist (idempotent).
func (idx *TypedIndex[T]) Ensure(ctx context.Context) error {
	if _, err := idx.client.EnsureIndex(ctx, idx.name, idx.meta.fields...); err != nil {
		return fmt.Errorf("ensure %q: %w", idx.name, err)
	}
	return nil
}

// Put stores a single item. Returns true if created.
func (idx *TypedIndex[T]) Put(ctx context.Context, item T) (bool, error) {
	id, source := idx.meta.toEvent(item)
	_, created, err := idx.client.IndexEvent(ctx, idx.name, id, source)
	return created, err
}

// PutBatch stores items in one round-trip.
func (idx *TypedIndex[T]) PutBatch(ctx context.Context, items []T) []BulkResult {
	bulk := make([]BulkItem, len(items))
	for i, item := range items {
		id, source := idx.meta.toEvent(item)
		bulk[i] = BulkItem{ID: id, Source: source}
	}
	return idx.client.Bulk(ctx, idx.name, bulk)
}

// Get retrieves a typed item by ID.
func (idx *TypedIndex[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	ev, err := idx.client.GetEvent(ctx, idx.name, id)
	if err != nil {
		return zero, err
	}
	item, ok := idx.meta.fromEvent(ev.ID, ev.Source).(T)
	if !ok {
		return zero, fmt.Errorf("get: cannot convert event to %T", zero)
	}
	return item, nil
}

// Delete removes an item by ID.
func (idx *TypedIndex[T]) Delete(ctx context.Context, id string) error {
	return idx.client.DeleteEvent(ctx, idx.name, id)
}

// Query returns a fluent search builder over this index.
func (idx *TypedIndex[T]) Query(eql string) *QueryBuilder[T] {
	return &QueryBuilder[T]{idx: idx, query: eql, indices: []string{idx.name}}
}
