package seqdex

import (
	"context"
	"fmt"

	dombatch "github.com/kailas-cloud/seqdex/internal/domain/batch"
	domevent "github.com/kailas-cloud/seqdex/internal/domain/event"
	eventuc "github.com/kailas-cloud/seqdex/internal/usecase/event"
)

// StoredEvent is an event as kept in an index.
type StoredEvent struct {
	ID        string
	Timestamp int64 // epoch millis
	Source    map[string]any
}

// BulkItem is one event of a bulk call. An empty ID gets a generated one.
type BulkItem struct {
	ID     string
	Source map[string]any
}

// BulkResult is the outcome of one bulk item.
type BulkResult struct {
	ID     string
	Status string // "created", "updated" or "error"
	Err    error
}

// IndexEvent stores one event. An empty id gets a generated one.
// Returns the stored event and whether it was created.
func (c *Client) IndexEvent(ctx context.Context, index, id string, source map[string]any) (StoredEvent, bool, error) {
	ev, created, err := c.eventSvc.Index(ctx, index, id, source)
	if err != nil {
		return StoredEvent{}, false, fmt.Errorf("index event: %w", err)
	}
	return fromInternalEvent(ev), created, nil
}

// Bulk stores events in one round-trip with per-item results.
func (c *Client) Bulk(ctx context.Context, index string, items []BulkItem) []BulkResult {
	internal := make([]eventuc.Item, len(items))
	for i, it := range items {
		internal[i] = eventuc.Item{ID: it.ID, Source: it.Source}
	}
	return fromBatchResults(c.eventSvc.Bulk(ctx, index, internal))
}

// GetEvent returns a stored event.
func (c *Client) GetEvent(ctx context.Context, index, id string) (StoredEvent, error) {
	ev, err := c.eventSvc.Get(ctx, index, id)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("get event: %w", err)
	}
	return fromInternalEvent(ev), nil
}

// DeleteEvent removes a stored event.
func (c *Client) DeleteEvent(ctx context.Context, index, id string) error {
	if err := c.eventSvc.Delete(ctx, index, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func fromInternalEvent(ev domevent.Event) StoredEvent {
	return StoredEvent{ID: ev.ID(), Timestamp: ev.Timestamp(), Source: ev.Source()}
}

func fromBatchResults(results []dombatch.Result) []BulkResult {
	out := make([]BulkResult, len(results))
	for i, r := range results {
		out[i] = BulkResult{ID: r.ID(), Status: string(r.Status()), Err: r.Err()}
	}
	return out
}
