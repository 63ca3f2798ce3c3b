package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/seqdex/internal/db"
	"github.com/kailas-cloud/seqdex/internal/domain"
	domevent "github.com/kailas-cloud/seqdex/internal/domain/event"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/repository/keyspace"
)

// store is the consumer interface for events (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Repo implements usecase/event.Repository.
type Repo struct {
	store store
	keys  keyspace.Keyspace
}

// New creates an event repository.
func New(s store, keys keyspace.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Upsert creates or replaces an event. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, idx domidx.Index, ev *domevent.Event) (bool, error) {
	key := r.keys.Event(idx.Name(), ev.ID())
	data, err := encode(idx, ev)
	if err != nil {
		return false, err
	}

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return false, fmt.Errorf("json.set %s: %w", key, err)
	}

	return !exists, nil
}

// UpsertBatch writes events in a single pipelined round-trip.
func (r *Repo) UpsertBatch(ctx context.Context, idx domidx.Index, events []domevent.Event) error {
	items := make([]db.JSONSetItem, len(events))
	for i := range events {
		data, err := encode(idx, &events[i])
		if err != nil {
			return err
		}
		items[i] = db.JSONSetItem{Key: r.keys.Event(idx.Name(), events[i].ID()), Path: "$", Data: data}
	}
	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return fmt.Errorf("json.set batch %s: %w", idx.Name(), err)
	}
	return nil
}

// Get returns an event by ID.
func (r *Repo) Get(ctx context.Context, indexName, id string) (domevent.Event, error) {
	key := r.keys.Event(indexName, id)
	raw, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domevent.Event{}, domain.ErrEventNotFound
		}
		return domevent.Event{}, fmt.Errorf("json.get %s: %w", key, err)
	}
	doc, err := db.DecodeDocument(raw)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domevent.Event{}, domain.ErrEventNotFound
		}
		return domevent.Event{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return domevent.Reconstruct(id, doc.Source, doc.Time), nil
}

// Delete removes an event.
func (r *Repo) Delete(ctx context.Context, indexName, id string) error {
	key := r.keys.Event(indexName, id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrEventNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// encode builds the stored document: the source as given plus the
// normalized values of every declared field.
func encode(idx domidx.Index, ev *domevent.Event) ([]byte, error) {
	values, err := domevent.IndexValues(idx.Fields(), ev.Source())
	if err != nil {
		return nil, fmt.Errorf("%w: event %s: %w", domain.ErrInvalidEvent, ev.ID(), err)
	}
	data, err := json.Marshal(db.Document{Source: ev.Source(), Index: values, Time: ev.Timestamp()})
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", ev.ID(), err)
	}
	if len(data) > domevent.MaxSourceSize {
		return nil, fmt.Errorf("%w: event %s exceeds %d bytes", domain.ErrInvalidEvent, ev.ID(), domevent.MaxSourceSize)
	}
	return data, nil
}
