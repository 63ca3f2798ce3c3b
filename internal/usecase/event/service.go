package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/seqdex/internal/domain"
	dombatch "github.com/kailas-cloud/seqdex/internal/domain/batch"
	domevent "github.com/kailas-cloud/seqdex/internal/domain/event"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/metrics"
)

// DefaultMaxBatchSize is the default maximum number of events per bulk request.
const DefaultMaxBatchSize = 1000

// Item is one event of a bulk request. An empty ID gets a generated one.
type Item struct {
	ID     string
	Source map[string]any
}

// Service handles event ingestion and retrieval.
type Service struct {
	repo           Repository
	indices        IndexReader
	timestampField string
	maxBatchSize   int
	newID          func() string
	now            func() time.Time
}

// New creates an event service. timestampField names the source field the
// event time is read from when the index declares it.
func New(repo Repository, indices IndexReader, timestampField string) *Service {
	return &Service{
		repo:           repo,
		indices:        indices,
		timestampField: timestampField,
		maxBatchSize:   DefaultMaxBatchSize,
		newID:          uuid.NewString,
		now:            time.Now,
	}
}

// WithMaxBatchSize configures the maximum bulk size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Index stores a single event. Returns the stored event and whether it was created.
func (s *Service) Index(ctx context.Context, indexName, id string, source map[string]any) (domevent.Event, bool, error) {
	idx, err := s.indices.Get(ctx, indexName)
	if err != nil {
		return domevent.Event{}, false, fmt.Errorf("get index: %w", err)
	}

	ev, err := s.build(idx, id, source)
	if err != nil {
		metrics.EventsIngestedTotal.WithLabelValues("error").Inc()
		return domevent.Event{}, false, err
	}

	created, err := s.repo.Upsert(ctx, idx, &ev)
	if err != nil {
		metrics.EventsIngestedTotal.WithLabelValues("error").Inc()
		return domevent.Event{}, false, fmt.Errorf("upsert event: %w", err)
	}
	metrics.EventsIngestedTotal.WithLabelValues("ok").Inc()
	return ev, created, nil
}

// Bulk stores events with per-item error reporting. Valid events are
// written in one round-trip.
func (s *Service) Bulk(ctx context.Context, indexName string, items []Item) []dombatch.Result {
	results := make([]dombatch.Result, len(items))

	fail := func(err error) []dombatch.Result {
		for i, item := range items {
			results[i] = dombatch.NewError(item.ID, err)
		}
		metrics.EventsIngestedTotal.WithLabelValues("error").Add(float64(len(items)))
		return results
	}

	if len(items) > s.maxBatchSize {
		return fail(fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidEvent))
	}

	idx, err := s.indices.Get(ctx, indexName)
	if err != nil {
		return fail(fmt.Errorf("get index: %w", err))
	}

	valid := make([]domevent.Event, 0, len(items))
	validIdx := make([]int, 0, len(items))
	for i, item := range items {
		ev, err := s.build(idx, item.ID, item.Source)
		if err != nil {
			results[i] = dombatch.NewError(item.ID, err)
			metrics.EventsIngestedTotal.WithLabelValues("error").Inc()
			continue
		}
		valid = append(valid, ev)
		validIdx = append(validIdx, i)
	}

	if len(valid) == 0 {
		return results
	}

	if err := s.repo.UpsertBatch(ctx, idx, valid); err != nil {
		for n, i := range validIdx {
			results[i] = dombatch.NewError(valid[n].ID(), fmt.Errorf("bulk upsert: %w", err))
		}
		metrics.EventsIngestedTotal.WithLabelValues("error").Add(float64(len(valid)))
		return results
	}

	for n, i := range validIdx {
		results[i] = dombatch.NewOK(valid[n].ID(), true)
	}
	metrics.EventsIngestedTotal.WithLabelValues("ok").Add(float64(len(valid)))
	return results
}

// Get retrieves an event by index and ID.
func (s *Service) Get(ctx context.Context, indexName, id string) (domevent.Event, error) {
	if _, err := s.indices.Get(ctx, indexName); err != nil {
		return domevent.Event{}, fmt.Errorf("get index: %w", err)
	}
	ev, err := s.repo.Get(ctx, indexName, id)
	if err != nil {
		return domevent.Event{}, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// Delete removes an event.
func (s *Service) Delete(ctx context.Context, indexName, id string) error {
	if _, err := s.indices.Get(ctx, indexName); err != nil {
		return fmt.Errorf("get index: %w", err)
	}
	if err := s.repo.Delete(ctx, indexName, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// build assigns the ID and the event time. The time comes from the
// timestamp field when the index declares it, else the ingest time.
func (s *Service) build(idx domidx.Index, id string, source map[string]any) (domevent.Event, error) {
	if id == "" {
		id = s.newID()
	}

	ts := s.now().UnixMilli()
	if f, ok := idx.FieldByName(s.timestampField); ok && f.FieldType() == field.Date {
		raw, found := domevent.Lookup(source, s.timestampField)
		if !found || raw == nil {
			return domevent.Event{}, fmt.Errorf("%w: event %s has no %s", domain.ErrInvalidEvent, id, s.timestampField)
		}
		ms, err := field.ParseDate(raw)
		if err != nil {
			return domevent.Event{}, fmt.Errorf("%w: event %s: %s: %w", domain.ErrInvalidEvent, id, s.timestampField, err)
		}
		ts = ms
	}

	ev, err := domevent.New(id, source, ts)
	if err != nil {
		return domevent.Event{}, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
	}
	return ev, nil
}
