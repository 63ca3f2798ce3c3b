package search

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/seqdex/internal/db"
	"github.com/kailas-cloud/seqdex/internal/domain"
	"github.com/kailas-cloud/seqdex/internal/domain/event"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
	"github.com/kailas-cloud/seqdex/internal/repository/keyspace"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchEvents(ctx context.Context, q *db.EventQuery) (*db.EventPage, error)
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store store
	keys  keyspace.Keyspace
}

// New creates a search repository.
func New(s store, keys keyspace.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// SearchPage returns up to size hits matching query across indices, in
// ascending (timestamp, tiebreaker) order strictly after the after key.
// The boolean reports whether more hits may follow.
//
// Indices lacking a field the query references contribute no hits.
func (r *Repo) SearchPage(
	ctx context.Context, indices []domidx.Index,
	query filter.Query, timestampField string, after cursor.Key, size int,
) ([]result.Hit, bool, error) {
	pages := make([]*db.EventPage, len(indices))

	g, gctx := errgroup.WithContext(ctx)
	for i, idx := range indices {
		g.Go(func() error {
			page, err := r.searchIndex(gctx, idx, query, timestampField, after, size)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	return merge(pages, size)
}

func (r *Repo) searchIndex(
	ctx context.Context, idx domidx.Index,
	query filter.Query, timestampField string, after cursor.Key, size int,
) (*db.EventPage, error) {
	page, err := r.store.SearchEvents(ctx, &db.EventQuery{
		IndexName:      r.keys.SearchIndex(idx.Name()),
		KeyPrefix:      r.keys.EventRoot(),
		Query:          query,
		Schema:         idx,
		TimestampField: timestampField,
		After:          after,
		Size:           size,
	})
	switch {
	case err == nil:
		return page, nil
	case errors.Is(err, db.ErrUnknownField):
		return &db.EventPage{}, nil
	case errors.Is(err, db.ErrIndexNotFound):
		return nil, fmt.Errorf("search %s: %w", idx.Name(), domain.ErrNotFound)
	}
	return nil, fmt.Errorf("search %s: %w", idx.Name(), err)
}

// merge combines per-index pages. Each page holds the first size entries
// of its index after the same key, so the first size entries of their
// union are the first size entries overall.
func merge(pages []*db.EventPage, size int) ([]result.Hit, bool, error) {
	var entries []db.EventEntry
	more := false
	for _, p := range pages {
		entries = append(entries, p.Entries...)
		more = more || p.More
	}
	db.SortEntries(entries)
	if len(entries) > size {
		entries = entries[:size]
		more = true
	}

	hits := make([]result.Hit, 0, len(entries))
	for _, e := range entries {
		index, id, ok := event.SplitTiebreaker(e.Sort.Tiebreaker)
		if !ok {
			return nil, false, fmt.Errorf("malformed event key %q", e.Sort.Tiebreaker)
		}
		hits = append(hits, result.Hit{
			Index:     index,
			ID:        id,
			Timestamp: e.Sort.Timestamp,
			Source:    e.Source,
			Sort:      e.Sort,
		})
	}
	return hits, more, nil
}
