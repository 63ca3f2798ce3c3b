package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/seqdex/internal/domain/event"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
	"github.com/kailas-cloud/seqdex/internal/metrics"
)

// stageError tags a backend failure with the stage whose stream hit it.
type stageError struct {
	stage int
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// pagedStream is the hit stream of one stage. It holds at most one page
// and fetches the next one only when Peek runs past the buffer.
type pagedStream struct {
	repo    Repository
	indices []domidx.Index
	query   filter.Query
	tsField string
	keys    []string
	stage   int
	role    string
	size    int

	after   cursor.Key
	buf     []result.Hit
	pos     int
	more    bool
	fetched bool
	pages   int
}

// Peek returns the next hit without consuming it, or nil at the end.
func (s *pagedStream) Peek(ctx context.Context) (*result.Hit, error) {
	if s.pos < len(s.buf) {
		return &s.buf[s.pos], nil
	}
	if s.fetched && !s.more {
		return nil, nil
	}
	if err := s.fetch(ctx); err != nil {
		return nil, err
	}
	if s.pos < len(s.buf) {
		return &s.buf[s.pos], nil
	}
	return nil, nil
}

// Advance consumes the peeked hit.
func (s *pagedStream) Advance() {
	if s.pos < len(s.buf) {
		s.pos++
	}
}

// drained reports whether every hit has been consumed without another fetch.
func (s *pagedStream) drained() bool {
	return s.fetched && !s.more && s.pos >= len(s.buf)
}

func (s *pagedStream) fetch(ctx context.Context) error {
	hits, more, err := s.repo.SearchPage(ctx, s.indices, s.query, s.tsField, s.after, s.size)
	metrics.PageFetchesTotal.WithLabelValues(s.role).Inc()
	if err != nil {
		return &stageError{stage: s.stage, err: err}
	}
	s.pages++
	for i := range hits {
		h := &hits[i]
		h.Stage = s.stage
		h.Keys = joinKeys(h.Source, s.keys)
		h.Partition = result.Partition(h.Keys)
	}
	s.buf, s.pos, s.more, s.fetched = hits, 0, more, true
	if len(hits) > 0 {
		s.after = hits[len(hits)-1].Sort
	}
	return nil
}

func joinKeys(source map[string]any, keys []string) []any {
	if len(keys) == 0 {
		return nil
	}
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i], _ = event.Lookup(source, k)
	}
	return out
}

// prime fetches the first page of every stream concurrently.
func prime(ctx context.Context, streams []*pagedStream) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range streams {
		g.Go(func() error {
			_, err := st.Peek(gctx)
			return err
		})
	}
	return g.Wait()
}
