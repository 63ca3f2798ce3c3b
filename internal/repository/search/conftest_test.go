package search

import (
	"context"
	"sync"
	"testing"

	"github.com/kailas-cloud/seqdex/internal/db"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/repository/keyspace"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	mu             sync.Mutex
	queries        []*db.EventQuery
	searchEventsFn func(ctx context.Context, q *db.EventQuery) (*db.EventPage, error)
}

func (m *mockStore) SearchEvents(ctx context.Context, q *db.EventQuery) (*db.EventPage, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if m.searchEventsFn != nil {
		return m.searchEventsFn(ctx, q)
	}
	return &db.EventPage{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, keyspace.New("seqdex:")), ms
}

func testIndex(name string, extra ...field.Field) domidx.Index {
	fields := append([]field.Field{
		field.Reconstruct("@timestamp", field.Date),
		field.Reconstruct("user", field.Keyword),
	}, extra...)
	return domidx.Reconstruct(name, fields, 1)
}

func entry(ts int64, index, id string) db.EventEntry {
	return db.EventEntry{
		Sort:   cursor.Key{Timestamp: ts, Tiebreaker: index + ":" + id},
		Source: map[string]any{"id": id},
	}
}
