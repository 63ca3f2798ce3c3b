package search

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/seqdex/internal/db"
	"github.com/kailas-cloud/seqdex/internal/db/memory"
	"github.com/kailas-cloud/seqdex/internal/domain"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
	"github.com/kailas-cloud/seqdex/internal/repository/keyspace"
)

func TestSearchPage_SingleIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchEventsFn = func(_ context.Context, q *db.EventQuery) (*db.EventPage, error) {
		return &db.EventPage{Entries: []db.EventEntry{entry(1, "logs", "a"), entry(2, "logs", "b")}, More: true}, nil
	}

	after := cursor.Key{Timestamp: 0, Tiebreaker: "logs:z"}
	hits, more, err := repo.SearchPage(context.Background(), []domidx.Index{testIndex("logs")},
		filter.MatchAll{}, "@timestamp", after, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !more {
		t.Error("expected more")
	}
	if len(hits) != 2 || hits[0].Index != "logs" || hits[0].ID != "a" || hits[1].Timestamp != 2 {
		t.Fatalf("unexpected hits: %+v", hits)
	}

	q := ms.queries[0]
	if q.IndexName != "seqdex:logs:idx" || q.KeyPrefix != "seqdex:event:" {
		t.Errorf("unexpected query target: %s %s", q.IndexName, q.KeyPrefix)
	}
	if q.After != after || q.Size != 2 || q.TimestampField != "@timestamp" {
		t.Errorf("unexpected query paging: %+v", q)
	}
	if ft, ok := q.Schema.FieldType("user"); !ok || ft != field.Keyword {
		t.Error("schema should be the index")
	}
}

func TestSearchPage_MergesIndices(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchEventsFn = func(_ context.Context, q *db.EventQuery) (*db.EventPage, error) {
		switch q.IndexName {
		case "seqdex:a:idx":
			return &db.EventPage{Entries: []db.EventEntry{entry(1, "a", "1"), entry(5, "a", "2")}}, nil
		default:
			return &db.EventPage{Entries: []db.EventEntry{entry(1, "b", "1"), entry(3, "b", "2")}}, nil
		}
	}

	hits, more, err := repo.SearchPage(context.Background(),
		[]domidx.Index{testIndex("a"), testIndex("b")}, filter.MatchAll{}, "@timestamp", cursor.Key{}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a:1", "b:1", "b:2"}
	if len(hits) != len(want) {
		t.Fatalf("got %d hits, want %d", len(hits), len(want))
	}
	for i, w := range want {
		if hits[i].Sort.Tiebreaker != w {
			t.Errorf("hit %d = %s, want %s", i, hits[i].Sort.Tiebreaker, w)
		}
	}
	if !more {
		t.Error("truncated merge must report more")
	}
}

func TestSearchPage_UnknownFieldSkipsIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchEventsFn = func(_ context.Context, q *db.EventQuery) (*db.EventPage, error) {
		if q.IndexName == "seqdex:a:idx" {
			return nil, db.ErrUnknownField
		}
		return &db.EventPage{Entries: []db.EventEntry{entry(1, "b", "1")}}, nil
	}

	hits, more, err := repo.SearchPage(context.Background(),
		[]domidx.Index{testIndex("a"), testIndex("b")}, filter.MatchAll{}, "@timestamp", cursor.Key{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Index != "b" || more {
		t.Errorf("unexpected result: %+v more=%v", hits, more)
	}
}

func TestSearchPage_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"missing index", db.ErrIndexNotFound, domain.ErrNotFound},
		{"backend failure", &db.Error{Op: db.OpSearch, Err: boom}, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, ms := newTestRepo(t)
			ms.searchEventsFn = func(context.Context, *db.EventQuery) (*db.EventPage, error) {
				return nil, tt.err
			}
			_, _, err := repo.SearchPage(context.Background(), []domidx.Index{testIndex("logs")},
				filter.MatchAll{}, "@timestamp", cursor.Key{}, 10)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSearchPage_MalformedKey(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchEventsFn = func(context.Context, *db.EventQuery) (*db.EventPage, error) {
		return &db.EventPage{Entries: []db.EventEntry{{Sort: cursor.Key{Timestamp: 1, Tiebreaker: "nocolon"}}}}, nil
	}
	if _, _, err := repo.SearchPage(context.Background(), []domidx.Index{testIndex("logs")},
		filter.MatchAll{}, "@timestamp", cursor.Key{}, 10); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchPage_Memory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	keys := keyspace.New("seqdex:")
	idx := testIndex("logs")

	def := db.NewEventIndex(keys.SearchIndex("logs"), keys.Events("logs")).
		Numeric("at_timestamp").
		Keyword("user").
		MustBuild()
	if err := store.CreateIndex(ctx, def); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	for id, doc := range map[string]string{
		"e1": `{"_source":{"user":"alice"},"_idx":{"at_timestamp":2,"user":"alice"}}`,
		"e2": `{"_source":{"user":"bob"},"_idx":{"at_timestamp":1,"user":"bob"}}`,
		"e3": `{"_source":{"user":"alice"},"_idx":{"at_timestamp":3,"user":"alice"}}`,
	} {
		if err := store.JSONSet(ctx, keys.Event("logs", id), "$", []byte(doc)); err != nil {
			t.Fatalf("JSONSet: %v", err)
		}
	}

	repo := New(store, keys)
	q := filter.Term{Field: "user", Value: "alice"}
	hits, more, err := repo.SearchPage(ctx, []domidx.Index{idx}, q, "@timestamp", cursor.Key{}, 1)
	if err != nil {
		t.Fatalf("SearchPage: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "e1" || !more {
		t.Fatalf("first page: %+v more=%v", hits, more)
	}

	hits, more, err = repo.SearchPage(ctx, []domidx.Index{idx}, q, "@timestamp", hits[0].Sort, 1)
	if err != nil {
		t.Fatalf("SearchPage: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "e3" || more {
		t.Fatalf("second page: %+v more=%v", hits, more)
	}
}
