package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/seqdex/internal/db/memory"
	"github.com/kailas-cloud/seqdex/internal/domain"
	"github.com/kailas-cloud/seqdex/internal/domain/eql"
	"github.com/kailas-cloud/seqdex/internal/domain/event"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
	"github.com/kailas-cloud/seqdex/internal/domain/search/request"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
	eventrepo "github.com/kailas-cloud/seqdex/internal/repository/event"
	indexrepo "github.com/kailas-cloud/seqdex/internal/repository/index"
	"github.com/kailas-cloud/seqdex/internal/repository/keyspace"
	searchrepo "github.com/kailas-cloud/seqdex/internal/repository/search"
)

// --- Fixture ---

type fixture struct {
	t       *testing.T
	store   *memory.Store
	keys    keyspace.Keyspace
	indices *indexrepo.Repo
	events  *eventrepo.Repo
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	keys := keyspace.New("test:")
	f := &fixture{
		t:       t,
		store:   store,
		keys:    keys,
		indices: indexrepo.New(store, keys, indexrepo.CacheConfig{}),
		events:  eventrepo.New(store, keys),
	}
	f.svc = New(searchrepo.New(store, keys), f.indices, nil)
	return f
}

func (f *fixture) index(name string, extra ...field.Field) domidx.Index {
	f.t.Helper()
	fields := append([]field.Field{
		field.Reconstruct("@timestamp", field.Date),
		field.Reconstruct("event.category", field.Keyword),
		field.Reconstruct("user", field.Keyword),
		field.Reconstruct("host", field.Keyword),
	}, extra...)
	idx, err := domidx.New(name, fields)
	if err != nil {
		f.t.Fatalf("index: %v", err)
	}
	if err := f.indices.Create(context.Background(), idx); err != nil {
		f.t.Fatalf("create index: %v", err)
	}
	return idx
}

func (f *fixture) add(idx domidx.Index, id string, ts int64, category string, kv ...string) {
	f.t.Helper()
	src := map[string]any{"@timestamp": ts, "event.category": category}
	for i := 0; i+1 < len(kv); i += 2 {
		src[kv[i]] = kv[i+1]
	}
	ev, err := event.New(id, src, ts)
	if err != nil {
		f.t.Fatalf("event: %v", err)
	}
	if _, err := f.events.Upsert(context.Background(), idx, &ev); err != nil {
		f.t.Fatalf("upsert: %v", err)
	}
}

func (f *fixture) search(indices []string, query string, opts ...request.Option) (*result.Response, error) {
	f.t.Helper()
	req, err := request.New(indices, query, request.DefaultDefaults(), opts...)
	if err != nil {
		f.t.Fatalf("request: %v", err)
	}
	return f.svc.Search(context.Background(), &req)
}

func (f *fixture) mustSearch(indices []string, query string, opts ...request.Option) *result.Response {
	f.t.Helper()
	resp, err := f.search(indices, query, opts...)
	if err != nil {
		f.t.Fatalf("search %q: %v", query, err)
	}
	return resp
}

func ids(resp *result.Response) []string {
	out := make([]string, len(resp.Hits.Events))
	for i, e := range resp.Hits.Events {
		out[i] = e.ID
	}
	return out
}

func seqIDs(resp *result.Response) []string {
	out := make([]string, len(resp.Hits.Sequences))
	for i, s := range resp.Hits.Sequences {
		parts := make([]string, len(s.Events))
		for j, e := range s.Events {
			parts[j] = e.ID
		}
		out[i] = strings.Join(parts, ",")
	}
	return out
}

func assertIDs(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("got %v, want %v", got, want)
	}
}

// --- Event queries ---

func TestSearch_EventQuery(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "e1", 3, "process", "user", "root")
	f.add(logs, "e2", 1, "process", "user", "SYSTEM")
	f.add(logs, "e3", 2, "file", "user", "root")
	f.add(logs, "e4", 4, "process", "user", "admin")

	resp := f.mustSearch([]string{"logs"}, `process where user != "SYSTEM"`)
	assertIDs(t, ids(resp), []string{"e1", "e4"})
	if resp.TimedOut || resp.SearchAfter != nil {
		t.Errorf("unexpected response flags: %+v", resp)
	}
	if e := resp.Hits.Events[0]; e.Index != "logs" || len(e.Sort) != 2 || e.Sort[0] != int64(3) || e.Sort[1] != "logs:e1" {
		t.Errorf("unexpected first event: %+v", e)
	}
}

func TestSearch_CaseSensitivity(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "e1", 1, "process", "user", "Alice")

	resp := f.mustSearch([]string{"logs"}, `process where user == "alice"`)
	assertIDs(t, ids(resp), []string{"e1"})

	resp = f.mustSearch([]string{"logs"}, `process where user == "alice"`, request.WithCaseSensitive(true))
	assertIDs(t, ids(resp), nil)

	resp = f.mustSearch([]string{"logs"}, `process where user == "Alice"`, request.WithCaseSensitive(true))
	assertIDs(t, ids(resp), []string{"e1"})
}

func TestSearch_PaginationRoundTrip(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	for i, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		f.add(logs, id, int64(i+1), "process")
	}

	var got []string
	var after []any
	for page := 0; page < 10; page++ {
		opts := []request.Option{request.WithSize(2)}
		if after != nil {
			opts = append(opts, request.WithSearchAfter(after...))
		}
		resp := f.mustSearch([]string{"logs"}, "process where true", opts...)
		got = append(got, ids(resp)...)
		if resp.SearchAfter == nil {
			break
		}
		after = resp.SearchAfter
	}
	assertIDs(t, got, []string{"e1", "e2", "e3", "e4", "e5"})
}

func TestSearch_SameTimestampPagination(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	for _, id := range []string{"a", "b", "c"} {
		f.add(logs, id, 7, "process")
	}

	first := f.mustSearch([]string{"logs"}, "process where true", request.WithSize(2))
	assertIDs(t, ids(first), []string{"a", "b"})
	second := f.mustSearch([]string{"logs"}, "process where true",
		request.WithSize(2), request.WithSearchAfter(first.SearchAfter...))
	assertIDs(t, ids(second), []string{"c"})
}

func TestSearch_Pipes(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "e1", 1, "process", "user", "a")
	f.add(logs, "e2", 2, "process", "user", "b")
	f.add(logs, "e3", 3, "process", "user", "a")
	f.add(logs, "e4", 4, "process", "user", "c")

	assertIDs(t, ids(f.mustSearch([]string{"logs"}, "process where true | head 2")), []string{"e1", "e2"})
	assertIDs(t, ids(f.mustSearch([]string{"logs"}, "process where true | tail 2")), []string{"e3", "e4"})
	assertIDs(t, ids(f.mustSearch([]string{"logs"}, "process where true | unique user")), []string{"e1", "e2", "e4"})

	resp := f.mustSearch([]string{"logs"}, "process where true | count")
	if resp.Hits.Total == nil || resp.Hits.Total.Value != 4 || resp.Hits.Events != nil {
		t.Errorf("unexpected count response: %+v", resp.Hits)
	}
}

func TestSearch_ImplicitHeadUsesFetchSize(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	for i, id := range []string{"e1", "e2", "e3"} {
		f.add(logs, id, int64(i+1), "process")
	}
	resp := f.mustSearch([]string{"logs"}, "process where true", request.WithSize(2))
	assertIDs(t, ids(resp), []string{"e1", "e2"})
	if resp.SearchAfter == nil {
		t.Error("expected search_after while results remain")
	}
}

func TestSearch_MultiIndexAndPatterns(t *testing.T) {
	f := newFixture(t)
	a := f.index("logs-a")
	b := f.index("logs-b")
	other := f.index("metrics")
	f.add(a, "e1", 2, "process")
	f.add(b, "e2", 1, "process")
	f.add(b, "e3", 3, "process")
	f.add(other, "e4", 4, "process")

	resp := f.mustSearch([]string{"logs-*"}, "process where true")
	assertIDs(t, ids(resp), []string{"e2", "e1", "e3"})

	resp = f.mustSearch([]string{"logs-a", "metrics"}, "process where true")
	assertIDs(t, ids(resp), []string{"e1", "e4"})

	resp = f.mustSearch([]string{"nothing-*"}, "process where true")
	if len(resp.Hits.Events) != 0 {
		t.Errorf("pattern without matches should return nothing, got %v", ids(resp))
	}
}

func TestSearch_RequestFilter(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "e1", 1, "process", "host", "h1")
	f.add(logs, "e2", 2, "process", "host", "h2")

	resp := f.mustSearch([]string{"logs"}, "process where true",
		request.WithFilter(filter.Term{Field: "host", Value: "h2"}))
	assertIDs(t, ids(resp), []string{"e2"})

	_, err := f.search([]string{"logs"}, "process where true",
		request.WithFilter(filter.Term{Field: "nope", Value: "x"}))
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// --- Sequences and joins ---

func TestSearch_Sequence(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "p1", 1, "process", "user", "a")
	f.add(logs, "p2", 2, "process", "user", "b")
	f.add(logs, "n1", 3, "network", "user", "a")
	f.add(logs, "n2", 4, "network", "user", "c")

	resp := f.mustSearch([]string{"logs"}, "sequence by user [process where true] [network where true]")
	assertIDs(t, seqIDs(resp), []string{"p1,n1"})
	if keys := resp.Hits.Sequences[0].JoinKeys; len(keys) != 1 || keys[0] != "a" {
		t.Errorf("join keys = %v", keys)
	}
}

func TestSearch_SequenceMaxSpanAndUntil(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "p1", 1, "process", "user", "a")
	f.add(logs, "n1", 5000, "network", "user", "a")
	f.add(logs, "p2", 6000, "process", "user", "b")
	f.add(logs, "x2", 6500, "file", "user", "b")
	f.add(logs, "n2", 7000, "network", "user", "b")

	resp := f.mustSearch([]string{"logs"},
		"sequence by user with maxspan=2s [process where true] [network where true]")
	assertIDs(t, seqIDs(resp), []string{"p2,n2"})

	resp = f.mustSearch([]string{"logs"},
		"sequence by user [process where true] [network where true] until [file where true]")
	assertIDs(t, seqIDs(resp), []string{"p1,n1"})
}

func TestSearch_SequencePagination(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "p1", 1, "process", "user", "a")
	f.add(logs, "n1", 2, "network", "user", "a")
	f.add(logs, "p2", 3, "process", "user", "b")
	f.add(logs, "n2", 4, "network", "user", "b")

	q := "sequence by user [process where true] [network where true]"
	first := f.mustSearch([]string{"logs"}, q, request.WithSize(1))
	assertIDs(t, seqIDs(first), []string{"p1,n1"})
	if len(first.SearchAfter) != 1 {
		t.Fatalf("expected a single cursor token, got %v", first.SearchAfter)
	}

	second := f.mustSearch([]string{"logs"}, q, request.WithSize(1), request.WithSearchAfter(first.SearchAfter...))
	assertIDs(t, seqIDs(second), []string{"p2,n2"})
	if second.SearchAfter != nil {
		t.Errorf("expected exhausted cursor, got %v", second.SearchAfter)
	}
}

func TestSearch_SequenceEventInSeveralStages(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "f1", 1, "file", "user", "bob")
	f.add(logs, "f3", 3, "file", "user", "bob")

	for _, q := range []string{
		"sequence by user [file where true] [file where true]",
		"sequence by user [any where true] [file where true]",
	} {
		assertIDs(t, seqIDs(f.mustSearch([]string{"logs"}, q)), []string{"f1,f3"})
	}
}

func TestSearch_SequenceUntilTiedWithStage(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "p1", 1, "process", "user", "a")
	f.add(logs, "n1", 2, "network", "user", "a")
	f.add(logs, "x1", 2, "file", "user", "a")

	resp := f.mustSearch([]string{"logs"},
		"sequence by user [process where true] [network where true] until [file where true]")
	assertIDs(t, seqIDs(resp), []string{"p1,n1"})
}

// pageAll follows search_after until the cursor runs out.
func (f *fixture) pageAll(query string, size int) []string {
	f.t.Helper()
	var (
		got   []string
		after []any
	)
	for page := 0; page < 50; page++ {
		opts := []request.Option{request.WithSize(size)}
		if after != nil {
			opts = append(opts, request.WithSearchAfter(after...))
		}
		resp := f.mustSearch([]string{"logs"}, query, opts...)
		got = append(got, seqIDs(resp)...)
		if resp.SearchAfter == nil {
			return got
		}
		after = resp.SearchAfter
	}
	f.t.Fatalf("%q: search_after never ran out", query)
	return nil
}

func TestSearch_SequencePagingMatchesUnpaged(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	for _, e := range []struct {
		id       string
		ts       int64
		category string
		host     string
	}{
		{"a0", 1, "process", "A"},
		{"b0", 2, "process", "B"},
		{"a1", 3, "file", "A"},
		{"b1", 4, "file", "B"},
		{"c0", 5, "process", "C"},
		{"a2", 6, "process", "A"},
		{"c1", 7, "file", "C"},
		{"b2", 8, "process", "B"},
		{"a3", 9, "file", "A"},
		{"b3", 10, "file", "B"},
	} {
		f.add(logs, e.id, e.ts, e.category, "host", e.host)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{
			"sequence by host [process where true] [file where true]",
			[]string{"a0,a1", "b0,b1", "c0,c1", "a2,a3", "b2,b3"},
		},
		{
			"sequence by host [any where true] [any where true]",
			[]string{"a0,a1", "b0,b1", "a1,a2", "c0,c1", "b1,b2", "a2,a3", "b2,b3"},
		},
		{
			"join by host [process where true] [file where true]",
			[]string{"a0,a1", "b0,b1", "c0,c1", "a2,a3", "b2,b3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f.t = t
			unpaged := seqIDs(f.mustSearch([]string{"logs"}, tt.query, request.WithSize(100)))
			assertIDs(t, unpaged, tt.want)
			for _, size := range []int{1, 2, 3} {
				if got := f.pageAll(tt.query, size); strings.Join(got, " ") != strings.Join(tt.want, " ") {
					t.Errorf("size %d: paged %v, want %v", size, got, tt.want)
				}
			}
		})
	}
}

func TestSearch_Join(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "n1", 1, "network", "user", "a")
	f.add(logs, "p1", 2, "process", "user", "a")
	f.add(logs, "p2", 3, "process", "user", "b")

	resp := f.mustSearch([]string{"logs"}, "join by user [process where true] [network where true]")
	assertIDs(t, seqIDs(resp), []string{"p1,n1"})
}

func TestSearch_SearchAfterArity(t *testing.T) {
	f := newFixture(t)
	f.index("logs")

	tests := []struct {
		name  string
		query string
		after []any
	}{
		{"event takes two values", "process where true", []any{"token"}},
		{"sequence takes one token", "sequence by user [process where true] [network where true]", []any{int64(1), "logs:e1"}},
		{"sequence token must decode", "sequence by user [process where true] [network where true]", []any{"!!"}},
		{"token stage count", "sequence by user [process where true] [network where true]", []any{mustToken(t, 3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.search([]string{"logs"}, tt.query, request.WithSearchAfter(tt.after...))
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != "search_after" {
				t.Errorf("expected search_after validation error, got %v", err)
			}
		})
	}
}

func mustToken(t *testing.T, streams int) string {
	t.Helper()
	token, err := cursor.Encode(cursor.Resume{Positions: make([]cursor.Key, streams)})
	if err != nil {
		t.Fatal(err)
	}
	return token
}

// --- Errors ---

func TestSearch_Errors(t *testing.T) {
	f := newFixture(t)
	f.index("logs")

	tests := []struct {
		name    string
		indices []string
		query   string
		wantErr error
	}{
		{"syntax", []string{"logs"}, "process where user = 'x'", domain.ErrSyntax},
		{"unknown field", []string{"logs"}, "process where nope == 'x'", domain.ErrValidation},
		{"missing index", []string{"nope"}, "process where true", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.search(tt.indices, tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSearch_SyntaxErrorIsTyped(t *testing.T) {
	f := newFixture(t)
	f.index("logs")
	_, err := f.search([]string{"logs"}, "process where user = 'x'")
	var se *eql.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected *eql.SyntaxError, got %T", err)
	}
}

// failingRepo fails every page whose query mentions marker.
type failingRepo struct {
	inner  Repository
	marker string
	err    error
	mu     sync.Mutex
	calls  int
}

func (r *failingRepo) SearchPage(
	ctx context.Context, indices []domidx.Index,
	query filter.Query, timestampField string, after cursor.Key, size int,
) ([]result.Hit, bool, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if strings.Contains(filter.String(query), r.marker) {
		return nil, false, r.err
	}
	return r.inner.SearchPage(ctx, indices, query, timestampField, after, size)
}

func TestSearch_ExecutionErrorStage(t *testing.T) {
	boom := errors.New("backend down")
	tests := []struct {
		name      string
		query     string
		wantStage int
	}{
		{"event", `process where user == "boom"`, 0},
		{"second stage", `sequence by user [process where true] [network where user == "boom"]`, 1},
		{"until", `sequence by user [process where true] [network where true] until [file where user == "boom"]`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			logs := f.index("logs")
			f.add(logs, "p1", 1, "process", "user", "a")
			f.svc.repo = &failingRepo{inner: f.svc.repo, marker: "boom", err: boom}

			_, err := f.search([]string{"logs"}, tt.query)
			var ee *domain.ExecutionError
			if !errors.As(err, &ee) {
				t.Fatalf("expected ExecutionError, got %v", err)
			}
			if ee.Stage != tt.wantStage {
				t.Errorf("stage = %d, want %d", ee.Stage, tt.wantStage)
			}
			if !errors.Is(err, boom) || !errors.Is(err, domain.ErrExecution) {
				t.Errorf("error chain lost: %v", err)
			}
		})
	}
}

func TestSearch_Timeout(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	f.add(logs, "p1", 1, "process", "user", "a")

	req, err := request.New([]string{"logs"}, "process where true", request.DefaultDefaults())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err = f.svc.Search(ctx, &req)
	var te *domain.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("expected ErrTimeout in chain: %v", err)
	}
}

func TestSearch_LazyPaging(t *testing.T) {
	f := newFixture(t)
	logs := f.index("logs")
	for i, id := range []string{"e1", "e2", "e3", "e4", "e5", "e6"} {
		f.add(logs, id, int64(i+1), "process")
	}
	counting := &failingRepo{inner: f.svc.repo, marker: "\x00never"}
	f.svc.repo = counting

	f.mustSearch([]string{"logs"}, "process where true | head 2", request.WithSize(2))
	if counting.calls != 1 {
		t.Errorf("expected one page fetch, got %d", counting.calls)
	}
}
