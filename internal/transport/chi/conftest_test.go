package chi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/seqdex/internal/db/memory"
	"github.com/kailas-cloud/seqdex/internal/domain/search/request"
	eventrepo "github.com/kailas-cloud/seqdex/internal/repository/event"
	indexrepo "github.com/kailas-cloud/seqdex/internal/repository/index"
	"github.com/kailas-cloud/seqdex/internal/repository/keyspace"
	searchrepo "github.com/kailas-cloud/seqdex/internal/repository/search"
	eventuc "github.com/kailas-cloud/seqdex/internal/usecase/event"
	healthuc "github.com/kailas-cloud/seqdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/seqdex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/seqdex/internal/usecase/search"
)

// apiFixture serves the full API over the in-memory backend.
type apiFixture struct {
	t       *testing.T
	server  *Server
	handler http.Handler
}

func newAPIFixture(t *testing.T, cfg RouterConfig) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	keys := keyspace.New("test:")

	indices := indexrepo.New(store, keys, indexrepo.CacheConfig{})
	events := eventrepo.New(store, keys)

	s := NewServer(
		indexuc.New(indices),
		eventuc.New(events, indices, request.DefaultTimestampField),
		searchuc.New(searchrepo.New(store, keys), indices, zap.NewNop()),
		healthuc.New(store, indices),
		zap.NewNop(),
	)
	return &apiFixture{t: t, server: s, handler: NewRouter(s, cfg, zap.NewNop())}
}

func (f *apiFixture) do(method, target string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			f.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "192.0.2.1:4321"
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) expect(rr *httptest.ResponseRecorder, status int, out any) {
	f.t.Helper()
	if rr.Code != status {
		f.t.Fatalf("status = %d, want %d; body: %s", rr.Code, status, rr.Body.String())
	}
	if out == nil {
		return
	}
	if err := json.NewDecoder(rr.Body).Decode(out); err != nil {
		f.t.Fatalf("decode response: %v", err)
	}
}

// createLogs creates the "logs" index with the fields the tests query.
func (f *apiFixture) createLogs(name string) {
	f.t.Helper()
	f.expect(f.do(http.MethodPut, "/"+name, CreateIndexRequest{Fields: []FieldDefinition{
		{Name: "@timestamp", Type: "date"},
		{Name: "event.category", Type: "keyword"},
		{Name: "user", Type: "keyword"},
		{Name: "process.pid", Type: "numeric"},
	}}), http.StatusCreated, nil)
}

func (f *apiFixture) ingest(index string, events ...map[string]any) {
	f.t.Helper()
	for _, ev := range events {
		id, _ := ev["_id"].(string)
		delete(ev, "_id")
		f.expect(f.do(http.MethodPut, "/"+index+"/_doc/"+id, ev), http.StatusCreated, nil)
	}
}

func ev(id string, ts int64, category, user string) map[string]any {
	return map[string]any{"_id": id, "@timestamp": ts, "event.category": category, "user": user}
}

// searchResponse mirrors the search response body.
type searchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total *struct {
			Value    int64  `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
		Events []struct {
			Index  string         `json:"_index"`
			ID     string         `json:"_id"`
			Source map[string]any `json:"_source"`
		} `json:"events"`
		Sequences []struct {
			JoinKeys []any `json:"join_keys"`
			Events   []struct {
				ID string `json:"_id"`
			} `json:"events"`
		} `json:"sequences"`
	} `json:"hits"`
	SearchAfter []any `json:"search_after"`
}

func (r *searchResponse) ids() []string {
	out := make([]string, len(r.Hits.Events))
	for i, e := range r.Hits.Events {
		out[i] = e.ID
	}
	return out
}
