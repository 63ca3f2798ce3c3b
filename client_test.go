package seqdex

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newMemoryClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(append([]Option{WithMemory()}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

var logFields = []Field{
	{Name: "@timestamp", Type: FieldDate},
	{Name: "event.category", Type: FieldKeyword},
	{Name: "user", Type: FieldKeyword},
	{Name: "bytes", Type: FieldNumeric},
}

func ingest(t *testing.T, c *Client, index string, items ...BulkItem) {
	t.Helper()
	for _, r := range c.Bulk(context.Background(), index, items) {
		if r.Err != nil {
			t.Fatalf("bulk %s: %v", r.ID, r.Err)
		}
	}
}

func ev(id string, ts int64, category, user string, bytes float64) BulkItem {
	return BulkItem{ID: id, Source: map[string]any{
		"@timestamp": ts, "event": map[string]any{"category": category}, "user": user, "bytes": bytes,
	}}
}

func TestNew_NoBackend(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error without a backend option")
	}
}

func TestNew_RedisWithoutAddr(t *testing.T) {
	if _, err := New(WithRedis("", "")); err == nil {
		t.Fatal("expected error for empty redis address")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithRedis("localhost:6379", "secret")(cfg)
	if cfg.driver != driverRedis || cfg.addrs[0] != "localhost:6379" || cfg.password != "secret" {
		t.Errorf("unexpected redis config: %+v", cfg)
	}

	WithMemory()(cfg)
	if cfg.driver != driverMemory {
		t.Errorf("driver = %q, want memory", cfg.driver)
	}

	WithTimestampField("ts")(cfg)
	WithEventCategoryField("kind")(cfg)
	WithImplicitJoinKeyField("host")(cfg)
	WithDefaultSize(50)(cfg)
	if cfg.defaults.TimestampField != "ts" || cfg.defaults.EventCategoryField != "kind" ||
		cfg.defaults.ImplicitJoinKeyField != "host" || cfg.defaults.FetchSize != 50 {
		t.Errorf("unexpected defaults: %+v", cfg.defaults)
	}

	WithSchemaCache(128, time.Minute)(cfg)
	if cfg.cacheSize != 128 || cfg.cacheTTL != time.Minute {
		t.Errorf("cache = (%d, %s)", cfg.cacheSize, cfg.cacheTTL)
	}

	WithMaxBatchSize(5000)(cfg)
	if cfg.maxBatchSize != 5000 {
		t.Errorf("maxBatchSize = %d, want 5000", cfg.maxBatchSize)
	}

	WithLogger(nil)(cfg)
	if cfg.logger != nil {
		t.Error("nil logger should be ignored")
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	c := &Client{store: nil}
	c.Close()
}

func TestClient_PingAndHealth(t *testing.T) {
	c := newMemoryClient(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !c.Healthy(context.Background()) {
		t.Error("memory client should be healthy")
	}
}

func TestClient_IndexLifecycle(t *testing.T) {
	c := newMemoryClient(t, WithSchemaCache(16, time.Minute))
	ctx := context.Background()

	info, err := c.CreateIndex(ctx, "logs", logFields...)
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if info.Name != "logs" || len(info.Fields) != len(logFields) || info.CreatedAt.IsZero() {
		t.Errorf("unexpected index: %+v", info)
	}

	if _, err := c.CreateIndex(ctx, "logs", logFields...); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := c.EnsureIndex(ctx, "logs", logFields...); err != nil {
		t.Fatalf("EnsureIndex on existing: %v", err)
	}

	if _, err := c.CreateIndex(ctx, "bad", Field{Name: "_id", Type: FieldKeyword}); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}

	list, err := c.ListIndices(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListIndices = %v, %v", list, err)
	}

	if err := c.DeleteIndex(ctx, "logs"); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	if _, err := c.GetIndex(ctx, "logs"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_Events(t *testing.T) {
	c := newMemoryClient(t)
	ctx := context.Background()
	if _, err := c.CreateIndex(ctx, "logs", logFields...); err != nil {
		t.Fatal(err)
	}

	stored, created, err := c.IndexEvent(ctx, "logs", "e1", map[string]any{
		"@timestamp": "2024-01-01T00:00:00Z", "user": "alice",
	})
	if err != nil {
		t.Fatalf("IndexEvent: %v", err)
	}
	if !created || stored.Timestamp != 1704067200000 {
		t.Errorf("created=%v timestamp=%d", created, stored.Timestamp)
	}

	if _, _, err := c.IndexEvent(ctx, "logs", "e2", map[string]any{"user": "bob"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for missing timestamp, got %v", err)
	}

	results := c.Bulk(ctx, "logs", []BulkItem{
		{ID: "b1", Source: map[string]any{"@timestamp": 1}},
		{ID: "b2", Source: map[string]any{"@timestamp": "not a date"}},
		{Source: map[string]any{"@timestamp": 3}},
	})
	if results[0].Status != "created" || results[1].Err == nil || results[2].ID == "" {
		t.Errorf("unexpected bulk results: %+v", results)
	}

	got, err := c.GetEvent(ctx, "logs", "e1")
	if err != nil || got.Source["user"] != "alice" {
		t.Fatalf("GetEvent = %+v, %v", got, err)
	}

	if err := c.DeleteEvent(ctx, "logs", "e1"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if _, err := c.GetEvent(ctx, "logs", "e1"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestClient_Search(t *testing.T) {
	c := newMemoryClient(t)
	ctx := context.Background()
	if _, err := c.CreateIndex(ctx, "logs", logFields...); err != nil {
		t.Fatal(err)
	}
	ingest(t, c, "logs",
		ev("1", 1000, "process", "alice", 10),
		ev("2", 2000, "network", "alice", 500),
		ev("3", 3000, "process", "bob", 20),
		ev("4", 4000, "network", "bob", 900),
	)

	res, err := c.Search(ctx, []string{"logs"}, "process where true", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Events) != 2 || res.Events[0].ID != "1" || res.Events[1].ID != "3" {
		t.Fatalf("unexpected events: %+v", res.Events)
	}

	res, err = c.Search(ctx, []string{"logs"}, "network where true",
		&SearchOptions{Filter: map[string]any{"term": map[string]any{"user": "bob"}}})
	if err != nil {
		t.Fatalf("Search with filter: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].ID != "4" {
		t.Fatalf("unexpected filtered events: %+v", res.Events)
	}

	res, err = c.Search(ctx, []string{"logs"}, "sequence by user [process where true] [network where bytes > 100]", nil)
	if err != nil {
		t.Fatalf("Search sequence: %v", err)
	}
	if len(res.Sequences) != 2 {
		t.Fatalf("expected 2 sequences, got %d", len(res.Sequences))
	}
	if res.Sequences[0].JoinKeys[0] != "alice" || res.Sequences[0].Events[1].ID != "2" {
		t.Errorf("unexpected first sequence: %+v", res.Sequences[0])
	}

	res, err = c.Search(ctx, []string{"logs"}, "any where true | count", nil)
	if err != nil {
		t.Fatalf("Search count: %v", err)
	}
	if res.Count == nil || *res.Count != 4 {
		t.Fatalf("unexpected count: %v", res.Count)
	}
}

func TestClient_SearchErrors(t *testing.T) {
	c := newMemoryClient(t)
	ctx := context.Background()

	if _, err := c.Search(ctx, []string{"logs"}, "", nil); err == nil {
		t.Error("expected error for empty query")
	}
	if _, err := c.Search(ctx, nil, "any where true", nil); err == nil {
		t.Error("expected error without indices")
	}
	if _, err := c.Search(ctx, []string{"logs"}, "any where true",
		&SearchOptions{Filter: map[string]any{"nope": 1}}); err == nil {
		t.Error("expected error for malformed filter")
	}
}
