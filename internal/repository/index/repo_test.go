package index

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/seqdex/internal/db"
	"github.com/kailas-cloud/seqdex/internal/db/memory"
	"github.com/kailas-cloud/seqdex/internal/domain"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/repository/keyspace"
)

// --- Create ---

func TestCreate_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		if key != "seqdex:index:logs" {
			t.Errorf("unexpected key: %s", key)
		}
		if fields["name"] != "logs" || fields["created_at"] != "1700000000000" {
			t.Errorf("unexpected hash: %v", fields)
		}
		return nil
	}
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		if def.Name != "seqdex:logs:idx" {
			t.Errorf("unexpected index name: %s", def.Name)
		}
		if !slices.Equal(def.Prefixes, []string{"seqdex:event:logs:"}) {
			t.Errorf("unexpected prefixes: %v", def.Prefixes)
		}
		return nil
	}

	if err := repo.Create(ctx, testIndex(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }

	err := repo.Create(context.Background(), testIndex(t))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_HSetError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetFn = func(_ context.Context, _ string, _ map[string]string) error {
		return errors.New("connection lost")
	}
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		t.Error("FT.CREATE must not run after a failed HSET")
		return nil
	}

	if err := repo.Create(context.Background(), testIndex(t)); err == nil {
		t.Fatal("expected error on HSET failure")
	}
}

func TestCreate_FTCreateError_Rollback(t *testing.T) {
	repo, ms := newTestRepo(t)

	var deleted string
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return db.ErrIndexExists
	}
	ms.delFn = func(_ context.Context, key string) error {
		deleted = key
		return nil
	}

	err := repo.Create(context.Background(), testIndex(t))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if deleted != "seqdex:index:logs" {
		t.Errorf("expected rollback of metadata, deleted %q", deleted)
	}
}

func TestCreate_RollbackFailureJoined(t *testing.T) {
	repo, ms := newTestRepo(t)
	createErr := errors.New("index limit reached")
	delErr := errors.New("del failed")
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error { return createErr }
	ms.delFn = func(_ context.Context, _ string) error { return delErr }

	err := repo.Create(context.Background(), testIndex(t))
	if !errors.Is(err, createErr) || !errors.Is(err, delErr) {
		t.Fatalf("expected both errors, got %v", err)
	}
}

func TestCreate_AttributeCollision(t *testing.T) {
	repo, _ := newTestRepo(t)
	idx := domidx.Reconstruct("logs", []field.Field{
		field.Reconstruct("@timestamp", field.Date),
		field.Reconstruct("user", field.Keyword),
		field.Reconstruct("user__ci", field.Keyword),
	}, 1)

	err := repo.Create(context.Background(), idx)
	if !errors.Is(err, domain.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
}

// --- Get ---

func TestGet_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "seqdex:index:logs" {
			t.Errorf("unexpected key: %s", key)
		}
		return testHash(), nil
	}

	idx, err := repo.Get(context.Background(), "logs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Name() != "logs" || len(idx.Fields()) != 2 || idx.CreatedAt() != 1700000000000 {
		t.Errorf("unexpected index: %+v", idx)
	}
	if ft, ok := idx.FieldType("user.name"); !ok || ft != field.Keyword {
		t.Errorf("FieldType(user.name) = %s, %v", ft, ok)
	}
}

func TestGet_Cached(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) { return testHash(), nil }

	for range 3 {
		if _, err := repo.Get(context.Background(), "logs"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ms.hgetAllCalls != 1 {
		t.Errorf("expected one backend read, got %d", ms.hgetAllCalls)
	}
}

func TestGet_CacheDisabled(t *testing.T) {
	ms := &mockStore{hgetAllFn: func(_ context.Context, _ string) (map[string]string, error) { return testHash(), nil }}
	repo := New(ms, keyspace.New("seqdex:"), CacheConfig{})

	for range 2 {
		if _, err := repo.Get(context.Background(), "logs"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ms.hgetAllCalls != 2 {
		t.Errorf("expected two backend reads, got %d", ms.hgetAllCalls)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_Corrupt(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{"name": "logs", "created_at": "nope"}, nil
	}
	if _, err := repo.Get(context.Background(), "logs"); err == nil {
		t.Fatal("expected error")
	}
}

// --- List ---

func TestList_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "seqdex:index:*" {
			t.Errorf("unexpected pattern: %s", pattern)
		}
		return []string{"seqdex:index:b", "seqdex:index:a", "seqdex:index:gone"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		return []map[string]string{
			{"name": "b", "fields_json": "[]", "created_at": "2"},
			{"name": "a", "fields_json": "[]", "created_at": "1"},
			{},
		}, nil
	}

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].Name() != "a" || list[1].Name() != "b" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestList_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)
	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %v", list)
	}
}

func TestCount(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "seqdex:index:*" {
			t.Errorf("unexpected pattern: %s", pattern)
		}
		return []string{"seqdex:index:a", "seqdex:index:b"}, nil
	}
	n, err := repo.Count(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("Count() = %d, %v", n, err)
	}

	ms.scanFn = func(context.Context, string) ([]string, error) { return nil, errors.New("down") }
	if _, err := repo.Count(context.Background()); err == nil {
		t.Error("expected error")
	}
}

// --- Delete ---

func TestDelete_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) { return testHash(), nil }
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }

	var dropped string
	var dd bool
	ms.dropIndexFn = func(_ context.Context, name string, deleteDocs bool) error {
		dropped, dd = name, deleteDocs
		return nil
	}

	if _, err := repo.Get(context.Background(), "logs"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(context.Background(), "logs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != "seqdex:logs:idx" || !dd {
		t.Errorf("DropIndex(%q, %v), want seqdex:logs:idx with documents", dropped, dd)
	}

	ms.hgetAllFn = nil
	if _, err := repo.Get(context.Background(), "logs"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted index must not be served from cache, got %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_DropError_Rollback(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) { return testHash(), nil }
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.dropIndexFn = func(_ context.Context, _ string, _ bool) error { return errors.New("boom") }

	var restored map[string]string
	ms.hsetFn = func(_ context.Context, _ string, fields map[string]string) error {
		restored = fields
		return nil
	}

	if err := repo.Delete(context.Background(), "logs"); err == nil {
		t.Fatal("expected error")
	}
	if restored["name"] != "logs" {
		t.Errorf("metadata not restored: %v", restored)
	}
}

// --- memory backend ---

func TestRepo_MemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := New(memory.NewStore(), keyspace.New("seqdex:"), CacheConfig{})
	idx := testIndex(t)

	if err := repo.Create(ctx, idx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, idx); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second Create: %v", err)
	}
	got, err := repo.Get(ctx, "logs")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Fields()) != len(idx.Fields()) {
		t.Errorf("fields = %d, want %d", len(got.Fields()), len(idx.Fields()))
	}
	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}
	if err := repo.Delete(ctx, "logs"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "logs"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get after Delete: %v", err)
	}
}
