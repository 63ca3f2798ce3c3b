package seqdex

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewIndex_OnlyParsesSchema(t *testing.T) {
	idx, err := NewIndex[login](nil, "auth")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Name() != "auth" || len(idx.Fields()) != 5 {
		t.Errorf("unexpected index %q with %d fields", idx.Name(), len(idx.Fields()))
	}
	if _, err := NewIndex[noIDEvent](nil, "bad"); err == nil {
		t.Fatal("expected error for struct without id tag")
	}
}

func TestQueryBuilder_Chaining(t *testing.T) {
	idx, err := NewIndex[login](nil, "auth")
	if err != nil {
		t.Fatal(err)
	}
	b := idx.Query("authentication where true").
		Also("auth-*").
		Size(50).
		Where("user.name", "alice").
		Between("bytes", 10, 100).
		CaseSensitive()

	if len(b.indices) != 2 || b.indices[1] != "auth-*" {
		t.Errorf("indices = %v", b.indices)
	}
	if b.opts.Size != 50 || !b.opts.CaseSensitive {
		t.Errorf("opts = %+v", b.opts)
	}
	clauses := b.opts.Filter["bool"].(map[string]any)["filter"].([]any)
	if len(clauses) != 2 {
		t.Fatalf("filter clauses = %d, want 2", len(clauses))
	}
}

func TestTypedIndex_EndToEnd(t *testing.T) {
	c := newMemoryClient(t)
	ctx := context.Background()

	idx, err := NewIndex[login](c, "auth")
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Ensure(ctx); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := idx.Ensure(ctx); err != nil {
		t.Fatalf("Ensure is idempotent: %v", err)
	}

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	items := []login{
		{ID: "a1", At: base, Kind: "authentication", User: "alice", Success: false},
		{ID: "a2", At: base.Add(time.Minute), Kind: "authentication", User: "alice", Success: true},
		{ID: "b1", At: base.Add(2 * time.Minute), Kind: "authentication", User: "bob", Success: true},
	}
	for _, r := range idx.PutBatch(ctx, items) {
		if r.Err != nil {
			t.Fatalf("PutBatch %s: %v", r.ID, r.Err)
		}
	}

	got, err := idx.Get(ctx, "a2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.User != "alice" || !got.At.Equal(items[1].At) || !got.Success {
		t.Errorf("unexpected item: %+v", got)
	}

	res, err := idx.Query("authentication where success == true").Where("user.name", "bob").Do(ctx)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].Item.ID != "b1" {
		t.Fatalf("unexpected hits: %+v", res.Hits)
	}

	seq, err := idx.Query(
		"sequence by user.name [authentication where success == false] [authentication where success == true]",
	).Do(ctx)
	if err != nil {
		t.Fatalf("Do sequence: %v", err)
	}
	if len(seq.Matches) != 1 || seq.Matches[0].Hits[0].Item.ID != "a1" || seq.Matches[0].Hits[1].Item.ID != "a2" {
		t.Fatalf("unexpected matches: %+v", seq.Matches)
	}

	if err := idx.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := idx.Get(ctx, "a1"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}

	created, err := idx.Put(ctx, login{ID: "c1", At: base, Kind: "authentication", User: "carol"})
	if err != nil || !created {
		t.Fatalf("Put = %v, %v", created, err)
	}
}
