package index

import (
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
)

func makeField(t *testing.T, name string, ft field.Type) field.Field {
	t.Helper()
	f, err := field.New(name, ft)
	if err != nil {
		t.Fatalf("field.New(%q, %q): %v", name, ft, err)
	}
	return f
}

func TestNew_Valid(t *testing.T) {
	fields := []field.Field{
		makeField(t, "@timestamp", field.Date),
		makeField(t, "user", field.Keyword),
	}
	before := time.Now().UnixMilli()

	idx, err := New("events-2024", fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.Name() != "events-2024" {
		t.Errorf("Name() = %q, want %q", idx.Name(), "events-2024")
	}
	if len(idx.Fields()) != 2 {
		t.Errorf("Fields() len = %d, want 2", len(idx.Fields()))
	}
	if idx.CreatedAt() < before {
		t.Errorf("CreatedAt() = %d, want >= %d", idx.CreatedAt(), before)
	}
	if ft, ok := idx.FieldType("user"); !ok || ft != field.Keyword {
		t.Errorf("FieldType(user) = %q, %v", ft, ok)
	}
	if _, ok := idx.FieldType("missing"); ok {
		t.Error("FieldType(missing) should not be found")
	}
}

func TestNew_Invalid(t *testing.T) {
	ts := makeField(t, "@timestamp", field.Date)
	user := makeField(t, "user", field.Keyword)

	tests := []struct {
		name    string
		idx     string
		fields  []field.Field
		wantErr string
	}{
		{"empty name", "", []field.Field{ts}, "required"},
		{"uppercase", "Events", []field.Field{ts}, "lowercase"},
		{"too long", strings.Repeat("a", 65), []field.Field{ts}, "too long"},
		{"no fields", "events", nil, "at least one field"},
		{"no date", "events", []field.Field{user}, "date field"},
		{"duplicate", "events", []field.Field{ts, user, user}, "duplicate"},
		{
			"attribute clash", "events",
			[]field.Field{ts, makeField(t, "a.b", field.Keyword), makeField(t, "a_b", field.Keyword)},
			"same attribute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.idx, tt.fields)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	a := Reconstruct("a", []field.Field{
		field.Reconstruct("@timestamp", field.Date),
		field.Reconstruct("user", field.Keyword),
	}, 0)
	b := Reconstruct("b", []field.Field{
		field.Reconstruct("@timestamp", field.Date),
		field.Reconstruct("pid", field.Numeric),
	}, 0)

	s, err := Merge(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	if ft, ok := s.FieldType("pid"); !ok || ft != field.Numeric {
		t.Errorf("FieldType(pid) = %q, %v", ft, ok)
	}
}

func TestMerge_Conflict(t *testing.T) {
	a := Reconstruct("a", []field.Field{field.Reconstruct("pid", field.Numeric)}, 0)
	b := Reconstruct("b", []field.Field{field.Reconstruct("pid", field.Keyword)}, 0)

	_, err := Merge(a, b)
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !strings.Contains(err.Error(), "pid") {
		t.Errorf("error = %q, want field name", err)
	}
}
