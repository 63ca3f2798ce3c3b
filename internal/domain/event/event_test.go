package event

import (
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	src := map[string]any{"user": "root", "@timestamp": "2020-01-01"}

	ev, err := New("evt-1.a", src, 1577836800000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ID() != "evt-1.a" {
		t.Errorf("ID() = %q", ev.ID())
	}
	if ev.Source()["user"] != "root" {
		t.Errorf("Source() = %v", ev.Source())
	}
	if ev.Timestamp() != 1577836800000 {
		t.Errorf("Timestamp() = %d", ev.Timestamp())
	}
}

func TestNew_ClonesSource(t *testing.T) {
	src := map[string]any{"k": "v"}
	ev, _ := New("e", src, 0)

	// Mutating the original map must not affect the event
	src["k"] = "mutated"

	if ev.Source()["k"] != "v" {
		t.Error("source mutation leaked into event")
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		id   string
		src  map[string]any
		want string
	}{
		{"empty id", "", map[string]any{"a": 1}, "required"},
		{"long id", strings.Repeat("a", 257), map[string]any{"a": 1}, "too long"},
		{"bad chars", "a b", map[string]any{"a": 1}, "alphanumeric"},
		{"colon", "a:b", map[string]any{"a": 1}, "alphanumeric"},
		{"empty source", "e", nil, "source is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.src, 0)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	src := map[string]any{
		"user":         "root",
		"process":      map[string]any{"name": "cmd.exe", "parent": map[string]any{"pid": 4.0}},
		"event.kind":   "alert",
		"agent":        map[string]any{"id.raw": "x"},
		"host":         nil,
		"process.name": "flat.exe",
	}
	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"user", "root", true},
		{"process.parent.pid", 4.0, true},
		{"event.kind", "alert", true},
		{"agent.id.raw", "x", true},
		{"process.name", "flat.exe", true},
		{"host", nil, true},
		{"missing", nil, false},
		{"user.name", nil, false},
	}
	for _, tt := range tests {
		got, ok := Lookup(src, tt.path)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Lookup(%q) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValues(t *testing.T) {
	got := Values([]any{"a", []any{"b", 1.0}, nil})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != 1.0 {
		t.Errorf("Values = %v", got)
	}
	if Values(nil) != nil {
		t.Error("Values(nil) must be nil")
	}
	if v := Values("x"); len(v) != 1 || v[0] != "x" {
		t.Errorf("Values(scalar) = %v", v)
	}
}

func TestTiebreaker(t *testing.T) {
	tb := Tiebreaker("logs-1", "e:1")
	idx, id, ok := SplitTiebreaker(tb)
	if !ok || idx != "logs-1" || id != "e:1" {
		t.Errorf("SplitTiebreaker(%q) = %q, %q, %v", tb, idx, id, ok)
	}
}
