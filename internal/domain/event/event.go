package event

import (
	"fmt"
	"regexp"
	"strings"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)

// MaxSourceSize is the maximum encoded event size in bytes.
const MaxSourceSize = 163840 // 160KB

// Event is an indexed event document (immutable value object).
type Event struct {
	id        string
	source    map[string]any
	timestamp int64
}

// New validates and creates an Event.
// ID: ^[a-zA-Z0-9_.-]+$, 1-256 chars. Schema validation happens in the service layer.
func New(id string, source map[string]any, timestamp int64) (Event, error) {
	if id == "" {
		return Event{}, fmt.Errorf("event ID is required")
	}
	if len(id) > 256 {
		return Event{}, fmt.Errorf("event ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Event{}, fmt.Errorf("event ID must be alphanumeric with dots, underscores and hyphens")
	}
	if len(source) == 0 {
		return Event{}, fmt.Errorf("event source is required")
	}
	return Event{id: id, source: cloneMap(source), timestamp: timestamp}, nil
}

// Reconstruct creates an Event without validation (storage hydration).
func Reconstruct(id string, source map[string]any, timestamp int64) Event {
	return Event{id: id, source: source, timestamp: timestamp}
}

// ID returns the event identifier.
func (e *Event) ID() string { return e.id }

// Source returns the event payload.
func (e *Event) Source() map[string]any { return e.source }

// Timestamp returns the event time in epoch millis.
func (e *Event) Timestamp() int64 { return e.timestamp }

// Lookup resolves a dotted field path in source. A literal key containing
// dots wins over nested objects, so both {"a.b":1} and {"a":{"b":1}} resolve
// "a.b".
func Lookup(source map[string]any, path string) (any, bool) {
	if v, ok := source[path]; ok {
		return v, true
	}
	for i := 0; i < len(path); i++ {
		if path[i] != '.' {
			continue
		}
		nested, ok := source[path[:i]].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := Lookup(nested, path[i+1:]); ok {
			return v, true
		}
	}
	return nil, false
}

// Values flattens a field value into its scalar members. Arrays match
// when any member matches.
func Values(v any) []any {
	switch vv := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, 0, len(vv))
		for _, item := range vv {
			out = append(out, Values(item)...)
		}
		return out
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

// Tiebreaker returns the stable secondary sort key of an event.
func Tiebreaker(index, id string) string { return index + ":" + id }

// SplitTiebreaker is the inverse of Tiebreaker.
func SplitTiebreaker(tb string) (index, id string, ok bool) {
	return strings.Cut(tb, ":")
}

func cloneMap(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
