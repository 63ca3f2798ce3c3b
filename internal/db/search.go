package db

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
)

// FieldTypes resolves the declared type of an event field.
type FieldTypes interface {
	FieldType(name string) (field.Type, bool)
}

// EventQuery is the input for a paginated, timestamp-ordered event search.
type EventQuery struct {
	IndexName string
	// KeyPrefix is stripped from document keys to form tiebreakers.
	KeyPrefix      string
	Query          filter.Query
	Schema         FieldTypes
	TimestampField string
	// After is exclusive; the zero key starts from the beginning.
	After cursor.Key
	Size  int
}

// Validate checks the query is executable.
func (q *EventQuery) Validate() error {
	if q.IndexName == "" {
		return errors.New("index name is required")
	}
	if q.Size <= 0 {
		return errors.New("size must be positive")
	}
	if q.Schema == nil {
		return errors.New("schema is required")
	}
	ft, ok := q.Schema.FieldType(q.TimestampField)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, q.TimestampField)
	}
	if !ft.IsOrdered() {
		return fmt.Errorf("timestamp field %s must be numeric or date, got %s", q.TimestampField, ft)
	}
	return nil
}

// EventPage is one page of hits in (timestamp, tiebreaker) order.
type EventPage struct {
	Entries []EventEntry
	// More is false when no entry sorts after the last one returned.
	More bool
}

// EventEntry is a single event hit.
type EventEntry struct {
	Sort   cursor.Key
	Source map[string]any
}

// Document is the stored JSON form of an event: the original payload plus
// the normalized values of every indexed field keyed by attribute.
type Document struct {
	Source map[string]any `json:"_source"`
	Index  map[string]any `json:"_idx"`
	// Time is the ingest timestamp in epoch millis.
	Time int64 `json:"_ts,omitempty"`
}

// DecodeDocument parses a stored event document. A JSONPath result array
// holding the document is unwrapped.
func DecodeDocument(data []byte) (Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var wrapped []json.RawMessage
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return Document{}, fmt.Errorf("decode document: %w", err)
		}
		if len(wrapped) == 0 {
			return Document{}, ErrKeyNotFound
		}
		data = wrapped[0]
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Timestamp returns the epoch millis stored for attr.
func (d *Document) Timestamp(attr string) (int64, bool) {
	v, ok := d.Index[attr]
	if !ok {
		return 0, false
	}
	ts, err := field.ParseDate(v)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// SortEntries orders entries by (timestamp, tiebreaker).
func SortEntries(entries []EventEntry) {
	slices.SortStableFunc(entries, func(a, b EventEntry) int {
		return a.Sort.Compare(b.Sort)
	})
}

// NewPage sorts entries, drops everything at or before after and keeps the
// first size entries.
func NewPage(entries []EventEntry, after cursor.Key, size int) *EventPage {
	SortEntries(entries)
	if !after.IsZero() {
		i, _ := slices.BinarySearchFunc(entries, after, func(e EventEntry, k cursor.Key) int {
			return e.Sort.Compare(k)
		})
		for i < len(entries) && entries[i].Sort.Compare(after) <= 0 {
			i++
		}
		entries = entries[i:]
	}
	page := &EventPage{}
	if len(entries) > size {
		entries = entries[:size]
		page.More = true
	}
	page.Entries = entries
	return page
}
