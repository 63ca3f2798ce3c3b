package sdk

import "time"

// FieldType is the indexing type of a field.
type FieldType string

// Field types.
const (
	FieldKeyword FieldType = "keyword"
	FieldNumeric FieldType = "numeric"
	FieldDate    FieldType = "date"
	FieldBoolean FieldType = "boolean"
)

// Field is one schema field.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Index describes an index.
type Index struct {
	Name      string    `json:"name"`
	Fields    []Field   `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
}

// EventAck acknowledges a single event write or delete.
type EventAck struct {
	Index     string `json:"_index"`
	ID        string `json:"_id"`
	Result    string `json:"result"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// StoredEvent is an event read back by ID.
type StoredEvent struct {
	Index     string         `json:"_index"`
	ID        string         `json:"_id"`
	Timestamp int64          `json:"timestamp"`
	Source    map[string]any `json:"_source"`
}

// BulkItem is the outcome of one bulk line.
type BulkItem struct {
	Line   int       `json:"line"`
	ID     string    `json:"_id,omitempty"`
	Status string    `json:"status"`
	Error  *APIError `json:"error,omitempty"`
}

// BulkResult summarizes a bulk request.
type BulkResult struct {
	Took      int64      `json:"took"`
	Errors    bool       `json:"errors"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Items     []BulkItem `json:"items"`
}

// SearchRequest is an EQL search. Zero values are omitted and the server
// defaults apply.
type SearchRequest struct {
	Query                string         `json:"query"`
	Filter               map[string]any `json:"filter,omitempty"`
	TimestampField       string         `json:"timestamp_field,omitempty"`
	EventCategoryField   string         `json:"event_category_field,omitempty"`
	ImplicitJoinKeyField string         `json:"implicit_join_key_field,omitempty"`
	Size                 int            `json:"size,omitempty"`
	SearchAfter          []any          `json:"search_after,omitempty"`
	CaseSensitive        bool           `json:"case_sensitive,omitempty"`
}

// Event is a matched event.
type Event struct {
	Index  string         `json:"_index"`
	ID     string         `json:"_id"`
	Source map[string]any `json:"_source"`
	Sort   []any          `json:"sort,omitempty"`
}

// Sequence is a matched sequence or join.
type Sequence struct {
	JoinKeys []any   `json:"join_keys,omitempty"`
	Events   []Event `json:"events"`
}

// Total is the result of a count pipe.
type Total struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

// SearchResponse is the answer to a search.
type SearchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total     *Total     `json:"total,omitempty"`
		Events    []Event    `json:"events,omitempty"`
		Sequences []Sequence `json:"sequences,omitempty"`
	} `json:"hits"`
	// SearchAfter resumes the search; nil once results are exhausted.
	SearchAfter []any `json:"search_after,omitempty"`
}

// Health is the server health report.
type Health struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Indices int               `json:"indices"`
}
