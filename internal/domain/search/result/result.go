// Package result holds the hits streamed out of the backend and the
// response shapes assembled from them.
package result

import (
	"encoding/json"

	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
)

// Hit is one backend document matched by a stage query.
type Hit struct {
	Index     string
	ID        string
	Timestamp int64
	// Keys is the join key tuple in declared order; Partition is its
	// comparable form.
	Keys      []any
	Partition string
	Source    map[string]any
	Stage     int
	Sort      cursor.Key
}

// Event returns the response form of h.
func (h *Hit) Event() Event {
	return Event{Index: h.Index, ID: h.ID, Source: h.Source}
}

// Partition encodes a join key tuple into a map key. Tuples are equal
// when their values are equal element-wise with the same types.
func Partition(keys []any) string {
	if len(keys) == 0 {
		return ""
	}
	data, err := json.Marshal(keys)
	if err != nil {
		// Keys come from decoded JSON documents.
		panic("result: encode partition: " + err.Error())
	}
	return string(data)
}

// Event is a hit as returned to the client.
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

// Total reports how many results a response describes.
type Total struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

// Hits is the body of a search response.
type Hits struct {
	Total     *Total     `json:"total,omitempty"`
	Events    []Event    `json:"events,omitempty"`
	Sequences []Sequence `json:"sequences,omitempty"`
}

// Response is the assembled answer to a search request.
type Response struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     Hits  `json:"hits"`
	// SearchAfter resumes the search; nil once results are exhausted.
	SearchAfter []any `json:"search_after,omitempty"`
}
