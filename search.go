package seqdex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
	"github.com/kailas-cloud/seqdex/internal/domain/search/request"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
)

// Event is a matched event.
type Event struct {
	Index  string
	ID     string
	Source map[string]any
	Sort   []any
}

// Sequence is a matched sequence or join, events in stage order.
type Sequence struct {
	JoinKeys []any
	Events   []Event
}

// SearchResult is the answer to a search. Exactly one of Events,
// Sequences or Count is meaningful, depending on the query.
type SearchResult struct {
	Took      int64
	Events    []Event
	Sequences []Sequence
	// Count is set by the count pipe.
	Count *int64
	// SearchAfter resumes the search; nil once results are exhausted.
	SearchAfter []any
}

// SearchOptions tunes a search. Zero values fall back to the client defaults.
type SearchOptions struct {
	Size int
	// Filter is a query DSL object (bool, term, terms, match, range,
	// exists) ANDed into every stage.
	Filter               map[string]any
	SearchAfter          []any
	TimestampField       string
	EventCategoryField   string
	ImplicitJoinKeyField string
	CaseSensitive        bool
}

// Search runs an EQL query over indices. Each entry may be a name or a
// wildcard pattern such as "logs-*".
func (c *Client) Search(ctx context.Context, indices []string, query string, opts *SearchOptions) (*SearchResult, error) {
	req, err := c.buildRequest(indices, query, opts)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	resp, err := c.searchSvc.Search(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return fromResponse(resp), nil
}

func (c *Client) buildRequest(indices []string, query string, opts *SearchOptions) (request.Request, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	var ro []request.Option
	if opts.Size > 0 {
		ro = append(ro, request.WithSize(opts.Size))
	}
	if opts.Filter != nil {
		data, err := json.Marshal(opts.Filter)
		if err != nil {
			return request.Request{}, fmt.Errorf("encode filter: %w", err)
		}
		q, err := filter.Parse(data)
		if err != nil {
			return request.Request{}, err
		}
		ro = append(ro, request.WithFilter(q))
	}
	if opts.SearchAfter != nil {
		ro = append(ro, request.WithSearchAfter(opts.SearchAfter...))
	}
	if opts.TimestampField != "" {
		ro = append(ro, request.WithTimestampField(opts.TimestampField))
	}
	if opts.EventCategoryField != "" {
		ro = append(ro, request.WithEventCategoryField(opts.EventCategoryField))
	}
	if opts.ImplicitJoinKeyField != "" {
		ro = append(ro, request.WithImplicitJoinKeyField(opts.ImplicitJoinKeyField))
	}
	if opts.CaseSensitive {
		ro = append(ro, request.WithCaseSensitive(true))
	}
	return request.New(indices, query, c.defaults, ro...)
}

func fromResponse(resp *result.Response) *SearchResult {
	out := &SearchResult{
		Took:        resp.Took,
		Events:      fromEvents(resp.Hits.Events),
		SearchAfter: resp.SearchAfter,
	}
	if resp.Hits.Total != nil {
		n := resp.Hits.Total.Value
		out.Count = &n
	}
	if len(resp.Hits.Sequences) > 0 {
		out.Sequences = make([]Sequence, len(resp.Hits.Sequences))
		for i, s := range resp.Hits.Sequences {
			out.Sequences[i] = Sequence{JoinKeys: s.JoinKeys, Events: fromEvents(s.Events)}
		}
	}
	return out
}

func fromEvents(events []result.Event) []Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = Event{Index: e.Index, ID: e.ID, Source: e.Source, Sort: e.Sort}
	}
	return out
}
