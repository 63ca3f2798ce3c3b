package seqdex

import (
	"context"
	"fmt"
)

// Hit is a typed matched event.
type Hit[T any] struct {
	Index string
	Item  T
	Sort  []any
}

// Match is a typed sequence or join match.
type Match[T any] struct {
	JoinKeys []any
	Hits     []Hit[T]
}

// Results is a typed search answer.
type Results[T any] struct {
	Hits        []Hit[T]
	Matches     []Match[T]
	Count       *int64
	SearchAfter []any
}

// QueryBuilder is a fluent builder for typed EQL searches.
type QueryBuilder[T any] struct {
	idx     *TypedIndex[T]
	query   string
	indices []string
	opts    SearchOptions
}

// Also widens the search to more indices or patterns. Their events must
// decode into T.
func (b *QueryBuilder[T]) Also(indices ...string) *QueryBuilder[T] {
	b.indices = append(b.indices, indices...)
	return b
}

// Size caps the number of results.
func (b *QueryBuilder[T]) Size(n int) *QueryBuilder[T] {
	b.opts.Size = n
	return b
}

// Where adds an exact-match pre-filter on a keyword field.
func (b *QueryBuilder[T]) Where(fieldName string, value any) *QueryBuilder[T] {
	return b.and(map[string]any{"term": map[string]any{fieldName: value}})
}

// Between adds an inclusive range pre-filter on a numeric field, or on a
// date field with epoch millis bounds.
func (b *QueryBuilder[T]) Between(fieldName string, gte, lte any) *QueryBuilder[T] {
	return b.and(map[string]any{"range": map[string]any{fieldName: map[string]any{"gte": gte, "lte": lte}}})
}

func (b *QueryBuilder[T]) and(clause map[string]any) *QueryBuilder[T] {
	if b.opts.Filter == nil {
		b.opts.Filter = map[string]any{"bool": map[string]any{"filter": []any{}}}
	}
	boolq := b.opts.Filter["bool"].(map[string]any)           //nolint:forcetypeassert // built above
	boolq["filter"] = append(boolq["filter"].([]any), clause) //nolint:forcetypeassert // built above
	return b
}

// After resumes from a previous SearchAfter.
func (b *QueryBuilder[T]) After(searchAfter []any) *QueryBuilder[T] {
	b.opts.SearchAfter = searchAfter
	return b
}

// CaseSensitive makes string comparisons case-sensitive.
func (b *QueryBuilder[T]) CaseSensitive() *QueryBuilder[T] {
	b.opts.CaseSensitive = true
	return b
}

// Do executes the search.
func (b *QueryBuilder[T]) Do(ctx context.Context) (*Results[T], error) {
	res, err := b.idx.client.Search(ctx, b.indices, b.query, &b.opts)
	if err != nil {
		return nil, err
	}

	out := &Results[T]{Count: res.Count, SearchAfter: res.SearchAfter}
	if out.Hits, err = b.hits(res.Events); err != nil {
		return nil, err
	}
	for _, s := range res.Sequences {
		hits, err := b.hits(s.Events)
		if err != nil {
			return nil, err
		}
		out.Matches = append(out.Matches, Match[T]{JoinKeys: s.JoinKeys, Hits: hits})
	}
	return out, nil
}

func (b *QueryBuilder[T]) hits(events []Event) ([]Hit[T], error) {
	if len(events) == 0 {
		return nil, nil
	}
	out := make([]Hit[T], len(events))
	for i, e := range events {
		item, ok := b.idx.meta.fromEvent(e.ID, e.Source).(T)
		if !ok {
			return nil, fmt.Errorf("search: cannot convert event %s to %T", e.ID, item)
		}
		out[i] = Hit[T]{Index: e.Index, Item: item, Sort: e.Sort}
	}
	return out, nil
}
