package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/kailas-cloud/seqdex/internal/db"
	"github.com/kailas-cloud/seqdex/internal/domain/event"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
)

// fold applies Unicode case folding. Casers are stateful, so each call
// gets its own.
func fold(s string) string { return cases.Fold().String(s) }

// SearchEvents scans the documents covered by the index and returns the
// next page after q.After in (timestamp, tiebreaker) order.
func (s *Store) SearchEvents(ctx context.Context, q *db.EventQuery) (*db.EventPage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	for _, name := range filter.Fields(q.Query) {
		if _, ok := q.Schema.FieldType(name); !ok {
			return nil, fmt.Errorf("%w: %s", db.ErrUnknownField, name)
		}
	}

	query := filter.Simplify(q.Query)
	if _, ok := query.(filter.MatchNone); ok {
		return &db.EventPage{}, nil
	}

	s.mu.RLock()
	def, ok := s.indexes[q.IndexName]
	if !ok {
		s.mu.RUnlock()
		return nil, db.ErrIndexNotFound
	}
	candidates := make(map[string][]byte)
	for key, data := range s.docs {
		if def.StorageType == db.StorageJSON && covers(def, key) {
			candidates[key] = data
		}
	}
	s.mu.RUnlock()

	tsAttr := field.Attribute(q.TimestampField)
	var entries []db.EventEntry
	for key, data := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := db.DecodeDocument(data)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Key: key, Err: err}
		}
		ts, ok := doc.Timestamp(tsAttr)
		if !ok {
			continue
		}
		matched, err := evaluate(query, doc.Index, q.Schema)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		entries = append(entries, db.EventEntry{
			Sort:   cursor.Key{Timestamp: ts, Tiebreaker: strings.TrimPrefix(key, q.KeyPrefix)},
			Source: doc.Source,
		})
	}
	return db.NewPage(entries, q.After, q.Size), nil
}

// evaluate reports whether the indexed attributes of a document satisfy q.
func evaluate(q filter.Query, attrs map[string]any, schema db.FieldTypes) (bool, error) {
	switch v := q.(type) {
	case filter.MatchAll:
		return true, nil
	case filter.MatchNone:
		return false, nil
	case filter.Bool:
		return evaluateBool(v, attrs, schema)
	}

	name := filter.FieldOf(q)
	ft, ok := schema.FieldType(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", db.ErrUnknownField, name)
	}
	values := event.Values(attrs[field.Attribute(name)])

	switch v := q.(type) {
	case filter.Term:
		return anyValue(values, func(x any) (bool, error) { return equal(ft, x, v.Value, v.CaseInsensitive) })
	case filter.Terms:
		return anyValue(values, func(x any) (bool, error) {
			for _, want := range v.Values {
				ok, err := equal(ft, x, want, v.CaseInsensitive)
				if ok || err != nil {
					return ok, err
				}
			}
			return false, nil
		})
	case filter.RangeQuery:
		if !ft.IsOrdered() {
			return false, fmt.Errorf("range on %s field %s", ft, name)
		}
		return anyValue(values, func(x any) (bool, error) {
			n, err := number(ft, x)
			if err != nil {
				return false, nil
			}
			return v.Range.Contains(n), nil
		})
	case filter.Exists:
		return len(values) > 0, nil
	case filter.Wildcard:
		if ft != field.Keyword {
			return false, fmt.Errorf("wildcard on %s field %s", ft, name)
		}
		pattern := v.Pattern
		if v.CaseInsensitive {
			pattern = fold(pattern)
		}
		return anyValue(values, func(x any) (bool, error) {
			s := event.Keyword(x)
			if v.CaseInsensitive {
				s = fold(s)
			}
			return wildcardMatch(pattern, s), nil
		})
	}
	return false, fmt.Errorf("unsupported query %T", q)
}

func evaluateBool(b filter.Bool, attrs map[string]any, schema db.FieldTypes) (bool, error) {
	for _, c := range b.Must {
		ok, err := evaluate(c, attrs, schema)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(b.Should) > 0 {
		matched := false
		for _, c := range b.Should {
			ok, err := evaluate(c, attrs, schema)
			if err != nil {
				return false, err
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	for _, c := range b.MustNot {
		ok, err := evaluate(c, attrs, schema)
		if err != nil || ok {
			return false, err
		}
	}
	return true, nil
}

func anyValue(values []any, fn func(any) (bool, error)) (bool, error) {
	for _, x := range values {
		ok, err := fn(x)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

func equal(ft field.Type, stored, want any, caseInsensitive bool) (bool, error) {
	switch ft {
	case field.Numeric, field.Date:
		w, err := number(ft, want)
		if err != nil {
			return false, fmt.Errorf("term value: %w", err)
		}
		n, err := number(ft, stored)
		if err != nil {
			return false, nil
		}
		return n == w, nil
	case field.Keyword:
		if caseInsensitive {
			return fold(event.Keyword(stored)) == fold(event.Keyword(want)), nil
		}
	}
	return event.Keyword(stored) == event.Keyword(want), nil
}

func number(ft field.Type, v any) (float64, error) {
	if ft == field.Date {
		ms, err := field.ParseDate(v)
		return float64(ms), err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("value %v is not numeric", v)
}

// wildcardMatch matches s against a pattern where * is any run of
// characters, ? is one character and \ escapes the next character.
func wildcardMatch(pattern, s string) bool {
	p := []rune(pattern)
	r := []rune(s)
	pi, si := 0, 0
	starP, starS := -1, 0
	for si < len(r) {
		if pi < len(p) {
			switch {
			case p[pi] == '*':
				starP, starS = pi, si
				pi++
				continue
			case p[pi] == '?':
				pi++
				si++
				continue
			case p[pi] == '\\' && pi+1 < len(p):
				if p[pi+1] == r[si] {
					pi += 2
					si++
					continue
				}
			case p[pi] == r[si]:
				pi++
				si++
				continue
			}
		}
		if starP < 0 {
			return false
		}
		starS++
		pi, si = starP+1, starS
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
