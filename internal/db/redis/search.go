package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/seqdex/internal/db"
	"github.com/kailas-cloud/seqdex/internal/domain/event"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
)

// SearchEvents returns the next page of events after q.After in
// (timestamp, tiebreaker) order.
//
// FT.SEARCH sorts by timestamp only, so the last timestamp of a truncated
// result may be split across pages. That trailing group is dropped and, when
// too few entries remain, the fetch window grows until the page fills or the
// result is complete.
func (s *Store) SearchEvents(ctx context.Context, q *db.EventQuery) (*db.EventPage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := filter.Simplify(q.Query)
	if _, ok := query.(filter.MatchNone); ok {
		return &db.EventPage{}, nil
	}
	rendered, err := buildFilter(query, q.Schema)
	if err != nil {
		return nil, err
	}

	tsAttr := field.Attribute(q.TimestampField)
	queryStr := withTimeBound(rendered, tsAttr, q.After)

	fetch := q.Size * 2
	for {
		total, entries, err := s.searchWindow(ctx, q, queryStr, tsAttr, fetch)
		if err != nil {
			return nil, err
		}

		truncated := total > len(entries)
		if truncated {
			entries = dropTrailingTies(entries)
		}
		page := db.NewPage(entries, q.After, q.Size)
		if !truncated {
			return page, nil
		}
		page.More = true
		if len(page.Entries) == q.Size || fetch >= total {
			return page, nil
		}
		fetch = min(total, fetch*2)
	}
}

func (s *Store) searchWindow(
	ctx context.Context, q *db.EventQuery, queryStr, tsAttr string, fetch int,
) (int, []db.EventEntry, error) {
	args := []string{
		q.IndexName, queryStr,
		"RETURN", "1", "$",
		"SORTBY", tsAttr, "ASC",
		"LIMIT", "0", strconv.Itoa(fetch),
		"DIALECT", "2",
	}
	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, nil, db.ErrIndexNotFound
		}
		return 0, nil, &db.Error{Op: db.OpSearch, Key: q.IndexName, Err: err}
	}
	return parseEventResult(raw, q.KeyPrefix, tsAttr)
}

func withTimeBound(rendered, tsAttr string, after cursor.Key) string {
	lower := "-inf"
	if !after.IsZero() {
		lower = strconv.FormatInt(after.Timestamp, 10)
	}
	bound := fmt.Sprintf("@%s:[%s +inf]", tsAttr, lower)
	if rendered == "*" {
		return bound
	}
	return "(" + rendered + ") " + bound
}

// dropTrailingTies removes the entries sharing the greatest timestamp.
func dropTrailingTies(entries []db.EventEntry) []db.EventEntry {
	if len(entries) == 0 {
		return entries
	}
	last := entries[0].Sort.Timestamp
	for _, e := range entries[1:] {
		last = max(last, e.Sort.Timestamp)
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Sort.Timestamp < last {
			kept = append(kept, e)
		}
	}
	return kept
}

// --- Result parsing ---

func parseEventResult(raw []rueidis.RedisMessage, keyPrefix, tsAttr string) (int, []db.EventEntry, error) {
	if len(raw) == 0 {
		return 0, nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, nil, fmt.Errorf("parse total: %w", err)
	}

	entries := make([]db.EventEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			return 0, nil, fmt.Errorf("parse key: %w", err)
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			return 0, nil, fmt.Errorf("parse fields of %s: %w", key, err)
		}
		body, ok := parseFieldPairs(fields)["$"]
		if !ok {
			return 0, nil, fmt.Errorf("document %s has no body", key)
		}
		doc, err := db.DecodeDocument([]byte(body))
		if err != nil {
			return 0, nil, fmt.Errorf("%s: %w", key, err)
		}
		ts, ok := doc.Timestamp(tsAttr)
		if !ok {
			return 0, nil, fmt.Errorf("document %s has no timestamp %s", key, tsAttr)
		}
		entries = append(entries, db.EventEntry{
			Sort:   cursor.Key{Timestamp: ts, Tiebreaker: strings.TrimPrefix(key, keyPrefix)},
			Source: doc.Source,
		})
	}

	return int(total), entries, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter translates a simplified query into FT.SEARCH query syntax.
func buildFilter(q filter.Query, schema db.FieldTypes) (string, error) {
	switch v := q.(type) {
	case filter.MatchAll:
		return "*", nil
	case filter.MatchNone:
		return "", fmt.Errorf("match_none must be simplified away before rendering")
	case filter.Bool:
		return buildBool(v, schema)
	}

	name := filter.FieldOf(q)
	ft, ok := schema.FieldType(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", db.ErrUnknownField, name)
	}
	attr := field.Attribute(name)

	switch v := q.(type) {
	case filter.Term:
		return buildTerm(attr, ft, v.Value, v.CaseInsensitive)
	case filter.Terms:
		return buildTerms(attr, ft, v)
	case filter.RangeQuery:
		if !ft.IsOrdered() {
			return "", fmt.Errorf("range on %s field %s", ft, name)
		}
		return buildNumericFilter(attr, v.Range), nil
	case filter.Exists:
		return "-ismissing(@" + attr + ")", nil
	case filter.Wildcard:
		if ft != field.Keyword {
			return "", fmt.Errorf("wildcard on %s field %s", ft, name)
		}
		if v.CaseInsensitive {
			attr += db.CaseInsensitiveSuffix
		}
		return fmt.Sprintf("@%s:{w'%s'}", attr, strings.ReplaceAll(v.Pattern, "'", `\'`)), nil
	}
	return "", fmt.Errorf("unsupported query %T", q)
}

func buildBool(b filter.Bool, schema db.FieldTypes) (string, error) {
	parts := make([]string, 0, len(b.Must)+len(b.MustNot)+1)

	for _, c := range b.Must {
		s, err := buildFilter(c, schema)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}

	if len(b.Should) > 0 {
		should := make([]string, 0, len(b.Should))
		for _, c := range b.Should {
			s, err := buildFilter(c, schema)
			if err != nil {
				return "", err
			}
			should = append(should, "("+s+")")
		}
		parts = append(parts, "("+strings.Join(should, " | ")+")")
	}

	for _, c := range b.MustNot {
		s, err := buildFilter(c, schema)
		if err != nil {
			return "", err
		}
		parts = append(parts, "-("+s+")")
	}

	if len(parts) == 0 {
		return "*", nil
	}
	return strings.Join(parts, " "), nil
}

func buildTerm(attr string, ft field.Type, value any, caseInsensitive bool) (string, error) {
	switch ft {
	case field.Numeric, field.Date:
		n, err := numericValue(ft, value)
		if err != nil {
			return "", fmt.Errorf("term on %s: %w", attr, err)
		}
		return buildNumericFilter(attr, filter.Equal(n)), nil
	case field.Boolean:
		return buildTagFilter(attr, event.Keyword(value)), nil
	}
	if caseInsensitive {
		attr += db.CaseInsensitiveSuffix
	}
	return buildTagFilter(attr, event.Keyword(value)), nil
}

func buildTerms(attr string, ft field.Type, t filter.Terms) (string, error) {
	if ft.IsOrdered() {
		parts := make([]string, len(t.Values))
		for i, v := range t.Values {
			s, err := buildTerm(attr, ft, v, false)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, " | ") + ")", nil
	}
	if t.CaseInsensitive && ft == field.Keyword {
		attr += db.CaseInsensitiveSuffix
	}
	values := make([]string, len(t.Values))
	for i, v := range t.Values {
		values[i] = tagEscaper.Replace(event.Keyword(v))
	}
	return fmt.Sprintf("@%s:{%s}", attr, strings.Join(values, " | ")), nil
}

func numericValue(ft field.Type, v any) (float64, error) {
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

func buildTagFilter(attr, value string) string {
	return fmt.Sprintf("@%s:{%s}", attr, tagEscaper.Replace(value))
}

func buildNumericFilter(attr string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GT() != nil {
		minBound = "(" + formatFloat(*r.GT())
	} else if r.GTE() != nil {
		minBound = formatFloat(*r.GTE())
	}

	if r.LT() != nil {
		maxBound = "(" + formatFloat(*r.LT())
	} else if r.LTE() != nil {
		maxBound = formatFloat(*r.LTE())
	}

	return fmt.Sprintf("@%s:[%s %s]", attr, minBound, maxBound)
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"?", "\\?",
	"(", "\\(",
	")", "\\)",
	"|", "\\|",
	"/", "\\/",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)
