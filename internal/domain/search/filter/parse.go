package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// MaxDepth bounds bool nesting accepted by Parse.
const MaxDepth = 32

// ErrMalformed is wrapped by every Parse failure.
var ErrMalformed = errors.New("malformed query")

// Parse decodes a query DSL document. It accepts the forms String renders
// plus the common shorthands: bool.filter, single-clause bool groups,
// term/wildcard short form and match on a scalar.
func Parse(data []byte) (Query, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return FromSource(raw)
}

// FromSource converts a decoded DSL value into a Query.
func FromSource(raw any) (Query, error) {
	return parseQuery(raw, 0)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func parseQuery(raw any, depth int) (Query, error) {
	if depth > MaxDepth {
		return nil, malformed("query nested deeper than %d", MaxDepth)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, malformed("query must be an object")
	}
	if len(obj) != 1 {
		return nil, malformed("query object must have exactly one key, got %d", len(obj))
	}
	for kind, body := range obj {
		switch kind {
		case "bool":
			return parseBool(body, depth)
		case "term":
			return parseTerm(body)
		case "match":
			return parseMatch(body)
		case "terms":
			return parseTerms(body)
		case "range":
			return parseRange(body)
		case "exists":
			return parseExists(body)
		case "wildcard":
			return parseWildcard(body)
		case "match_all":
			return MatchAll{}, nil
		case "match_none":
			return MatchNone{}, nil
		default:
			return nil, malformed("unknown query [%s]", kind)
		}
	}
	panic("unreachable")
}

func parseBool(body any, depth int) (Query, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, malformed("[bool] must be an object")
	}
	var must, should, mustNot []Query
	for _, key := range sortedKeys(obj) {
		clauses, err := parseClauses(key, obj[key], depth)
		if err != nil {
			return nil, err
		}
		switch key {
		case "must", "filter":
			must = append(must, clauses...)
		case "should":
			should = append(should, clauses...)
		case "must_not":
			mustNot = append(mustNot, clauses...)
		default:
			return nil, malformed("unknown bool clause [%s]", key)
		}
	}
	b, err := NewBool(must, should, mustNot)
	if err != nil {
		return nil, malformed("%s", err)
	}
	return b, nil
}

func parseClauses(key string, raw any, depth int) ([]Query, error) {
	switch key {
	case "must", "filter", "should", "must_not":
	default:
		return nil, malformed("unknown bool clause [%s]", key)
	}
	items, isList := raw.([]any)
	if !isList {
		items = []any{raw}
	}
	out := make([]Query, 0, len(items))
	for _, item := range items {
		q, err := parseQuery(item, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func singleField(kind string, body any) (string, any, error) {
	obj, ok := body.(map[string]any)
	if !ok || len(obj) != 1 {
		return "", nil, malformed("[%s] must name exactly one field", kind)
	}
	for f, v := range obj {
		if f == "" {
			return "", nil, malformed("[%s] field name is empty", kind)
		}
		return f, v, nil
	}
	panic("unreachable")
}

func parseTerm(body any) (Query, error) {
	f, v, err := singleField("term", body)
	if err != nil {
		return nil, err
	}
	if long, ok := v.(map[string]any); ok {
		val, err := scalar("term", long["value"])
		if err != nil {
			return nil, err
		}
		ci, err := optionalBool("term", long, "case_insensitive")
		if err != nil {
			return nil, err
		}
		if err := onlyKeys("term", long, "value", "case_insensitive"); err != nil {
			return nil, err
		}
		return Term{Field: f, Value: val, CaseInsensitive: ci}, nil
	}
	val, err := scalar("term", v)
	if err != nil {
		return nil, err
	}
	return Term{Field: f, Value: val}, nil
}

func parseMatch(body any) (Query, error) {
	f, v, err := singleField("match", body)
	if err != nil {
		return nil, err
	}
	if long, ok := v.(map[string]any); ok {
		v = long["query"]
		if err := onlyKeys("match", long, "query"); err != nil {
			return nil, err
		}
	}
	val, err := scalar("match", v)
	if err != nil {
		return nil, err
	}
	return Term{Field: f, Value: val}, nil
}

func parseTerms(body any) (Query, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, malformed("[terms] must be an object")
	}
	ci, err := optionalBool("terms", obj, "case_insensitive")
	if err != nil {
		return nil, err
	}
	var field string
	var rawValues any
	for k, v := range obj {
		if k == "case_insensitive" {
			continue
		}
		if field != "" {
			return nil, malformed("[terms] must name exactly one field")
		}
		field, rawValues = k, v
	}
	if field == "" {
		return nil, malformed("[terms] must name exactly one field")
	}
	list, ok := rawValues.([]any)
	if !ok || len(list) == 0 {
		return nil, malformed("[terms] values for [%s] must be a non-empty array", field)
	}
	values := make([]any, 0, len(list))
	for _, item := range list {
		val, err := scalar("terms", item)
		if err != nil {
			return nil, err
		}
		values = append(values, val)
	}
	return Terms{Field: field, Values: values, CaseInsensitive: ci}, nil
}

func parseRange(body any) (Query, error) {
	f, v, err := singleField("range", body)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, malformed("[range] bounds for [%s] must be an object", f)
	}
	bounds := map[string]*float64{}
	for _, key := range sortedKeys(obj) {
		switch key {
		case "gt", "gte", "lt", "lte":
		default:
			return nil, malformed("unknown range bound [%s]", key)
		}
		n, err := number(obj[key])
		if err != nil {
			return nil, malformed("[range] bound [%s] for [%s] must be numeric", key, f)
		}
		bounds[key] = &n
	}
	r, err := NewRangeFilter(bounds["gt"], bounds["gte"], bounds["lt"], bounds["lte"])
	if err != nil {
		return nil, malformed("[range] %s", err)
	}
	return RangeQuery{Field: f, Range: r}, nil
}

func parseExists(body any) (Query, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, malformed("[exists] must be an object")
	}
	f, ok := obj["field"].(string)
	if !ok || f == "" {
		return nil, malformed("[exists] requires a field name")
	}
	if err := onlyKeys("exists", obj, "field"); err != nil {
		return nil, err
	}
	return Exists{Field: f}, nil
}

func parseWildcard(body any) (Query, error) {
	f, v, err := singleField("wildcard", body)
	if err != nil {
		return nil, err
	}
	if pattern, ok := v.(string); ok {
		return Wildcard{Field: f, Pattern: pattern}, nil
	}
	long, ok := v.(map[string]any)
	if !ok {
		return nil, malformed("[wildcard] pattern for [%s] must be a string or object", f)
	}
	pattern, ok := long["value"].(string)
	if !ok {
		pattern, ok = long["wildcard"].(string)
	}
	if !ok {
		return nil, malformed("[wildcard] requires a string value for [%s]", f)
	}
	ci, err := optionalBool("wildcard", long, "case_insensitive")
	if err != nil {
		return nil, err
	}
	if err := onlyKeys("wildcard", long, "value", "wildcard", "case_insensitive"); err != nil {
		return nil, err
	}
	return Wildcard{Field: f, Pattern: pattern, CaseInsensitive: ci}, nil
}

func scalar(kind string, v any) (any, error) {
	switch val := v.(type) {
	case string, bool:
		return val, nil
	case json.Number:
		return number(val)
	case float64:
		return val, nil
	}
	return nil, malformed("[%s] value must be a string, number or boolean", kind)
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return strconv.ParseFloat(n.String(), 64)
	case float64:
		return n, nil
	}
	return 0, malformed("not a number")
}

func optionalBool(kind string, obj map[string]any, key string) (bool, error) {
	raw, ok := obj[key]
	if !ok {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, malformed("[%s] %s must be a boolean", kind, key)
	}
	return b, nil
}

func onlyKeys(kind string, obj map[string]any, allowed ...string) error {
	for k := range obj {
		known := false
		for _, a := range allowed {
			if k == a {
				known = true
				break
			}
		}
		if !known {
			return malformed("[%s] unknown option [%s]", kind, k)
		}
	}
	return nil
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
