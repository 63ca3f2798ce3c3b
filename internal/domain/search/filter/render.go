package filter

import "encoding/json"

// String renders q as canonical query DSL JSON. Object keys are sorted, so
// equal queries always render to the same text.
func String(q Query) string {
	if q == nil {
		return "null"
	}
	data, err := json.Marshal(q.Source())
	if err != nil {
		// Sources only hold strings, float64, bool, maps and slices.
		panic("filter: render query: " + err.Error())
	}
	return string(data)
}

func sources(qs []Query) []any {
	out := make([]any, len(qs))
	for i, q := range qs {
		out[i] = q.Source()
	}
	return out
}

// Source implements Query.
func (b Bool) Source() map[string]any {
	body := make(map[string]any, 3)
	if len(b.Must) > 0 {
		body["must"] = sources(b.Must)
	}
	if len(b.Should) > 0 {
		body["should"] = sources(b.Should)
	}
	if len(b.MustNot) > 0 {
		body["must_not"] = sources(b.MustNot)
	}
	return map[string]any{"bool": body}
}

// Source implements Query.
func (t Term) Source() map[string]any {
	if !t.CaseInsensitive {
		return map[string]any{"term": map[string]any{t.Field: t.Value}}
	}
	return map[string]any{"term": map[string]any{
		t.Field: map[string]any{"value": t.Value, "case_insensitive": true},
	}}
}

// Source implements Query.
func (t Terms) Source() map[string]any {
	values := make([]any, len(t.Values))
	copy(values, t.Values)
	body := map[string]any{t.Field: values}
	if t.CaseInsensitive {
		body["case_insensitive"] = true
	}
	return map[string]any{"terms": body}
}

// Source implements Query.
func (r RangeQuery) Source() map[string]any {
	bounds := make(map[string]any, 2)
	if r.Range.gt != nil {
		bounds["gt"] = *r.Range.gt
	}
	if r.Range.gte != nil {
		bounds["gte"] = *r.Range.gte
	}
	if r.Range.lt != nil {
		bounds["lt"] = *r.Range.lt
	}
	if r.Range.lte != nil {
		bounds["lte"] = *r.Range.lte
	}
	return map[string]any{"range": map[string]any{r.Field: bounds}}
}

// Source implements Query.
func (e Exists) Source() map[string]any {
	return map[string]any{"exists": map[string]any{"field": e.Field}}
}

// Source implements Query.
func (w Wildcard) Source() map[string]any {
	body := map[string]any{"value": w.Pattern}
	if w.CaseInsensitive {
		body["case_insensitive"] = true
	}
	return map[string]any{"wildcard": map[string]any{w.Field: body}}
}

// Source implements Query.
func (MatchAll) Source() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// Source implements Query.
func (MatchNone) Source() map[string]any {
	return map[string]any{"match_none": map[string]any{}}
}
