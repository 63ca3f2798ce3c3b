package event

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
)

// IndexValues extracts and normalizes the declared fields of source, keyed
// by backend attribute. Keywords become strings, numbers float64, dates
// epoch millis and booleans "true"/"false". Arrays keep every member.
// Absent and null fields are left out.
func IndexValues(fields []field.Field, source map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		raw, ok := Lookup(source, f.Name())
		if !ok {
			continue
		}
		values := Values(raw)
		if len(values) == 0 {
			continue
		}
		norm := make([]any, len(values))
		for i, v := range values {
			n, err := normalize(f.FieldType(), v)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name(), err)
			}
			norm[i] = n
		}
		if _, isArray := raw.([]any); isArray {
			out[f.Attribute()] = norm
		} else {
			out[f.Attribute()] = norm[0]
		}
	}
	return out, nil
}

func normalize(ft field.Type, v any) (any, error) {
	if _, ok := v.(map[string]any); ok {
		return nil, fmt.Errorf("objects cannot be indexed as %s", ft)
	}
	switch ft {
	case field.Keyword:
		return Keyword(v), nil
	case field.Numeric:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			return n.Float64()
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", n)
			}
			return f, nil
		}
		return nil, fmt.Errorf("%v is not a number", v)
	case field.Date:
		return field.ParseDate(v)
	case field.Boolean:
		switch b := v.(type) {
		case bool:
			return strconv.FormatBool(b), nil
		case string:
			if b == "true" || b == "false" {
				return b, nil
			}
		}
		return nil, fmt.Errorf("%v is not a boolean", v)
	}
	return nil, fmt.Errorf("unknown field type %s", ft)
}

// Keyword renders a scalar the way keyword fields store it.
func Keyword(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return fmt.Sprint(v)
}
