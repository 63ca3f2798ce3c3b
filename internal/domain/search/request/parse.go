package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"

	"github.com/kailas-cloud/seqdex/internal/domain"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
)

// Request body keys.
const (
	KeyFilter               = "filter"
	KeyTimestampField       = "timestamp_field"
	KeyEventCategoryField   = "event_category_field"
	KeyImplicitJoinKeyField = "implicit_join_key_field"
	KeySearchAfter          = "search_after"
	KeySize                 = "size"
	KeyQuery                = "query"
	KeyCaseSensitive        = "case_sensitive"
)

// Value type names reported in type mismatch errors.
const (
	TypeString  = "VALUE_STRING"
	TypeNumber  = "VALUE_NUMBER"
	TypeBoolean = "VALUE_BOOLEAN"
	TypeNull    = "VALUE_NULL"
	TypeObject  = "START_OBJECT"
	TypeArray   = "START_ARRAY"
)

// Parse decodes a JSON request body strictly: unknown keys, duplicate keys
// and values of the wrong type are rejected with a *domain.ValidationError.
func Parse(indices []string, body []byte, d Defaults) (Request, error) {
	var opts []Option
	var query string

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return New(indices, "", d)
	}
	if err != nil {
		return Request{}, malformed(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Request{}, domain.NewValidationError("body", "request body must be a JSON object")
	}

	seen := make(map[string]bool)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Request{}, malformed(err)
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Request{}, malformed(err)
		}
		if seen[key] {
			return Request{}, domain.NewValidationError(key, "duplicate field [%s]", key)
		}
		seen[key] = true

		switch key {
		case KeyQuery:
			if query, err = stringValue(key, raw); err != nil {
				return Request{}, err
			}
		case KeyTimestampField:
			s, err := stringValue(key, raw)
			if err != nil {
				return Request{}, err
			}
			opts = append(opts, WithTimestampField(s))
		case KeyEventCategoryField:
			s, err := stringValue(key, raw)
			if err != nil {
				return Request{}, err
			}
			opts = append(opts, WithEventCategoryField(s))
		case KeyImplicitJoinKeyField:
			s, err := stringValue(key, raw)
			if err != nil {
				return Request{}, err
			}
			opts = append(opts, WithImplicitJoinKeyField(s))
		case KeySize:
			n, err := sizeValue(raw)
			if err != nil {
				return Request{}, err
			}
			opts = append(opts, WithSize(n))
		case KeyCaseSensitive:
			b, err := boolValue(key, raw)
			if err != nil {
				return Request{}, err
			}
			opts = append(opts, WithCaseSensitive(b))
		case KeyFilter:
			q, err := filterValue(raw)
			if err != nil {
				return Request{}, err
			}
			opts = append(opts, WithFilter(q))
		case KeySearchAfter:
			values, err := searchAfterValue(raw)
			if err != nil {
				return Request{}, err
			}
			opts = append(opts, WithSearchAfter(values...))
		default:
			return Request{}, domain.NewValidationError(key, "unknown field [%s]", key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return Request{}, malformed(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Request{}, domain.NewValidationError("body", "unexpected data after request body")
	}

	return New(indices, query, d, opts...)
}

func malformed(err error) error {
	return domain.NewValidationError("body", "malformed request body: %v", err)
}

// valueType classifies a raw JSON value the way type mismatch errors report it.
func valueType(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return TypeNull
	}
	switch raw[0] {
	case '{':
		return TypeObject
	case '[':
		return TypeArray
	case '"':
		return TypeString
	case 't', 'f':
		return TypeBoolean
	case 'n':
		return TypeNull
	}
	return TypeNumber
}

func unsupported(key string, raw json.RawMessage) error {
	return domain.NewValidationError(key, "%s doesn't support values of type: %s", key, valueType(raw))
}

func failedToParse(key string) error {
	return domain.NewValidationError(key, "failed to parse field [%s]", key)
}

func stringValue(key string, raw json.RawMessage) (string, error) {
	if valueType(raw) != TypeString {
		return "", unsupported(key, raw)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", failedToParse(key)
	}
	return s, nil
}

// sizeValue accepts an integral number or a string holding one.
func sizeValue(raw json.RawMessage) (int, error) {
	var text string
	switch valueType(raw) {
	case TypeNumber:
		text = string(bytes.TrimSpace(raw))
	case TypeString:
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, failedToParse(KeySize)
		}
	default:
		return 0, unsupported(KeySize, raw)
	}
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, failedToParse(KeySize)
		}
		n = int64(f)
	}
	return int(n), nil
}

func boolValue(key string, raw json.RawMessage) (bool, error) {
	switch valueType(raw) {
	case TypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return false, failedToParse(key)
		}
		return b, nil
	case TypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			switch s {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
	}
	return false, failedToParse(key)
}

func filterValue(raw json.RawMessage) (filter.Query, error) {
	if valueType(raw) != TypeObject {
		return nil, unsupported(KeyFilter, raw)
	}
	q, err := filter.Parse(raw)
	if err != nil {
		return nil, domain.NewValidationError(KeyFilter, "failed to parse field [%s]: %v", KeyFilter, err)
	}
	return q, nil
}

func searchAfterValue(raw json.RawMessage) ([]any, error) {
	if valueType(raw) != TypeArray {
		return nil, unsupported(KeySearchAfter, raw)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, failedToParse(KeySearchAfter)
	}
	values := make([]any, 0, len(items))
	for _, item := range items {
		switch valueType(item) {
		case TypeString:
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return nil, failedToParse(KeySearchAfter)
			}
			values = append(values, s)
		case TypeNumber:
			text := string(bytes.TrimSpace(item))
			if n, err := strconv.ParseInt(text, 10, 64); err == nil {
				values = append(values, n)
				continue
			}
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, failedToParse(KeySearchAfter)
			}
			values = append(values, f)
		case TypeBoolean:
			values = append(values, bytes.Equal(bytes.TrimSpace(item), []byte("true")))
		default:
			return nil, unsupported(KeySearchAfter, item)
		}
	}
	return values, nil
}
