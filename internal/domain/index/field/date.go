package field

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDate converts a date value to epoch millis. Numbers are taken as
// epoch millis; strings may be numeric or one of the accepted layouts,
// zone-less layouts are read as UTC.
func ParseDate(v any) (int64, error) {
	switch d := v.(type) {
	case float64:
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return 0, fmt.Errorf("invalid date %v", d)
		}
		return int64(d), nil
	case int64:
		return d, nil
	case int:
		return int64(d), nil
	case json.Number:
		return ParseDate(d.String())
	case time.Time:
		return d.UnixMilli(), nil
	case string:
		if n, err := strconv.ParseFloat(d, 64); err == nil {
			return ParseDate(n)
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t.UnixMilli(), nil
			}
		}
		return 0, fmt.Errorf("invalid date %q", d)
	}
	return 0, fmt.Errorf("invalid date value of type %T", v)
}
